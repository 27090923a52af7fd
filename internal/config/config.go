package config

import (
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

type KafkaConfig struct {
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	NotifyTopic     string   `toml:"notifyTopic"`
	EventsTopic     string   `toml:"eventsTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
}

type AIChatModelConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	AccessKey       string `toml:"accessKey"`
	SecretKey       string `toml:"secretKey"`
	BaseURL         string `toml:"baseURL"`
	Region          string `toml:"region"`
	Model           string `toml:"model"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AIConfig struct {
	ChatModel AIChatModelConfig `toml:"chatModel"`
}

// SupportConfig tunes the assignment and handoff core.
type SupportConfig struct {
	DefaultMaxActiveConversations int  `toml:"defaultMaxActiveConversations"`
	AutoAssign                    bool `toml:"autoAssign"`
	AllowBusyForChat              bool `toml:"allowBusyForChat"`
	SweepIntervalSeconds          int  `toml:"sweepIntervalSeconds"`
	SessionTTLSeconds             int  `toml:"sessionTTLSeconds"`
	SessionCleanupSeconds         int  `toml:"sessionCleanupSeconds"`
	ForwardTimeoutSeconds         int  `toml:"forwardTimeoutSeconds"`
	NotifyRetryTimes              int  `toml:"notifyRetryTimes"`
}

type Config struct {
	MainConfig    `toml:"mainConfig"`
	MysqlConfig   `toml:"mysqlConfig"`
	JwtConfig     `toml:"jwtConfig"`
	RedisConfig   `toml:"redisConfig"`
	KafkaConfig   `toml:"kafkaConfig"`
	AIConfig      `toml:"aiConfig"`
	LogConfig     `toml:"logConfig"`
	SupportConfig `toml:"supportConfig"`
}

var config *Config

func LoadConfig() error {
	configPath := os.Getenv("ILPOTAXI_CONFIG")
	if configPath == "" {
		configPath = "configs/config_local.toml"
	}
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		log.Printf("failed to load config %s: %v, falling back to defaults", configPath, err)
		return err
	}
	return nil
}

func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig()
		applyDefaults(config)
	}
	return config
}

func applyDefaults(c *Config) {
	if c.SupportConfig.DefaultMaxActiveConversations <= 0 {
		c.SupportConfig.DefaultMaxActiveConversations = 5
	}
	if c.SupportConfig.SweepIntervalSeconds <= 0 {
		c.SupportConfig.SweepIntervalSeconds = 60
	}
	if c.SupportConfig.SessionTTLSeconds <= 0 {
		c.SupportConfig.SessionTTLSeconds = 86400
	}
	if c.SupportConfig.SessionCleanupSeconds <= 0 {
		c.SupportConfig.SessionCleanupSeconds = 3600
	}
	if c.SupportConfig.ForwardTimeoutSeconds <= 0 {
		c.SupportConfig.ForwardTimeoutSeconds = 5
	}
	if c.SupportConfig.NotifyRetryTimes <= 0 {
		c.SupportConfig.NotifyRetryTimes = 3
	}
}
