package initial

import (
	"context"
	"fmt"
	"time"

	"ilpotaxi/internal/config"

	goredis "github.com/redis/go-redis/v9"
)

// NewRedisClient connects and pings. Returns (nil, nil) when no host is
// configured; callers fall back to the in-memory capacity counter then.
func NewRedisClient(conf *config.Config) (*goredis.Client, error) {
	host := conf.RedisConfig.Host
	if host == "" {
		return nil, nil
	}
	port := conf.RedisConfig.Port
	if port == 0 {
		port = 6379
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     conf.RedisConfig.Password,
		DB:           conf.RedisConfig.DB,
		PoolSize:     conf.RedisConfig.PoolSize,
		MinIdleConns: conf.RedisConfig.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
