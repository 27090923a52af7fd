package initial

import (
	"fmt"
	"log"
	"os"
	"time"

	"ilpotaxi/internal/config"
	assignmentEntity "ilpotaxi/internal/modules/assignment/domain/entity"
	operatorEntity "ilpotaxi/internal/modules/operator/domain/entity"
	supportEntity "ilpotaxi/internal/modules/support/domain/entity"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewGormDB opens the MySQL connection and migrates the schema.
func NewGormDB(conf *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.MysqlConfig.User,
		conf.MysqlConfig.Password,
		conf.MysqlConfig.Host,
		conf.MysqlConfig.Port,
		conf.MysqlConfig.DatabaseName,
	)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&operatorEntity.Operator{},
		&operatorEntity.WorkSession{},
		&assignmentEntity.WorkItem{},
		&assignmentEntity.Application{},
		&supportEntity.Conversation{},
		&supportEntity.Message{},
	); err != nil {
		return nil, err
	}
	return db, nil
}
