package entity

import (
	"time"
)

// OperatorStatus is the closed presence set, operator-driven.
type OperatorStatus string

const (
	StatusOnline  OperatorStatus = "online"
	StatusBusy    OperatorStatus = "busy"
	StatusOffline OperatorStatus = "offline"
)

func (s OperatorStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Operator is a human support agent. Rows are deactivated, never deleted.
type Operator struct {
	Id           int64  `gorm:"column:id;primaryKey;comment:auto increment id"`
	Uuid         string `gorm:"column:uuid;uniqueIndex;type:char(36);not null;comment:operator uuid"`
	Username     string `gorm:"column:username;uniqueIndex;type:varchar(100);not null;comment:login name"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(100);not null"`
	FirstName    string `gorm:"column:first_name;type:varchar(100);not null"`
	LastName     string `gorm:"column:last_name;type:varchar(100)"`
	Phone        string `gorm:"column:phone;type:varchar(20)"`

	Status                 OperatorStatus `gorm:"column:status;index;type:varchar(16);not null;default:offline"`
	IsActive               bool           `gorm:"column:is_active;not null;default:true"`
	IsAdmin                bool           `gorm:"column:is_admin;not null;default:false"`
	MaxActiveConversations int            `gorm:"column:max_active_conversations;not null;default:5;comment:capacity"`

	TotalHandled       int `gorm:"column:total_handled;not null;default:0;comment:cumulative handled work items"`
	AvgResponseSeconds int `gorm:"column:avg_response_seconds;not null;default:0;comment:running average of first-reply latency"`
	ResponseCount      int `gorm:"column:response_count;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	LastSeen  time.Time `gorm:"column:last_seen;index"`
}

func (Operator) TableName() string {
	return "operators"
}
