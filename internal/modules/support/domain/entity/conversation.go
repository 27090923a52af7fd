package entity

import (
	"database/sql"
	"time"
)

// Conversation is a durable exchange with a web participant. At most one
// operator holds it; once inactive no further messages are accepted.
type Conversation struct {
	Id           int64  `gorm:"column:id;primaryKey"`
	Uuid         string `gorm:"column:uuid;uniqueIndex;type:char(36);not null"`
	WorkItemUuid string `gorm:"column:work_item_uuid;index;type:char(36);not null;default:'';comment:empty before any handoff"`
	SessionID    string `gorm:"column:session_id;index;type:char(36);not null;comment:web participant session"`
	ClientName   string `gorm:"column:client_name;type:varchar(200)"`
	ClientPhone  string `gorm:"column:client_phone;type:varchar(20)"`
	OperatorUuid string `gorm:"column:operator_uuid;index;type:char(36);not null;default:''"`

	IsActive     bool `gorm:"column:is_active;index;not null;default:true"`
	IsHandedOver bool `gorm:"column:is_handed_over;not null;default:false"`

	Tags string `gorm:"column:tags;type:json"`

	CreatedAt     time.Time    `gorm:"column:created_at;not null"`
	ClosedAt      sql.NullTime `gorm:"column:closed_at"`
	LastMessageAt sql.NullTime `gorm:"column:last_message_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}
