package entity

import (
	"time"
)

// SenderKind is the closed set of message authors.
type SenderKind string

const (
	SenderClient    SenderKind = "client"
	SenderOperator  SenderKind = "operator"
	SenderSystem    SenderKind = "system"
	SenderAssistant SenderKind = "assistant"
)

func (k SenderKind) Valid() bool {
	switch k {
	case SenderClient, SenderOperator, SenderSystem, SenderAssistant:
		return true
	}
	return false
}

// Message is append-only: rows are never mutated after creation, except the
// read mark.
type Message struct {
	Id               int64      `gorm:"column:id;primaryKey"`
	Uuid             string     `gorm:"column:uuid;uniqueIndex;type:char(36);not null"`
	ConversationUuid string     `gorm:"column:conversation_uuid;index;type:char(36);not null"`
	SenderKind       SenderKind `gorm:"column:sender_kind;type:varchar(16);not null"`
	SenderName       string     `gorm:"column:sender_name;type:varchar(200)"`
	Text             string     `gorm:"column:text;type:text;not null"`
	IsRead           bool       `gorm:"column:is_read;not null;default:false"`
	CreatedAt        time.Time  `gorm:"column:created_at;index;not null"`
}

func (Message) TableName() string {
	return "conversation_messages"
}
