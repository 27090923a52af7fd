package repository

import (
	"errors"
	"time"

	"ilpotaxi/internal/modules/support/domain/entity"
)

// ErrActiveConversationExists reports that the session already holds an open
// conversation; CreateWithMessages refuses to open a second one.
var ErrActiveConversationExists = errors.New("session already has an active conversation")

type ConversationRepository interface {
	// CreateWithMessages persists the conversation and its snapshot
	// transcript in one transaction. Returns ErrActiveConversationExists
	// when another active conversation already holds the session.
	CreateWithMessages(conv *entity.Conversation, msgs []*entity.Message) error
	GetByUuid(uuid string) (*entity.Conversation, error)
	GetActiveBySessionID(sessionID string) (*entity.Conversation, error)
	ListActiveByOperator(operatorUuid string) ([]entity.Conversation, error)
	// Close flips is_active exactly once. Returns false when the
	// conversation was already closed, making close idempotent for callers.
	Close(uuid string, at time.Time) (bool, error)
	UpdateLastMessageAt(uuid string, at time.Time) error
}

type MessageRepository interface {
	Create(msg *entity.Message) error
	ListByConversation(conversationUuid string, limit int) ([]entity.Message, error)
	CountBySender(conversationUuid string, sender entity.SenderKind) (int64, error)
	MarkRead(conversationUuid string, sender entity.SenderKind) error
}
