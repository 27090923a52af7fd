package persistence

import (
	"ilpotaxi/internal/modules/support/domain/entity"
	"ilpotaxi/internal/modules/support/domain/repository"

	"gorm.io/gorm"
)

type messageRepositoryImpl struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &messageRepositoryImpl{db: db}
}

func (r *messageRepositoryImpl) Create(msg *entity.Message) error {
	return r.db.Create(msg).Error
}

func (r *messageRepositoryImpl) ListByConversation(conversationUuid string, limit int) ([]entity.Message, error) {
	var msgs []entity.Message
	q := r.db.
		Where("conversation_uuid = ?", conversationUuid).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepositoryImpl) CountBySender(conversationUuid string, sender entity.SenderKind) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Message{}).
		Where("conversation_uuid = ? AND sender_kind = ?", conversationUuid, sender).
		Count(&count).Error
	return count, err
}

func (r *messageRepositoryImpl) MarkRead(conversationUuid string, sender entity.SenderKind) error {
	return r.db.Model(&entity.Message{}).
		Where("conversation_uuid = ? AND sender_kind = ? AND is_read = ?", conversationUuid, sender, false).
		Update("is_read", true).Error
}
