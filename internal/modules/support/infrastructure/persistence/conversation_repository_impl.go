package persistence

import (
	"database/sql"
	"time"

	"ilpotaxi/internal/modules/support/domain/entity"
	"ilpotaxi/internal/modules/support/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type conversationRepositoryImpl struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) repository.ConversationRepository {
	return &conversationRepositoryImpl{db: db}
}

func (r *conversationRepositoryImpl) CreateWithMessages(conv *entity.Conversation, msgs []*entity.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// re-check inside the transaction; two concurrent handoffs for one
		// session must not both create a conversation. FOR UPDATE takes a
		// gap lock on the session_id index, serializing the inserts.
		var count int64
		err := tx.Model(&entity.Conversation{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ? AND is_active = ?", conv.SessionID, true).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return repository.ErrActiveConversationExists
		}

		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		return tx.Create(&msgs).Error
	})
}

func (r *conversationRepositoryImpl) GetByUuid(uuid string) (*entity.Conversation, error) {
	var conv entity.Conversation
	if err := r.db.Where("uuid = ?", uuid).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepositoryImpl) GetActiveBySessionID(sessionID string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Order("created_at DESC").
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepositoryImpl) ListActiveByOperator(operatorUuid string) ([]entity.Conversation, error) {
	var convs []entity.Conversation
	err := r.db.
		Where("operator_uuid = ? AND is_active = ?", operatorUuid, true).
		Order("created_at ASC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// Close relies on the is_active guard so two concurrent closes cannot both
// observe the flip.
func (r *conversationRepositoryImpl) Close(uuid string, at time.Time) (bool, error) {
	res := r.db.Model(&entity.Conversation{}).
		Where("uuid = ? AND is_active = ?", uuid, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"closed_at": sql.NullTime{Time: at, Valid: true},
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *conversationRepositoryImpl) UpdateLastMessageAt(uuid string, at time.Time) error {
	return r.db.Model(&entity.Conversation{}).
		Where("uuid = ?", uuid).
		Update("last_message_at", sql.NullTime{Time: at, Valid: true}).Error
}
