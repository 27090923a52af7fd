package persistence

import (
	"time"

	"ilpotaxi/internal/modules/operator/domain/entity"
	"ilpotaxi/internal/modules/operator/domain/repository"

	"gorm.io/gorm"
)

type workSessionRepositoryImpl struct {
	db *gorm.DB
}

func NewWorkSessionRepository(db *gorm.DB) repository.WorkSessionRepository {
	return &workSessionRepositoryImpl{db: db}
}

func (r *workSessionRepositoryImpl) Start(operatorUuid string, at time.Time) error {
	var count int64
	if err := r.db.Model(&entity.WorkSession{}).
		Where("operator_uuid = ? AND ended_at IS NULL", operatorUuid).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.Create(&entity.WorkSession{
		OperatorUuid: operatorUuid,
		StartedAt:    at,
	}).Error
}

func (r *workSessionRepositoryImpl) End(operatorUuid string, at time.Time) error {
	return r.db.Model(&entity.WorkSession{}).
		Where("operator_uuid = ? AND ended_at IS NULL", operatorUuid).
		Update("ended_at", at).Error
}

func (r *workSessionRepositoryImpl) TotalDurationSince(operatorUuid string, since time.Time) (time.Duration, error) {
	var sessions []entity.WorkSession
	if err := r.db.
		Where("operator_uuid = ? AND started_at >= ?", operatorUuid, since).
		Find(&sessions).Error; err != nil {
		return 0, err
	}
	var total time.Duration
	for _, s := range sessions {
		if s.EndedAt.Valid {
			total += s.EndedAt.Time.Sub(s.StartedAt)
		}
	}
	return total, nil
}
