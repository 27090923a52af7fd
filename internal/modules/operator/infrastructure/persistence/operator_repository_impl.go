package persistence

import (
	"time"

	"ilpotaxi/internal/modules/operator/domain/entity"
	"ilpotaxi/internal/modules/operator/domain/repository"

	"gorm.io/gorm"
)

type operatorRepositoryImpl struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) repository.OperatorRepository {
	return &operatorRepositoryImpl{db: db}
}

func (r *operatorRepositoryImpl) Create(op *entity.Operator) error {
	return r.db.Create(op).Error
}

func (r *operatorRepositoryImpl) GetByUuid(uuid string) (*entity.Operator, error) {
	var op entity.Operator
	if err := r.db.Where("uuid = ?", uuid).First(&op).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *operatorRepositoryImpl) GetByUsername(username string) (*entity.Operator, error) {
	var op entity.Operator
	if err := r.db.Where("username = ?", username).First(&op).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *operatorRepositoryImpl) ListActiveByStatus(statuses []entity.OperatorStatus) ([]entity.Operator, error) {
	var ops []entity.Operator
	err := r.db.
		Where("is_active = ? AND status IN ?", true, statuses).
		Order("last_seen DESC").
		Find(&ops).Error
	if err != nil {
		return nil, err
	}
	return ops, nil
}

func (r *operatorRepositoryImpl) UpdateStatus(uuid string, status entity.OperatorStatus, seenAt time.Time) error {
	return r.db.Model(&entity.Operator{}).
		Where("uuid = ?", uuid).
		Updates(map[string]interface{}{"status": status, "last_seen": seenAt}).Error
}

func (r *operatorRepositoryImpl) UpdateProfile(op *entity.Operator) error {
	return r.db.Model(&entity.Operator{}).
		Where("uuid = ?", op.Uuid).
		Updates(map[string]interface{}{
			"first_name": op.FirstName,
			"last_name":  op.LastName,
			"phone":      op.Phone,
			"is_active":  op.IsActive,
			"last_seen":  time.Now(),
		}).Error
}

func (r *operatorRepositoryImpl) IncrementTotalHandled(uuid string) error {
	return r.db.Model(&entity.Operator{}).
		Where("uuid = ?", uuid).
		UpdateColumn("total_handled", gorm.Expr("total_handled + 1")).Error
}

func (r *operatorRepositoryImpl) RecordResponseSeconds(uuid string, seconds int) error {
	// single-statement running average, safe under concurrent replies
	return r.db.Model(&entity.Operator{}).
		Where("uuid = ?", uuid).
		UpdateColumns(map[string]interface{}{
			"avg_response_seconds": gorm.Expr("(avg_response_seconds * response_count + ?) DIV (response_count + 1)", seconds),
			"response_count":       gorm.Expr("response_count + 1"),
		}).Error
}

func (r *operatorRepositoryImpl) Deactivate(uuid string) error {
	return r.db.Model(&entity.Operator{}).
		Where("uuid = ?", uuid).
		Updates(map[string]interface{}{"is_active": false, "status": entity.StatusOffline}).Error
}
