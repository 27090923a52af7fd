package persistence

import (
	"database/sql"
	"time"

	"ilpotaxi/internal/modules/assignment/domain/entity"
	"ilpotaxi/internal/modules/assignment/domain/repository"

	"gorm.io/gorm"
)

type workItemRepositoryImpl struct {
	db *gorm.DB
}

func NewWorkItemRepository(db *gorm.DB) repository.WorkItemRepository {
	return &workItemRepositoryImpl{db: db}
}

func (r *workItemRepositoryImpl) Create(item *entity.WorkItem) error {
	return r.db.Create(item).Error
}

func (r *workItemRepositoryImpl) GetByUuid(uuid string) (*entity.WorkItem, error) {
	var item entity.WorkItem
	if err := r.db.Where("uuid = ?", uuid).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *workItemRepositoryImpl) ListUnassigned(kind *entity.WorkItemKind, limit int) ([]entity.WorkItem, error) {
	q := r.db.Where("status = ? AND assigned_operator_uuid = ''", entity.StatusNew)
	if kind != nil {
		q = q.Where("kind = ?", *kind)
	}
	var items []entity.WorkItem
	if err := q.Order("created_at ASC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *workItemRepositoryImpl) ListByOperator(operatorUuid string, limit int) ([]entity.WorkItem, error) {
	var items []entity.WorkItem
	err := r.db.
		Where("assigned_operator_uuid = ?", operatorUuid).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Claim is the single-writer step: the WHERE guard loses against any
// concurrent claim that already set the operator.
func (r *workItemRepositoryImpl) Claim(uuid, operatorUuid string, at time.Time) (bool, error) {
	res := r.db.Model(&entity.WorkItem{}).
		Where("uuid = ? AND status = ? AND assigned_operator_uuid = ''", uuid, entity.StatusNew).
		Updates(map[string]interface{}{
			"assigned_operator_uuid": operatorUuid,
			"status":                 entity.StatusAssigned,
			"assigned_at":            sql.NullTime{Time: at, Valid: true},
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *workItemRepositoryImpl) TransitionStatus(uuid string, from, to entity.WorkItemStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if to.Terminal() {
		updates["completed_at"] = sql.NullTime{Time: at, Valid: true}
	}
	res := r.db.Model(&entity.WorkItem{}).
		Where("uuid = ? AND status = ?", uuid, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
