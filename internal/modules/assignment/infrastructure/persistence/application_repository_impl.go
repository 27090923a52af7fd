package persistence

import (
	"ilpotaxi/internal/modules/assignment/domain/entity"
	"ilpotaxi/internal/modules/assignment/domain/repository"

	"gorm.io/gorm"
)

type applicationRepositoryImpl struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) repository.ApplicationRepository {
	return &applicationRepositoryImpl{db: db}
}

func (r *applicationRepositoryImpl) Create(app *entity.Application) error {
	return r.db.Create(app).Error
}

func (r *applicationRepositoryImpl) GetByWorkItemUuid(workItemUuid string) (*entity.Application, error) {
	var app entity.Application
	if err := r.db.Where("work_item_uuid = ?", workItemUuid).First(&app).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepositoryImpl) UpdateNotes(uuid, notes string) error {
	return r.db.Model(&entity.Application{}).
		Where("uuid = ?", uuid).
		Update("notes", notes).Error
}
