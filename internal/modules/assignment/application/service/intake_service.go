package service

import (
	"context"
	"errors"
	"time"

	"ilpotaxi/internal/config"
	assignmentRequest "ilpotaxi/internal/modules/assignment/application/dto/request"
	assignmentRespond "ilpotaxi/internal/modules/assignment/application/dto/respond"
	"ilpotaxi/internal/modules/assignment/domain/entity"
	"ilpotaxi/internal/modules/assignment/domain/repository"
	"ilpotaxi/pkg/util"
	"ilpotaxi/pkg/xerr"
	"ilpotaxi/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IntakeService turns inbound signup forms into work items and feeds the
// engine when auto-assign is on.
type IntakeService interface {
	CreateApplication(ctx context.Context, req assignmentRequest.CreateApplicationRequest) (*assignmentRespond.ApplicationItem, error)
	GetApplicationByWorkItem(workItemUuid string) (*assignmentRespond.ApplicationItem, error)
	ListOperatorWorkItems(operatorUuid string, limit int) ([]assignmentRespond.WorkItemItem, error)
	ListUnassignedWorkItems(limit int) ([]assignmentRespond.WorkItemItem, error)
}

type intakeServiceImpl struct {
	workItemRepo repository.WorkItemRepository
	appRepo      repository.ApplicationRepository
	engine       Engine
	conf         *config.Config
}

func NewIntakeService(
	workItemRepo repository.WorkItemRepository,
	appRepo repository.ApplicationRepository,
	engine Engine,
	conf *config.Config,
) IntakeService {
	return &intakeServiceImpl{
		workItemRepo: workItemRepo,
		appRepo:      appRepo,
		engine:       engine,
		conf:         conf,
	}
}

func (s *intakeServiceImpl) CreateApplication(ctx context.Context, req assignmentRequest.CreateApplicationRequest) (*assignmentRespond.ApplicationItem, error) {
	category := entity.ApplicationCategory(req.Category)
	if !category.Valid() {
		return nil, xerr.New(xerr.BadRequest, "unknown category")
	}

	now := time.Now()
	item := &entity.WorkItem{
		Uuid:      util.GenerateUUID(),
		Kind:      entity.KindApplication,
		Status:    entity.StatusNew,
		CreatedAt: now,
	}
	if err := s.workItemRepo.Create(item); err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	app := &entity.Application{
		Uuid:           util.GenerateUUID(),
		WorkItemUuid:   item.Uuid,
		FullName:       req.FullName,
		Phone:          req.Phone,
		Age:            req.Age,
		City:           req.City,
		Category:       category,
		Experience:     req.Experience,
		Transport:      req.Transport,
		LoadCapacity:   req.LoadCapacity,
		AdditionalInfo: req.AdditionalInfo,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.appRepo.Create(app); err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	if s.conf.SupportConfig.AutoAssign {
		// a NoCapacity result keeps the item NEW for the sweep to retry
		if _, err := s.engine.Assign(ctx, item.Uuid); err != nil && !xerr.Is(err, xerr.NoCapacity) {
			zlog.Warn("auto-assign failed", zap.String("workItem", item.Uuid), zap.Error(err))
		}
	}

	return s.toApplicationItem(app, item), nil
}

func (s *intakeServiceImpl) GetApplicationByWorkItem(workItemUuid string) (*assignmentRespond.ApplicationItem, error) {
	app, err := s.appRepo.GetByWorkItemUuid(workItemUuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrNotFound
		}
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	item, err := s.workItemRepo.GetByUuid(workItemUuid)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	return s.toApplicationItem(app, item), nil
}

func (s *intakeServiceImpl) ListOperatorWorkItems(operatorUuid string, limit int) ([]assignmentRespond.WorkItemItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, err := s.workItemRepo.ListByOperator(operatorUuid, limit)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	return toWorkItemItems(items), nil
}

func (s *intakeServiceImpl) ListUnassignedWorkItems(limit int) ([]assignmentRespond.WorkItemItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, err := s.workItemRepo.ListUnassigned(nil, limit)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	return toWorkItemItems(items), nil
}

func (s *intakeServiceImpl) toApplicationItem(app *entity.Application, item *entity.WorkItem) *assignmentRespond.ApplicationItem {
	out := &assignmentRespond.ApplicationItem{
		Uuid:           app.Uuid,
		WorkItemUuid:   app.WorkItemUuid,
		FullName:       app.FullName,
		Phone:          app.Phone,
		Age:            app.Age,
		City:           app.City,
		Category:       string(app.Category),
		Experience:     app.Experience,
		Transport:      app.Transport,
		LoadCapacity:   app.LoadCapacity,
		AdditionalInfo: app.AdditionalInfo,
		Notes:          app.Notes,
		CreatedAt:      app.CreatedAt.Format(time.RFC3339),
	}
	if item != nil {
		out.Status = string(item.Status)
	}
	return out
}

func toWorkItemItems(items []entity.WorkItem) []assignmentRespond.WorkItemItem {
	out := make([]assignmentRespond.WorkItemItem, 0, len(items))
	for _, item := range items {
		it := assignmentRespond.WorkItemItem{
			Uuid:                 item.Uuid,
			Kind:                 string(item.Kind),
			Status:               string(item.Status),
			AssignedOperatorUuid: item.AssignedOperatorUuid,
			SessionID:            item.SessionID,
			CreatedAt:            item.CreatedAt.Format(time.RFC3339),
		}
		if item.AssignedAt.Valid {
			it.AssignedAt = item.AssignedAt.Time.Format(time.RFC3339)
		}
		if item.CompletedAt.Valid {
			it.CompletedAt = item.CompletedAt.Time.Format(time.RFC3339)
		}
		out = append(out, it)
	}
	return out
}
