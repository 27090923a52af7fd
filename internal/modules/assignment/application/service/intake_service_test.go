package service

import (
	"context"
	"sync"
	"testing"
	"time"

	assignmentRequest "ilpotaxi/internal/modules/assignment/application/dto/request"
	"ilpotaxi/internal/modules/assignment/domain/entity"
	capacityImpl "ilpotaxi/internal/modules/operator/infrastructure/capacity"
	"ilpotaxi/internal/modules/support/infrastructure/notify"
	"ilpotaxi/pkg/metrics"
	"ilpotaxi/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memApplicationRepo struct {
	mu   sync.Mutex
	apps map[string]*entity.Application
}

func newMemApplicationRepo() *memApplicationRepo {
	return &memApplicationRepo{apps: make(map[string]*entity.Application)}
}

func (r *memApplicationRepo) Create(app *entity.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *app
	r.apps[app.WorkItemUuid] = &cp
	return nil
}

func (r *memApplicationRepo) GetByWorkItemUuid(workItemUuid string) (*entity.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[workItemUuid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *app
	return &cp, nil
}

func (r *memApplicationRepo) UpdateNotes(uuid, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, app := range r.apps {
		if app.Uuid == uuid {
			app.Notes = notes
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func signupRequest() assignmentRequest.CreateApplicationRequest {
	return assignmentRequest.CreateApplicationRequest{
		FullName: "Пётр Смирнов",
		Phone:    "+79995554433",
		Age:      31,
		City:     "Казань",
		Category: "driver",
	}
}

func TestCreateApplicationQueuesWorkItem(t *testing.T) {
	ctx := context.Background()
	repo := newMemWorkItemRepo()
	appRepo := newMemApplicationRepo()
	counter := capacityImpl.NewMemoryCounter()
	ops := newFakeOperatorService(counter)
	conf := testConfig()

	gw := &recordingGateway{}
	engine := NewEngine(repo, ops, counter, notify.NewNotifier(gw, 1, nil), metrics.NewMetrics(nil), conf)
	intake := NewIntakeService(repo, appRepo, engine, conf)

	item, err := intake.CreateApplication(ctx, signupRequest())
	require.NoError(t, err)
	assert.Equal(t, "new", item.Status)

	wi, err := repo.GetByUuid(item.WorkItemUuid)
	require.NoError(t, err)
	assert.Equal(t, entity.KindApplication, wi.Kind)
	assert.Equal(t, entity.StatusNew, wi.Status)

	app, err := appRepo.GetByWorkItemUuid(item.WorkItemUuid)
	require.NoError(t, err)
	assert.Equal(t, "Пётр Смирнов", app.FullName)
	assert.Equal(t, entity.CategoryDriver, app.Category)
}

func TestCreateApplicationAutoAssigns(t *testing.T) {
	ctx := context.Background()
	repo := newMemWorkItemRepo()
	appRepo := newMemApplicationRepo()
	counter := capacityImpl.NewMemoryCounter()
	ops := newFakeOperatorService(counter, onlineOperator("op-a", 5, time.Now()))
	conf := testConfig()
	conf.SupportConfig.AutoAssign = true

	gw := &recordingGateway{}
	engine := NewEngine(repo, ops, counter, notify.NewNotifier(gw, 1, nil), metrics.NewMetrics(nil), conf)
	intake := NewIntakeService(repo, appRepo, engine, conf)

	item, err := intake.CreateApplication(ctx, signupRequest())
	require.NoError(t, err)

	wi, err := repo.GetByUuid(item.WorkItemUuid)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAssigned, wi.Status)
	assert.Equal(t, "op-a", wi.AssignedOperatorUuid)
}

func TestCreateApplicationSurvivesNoCapacity(t *testing.T) {
	ctx := context.Background()
	repo := newMemWorkItemRepo()
	appRepo := newMemApplicationRepo()
	counter := capacityImpl.NewMemoryCounter()
	ops := newFakeOperatorService(counter)
	conf := testConfig()
	conf.SupportConfig.AutoAssign = true

	gw := &recordingGateway{}
	engine := NewEngine(repo, ops, counter, notify.NewNotifier(gw, 1, nil), metrics.NewMetrics(nil), conf)
	intake := NewIntakeService(repo, appRepo, engine, conf)

	item, err := intake.CreateApplication(ctx, signupRequest())
	require.NoError(t, err, "nobody free is not a signup failure")

	wi, err := repo.GetByUuid(item.WorkItemUuid)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusNew, wi.Status, "the sweep retries it later")
}

func TestCreateApplicationRejectsUnknownCategory(t *testing.T) {
	ctx := context.Background()
	repo := newMemWorkItemRepo()
	appRepo := newMemApplicationRepo()
	counter := capacityImpl.NewMemoryCounter()
	conf := testConfig()

	gw := &recordingGateway{}
	engine := NewEngine(repo, newFakeOperatorService(counter), counter, notify.NewNotifier(gw, 1, nil), metrics.NewMetrics(nil), conf)
	intake := NewIntakeService(repo, appRepo, engine, conf)

	req := signupRequest()
	req.Category = "astronaut"
	_, err := intake.CreateApplication(ctx, req)
	assert.True(t, xerr.Is(err, xerr.BadRequest))
}
