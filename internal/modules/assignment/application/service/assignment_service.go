package service

import (
	"context"
	"errors"
	"time"

	"ilpotaxi/internal/config"
	"ilpotaxi/internal/modules/assignment/domain/entity"
	"ilpotaxi/internal/modules/assignment/domain/repository"
	operatorService "ilpotaxi/internal/modules/operator/application/service"
	"ilpotaxi/internal/modules/operator/domain/capacity"
	"ilpotaxi/internal/modules/support/domain/gateway"
	"ilpotaxi/internal/modules/support/infrastructure/notify"
	"ilpotaxi/pkg/metrics"
	"ilpotaxi/pkg/xerr"
	"ilpotaxi/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AssignmentResult reports a successful claim.
type AssignmentResult struct {
	WorkItemUuid string
	OperatorUuid string
	OperatorName string
}

// Engine selects an eligible operator for a work item and performs the
// atomic claim. Safe to call concurrently and repeatedly from the sweep.
type Engine interface {
	Assign(ctx context.Context, workItemUuid string) (*AssignmentResult, error)
	// AssignTo claims the item for one specific operator, still bounded by
	// that operator's capacity. Backs the explicit TAKE action.
	AssignTo(ctx context.Context, workItemUuid, operatorUuid string) (*AssignmentResult, error)
	// SweepOnce tries to assign every unassigned NEW item once.
	SweepOnce(ctx context.Context) int
	// RunSweep loops SweepOnce until ctx is cancelled.
	RunSweep(ctx context.Context)
	// OnAssigned registers a callback invoked for items assigned by the
	// sweep. Direct Assign/AssignTo callers handle their own follow-up.
	OnAssigned(cb func(ctx context.Context, item *entity.WorkItem, res *AssignmentResult))
}

type engineImpl struct {
	workItemRepo repository.WorkItemRepository
	operators    operatorService.OperatorService
	counter      capacity.Counter
	notifier     *notify.Notifier
	metrics      *metrics.Metrics
	conf         *config.Config

	onAssigned func(ctx context.Context, item *entity.WorkItem, res *AssignmentResult)
}

func NewEngine(
	workItemRepo repository.WorkItemRepository,
	operators operatorService.OperatorService,
	counter capacity.Counter,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	conf *config.Config,
) Engine {
	return &engineImpl{
		workItemRepo: workItemRepo,
		operators:    operators,
		counter:      counter,
		notifier:     notifier,
		metrics:      m,
		conf:         conf,
	}
}

func (e *engineImpl) Assign(ctx context.Context, workItemUuid string) (*AssignmentResult, error) {
	item, err := e.workItemRepo.GetByUuid(workItemUuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrNotFound
		}
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	// the sweep may race a direct call; an item that already carries an
	// operator must never be assigned again
	if item.AssignedOperatorUuid != "" || item.Status != entity.StatusNew {
		e.count(item.Kind, "already_assigned")
		return nil, xerr.ErrAlreadyAssigned
	}

	includeBusy := item.Kind == entity.KindChat && e.conf.SupportConfig.AllowBusyForChat
	candidates, err := e.operators.ListEligible(ctx, includeBusy)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		e.count(item.Kind, "no_capacity")
		return nil, xerr.ErrNoCapacity
	}

	for _, cand := range candidates {
		res, err := e.tryClaim(ctx, item, cand)
		if err != nil {
			if xerr.Is(err, xerr.AlreadyAssigned) {
				e.count(item.Kind, "already_assigned")
				return nil, err
			}
			// candidate was full after the re-check, move on
			continue
		}
		e.count(item.Kind, "assigned")
		return res, nil
	}

	e.count(item.Kind, "no_capacity")
	return nil, xerr.ErrNoCapacity
}

func (e *engineImpl) AssignTo(ctx context.Context, workItemUuid, operatorUuid string) (*AssignmentResult, error) {
	item, err := e.workItemRepo.GetByUuid(workItemUuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrNotFound
		}
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	if item.AssignedOperatorUuid != "" || item.Status != entity.StatusNew {
		e.count(item.Kind, "already_assigned")
		return nil, xerr.ErrAlreadyAssigned
	}

	op, err := e.operators.GetByUuid(operatorUuid)
	if err != nil {
		return nil, err
	}
	count, err := e.counter.ActiveCount(ctx, op.Uuid)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	if count >= op.MaxActiveConversations {
		e.count(item.Kind, "no_capacity")
		return nil, xerr.ErrNoCapacity
	}

	res, err := e.tryClaim(ctx, item, operatorService.Candidate{Operator: *op, ActiveCount: count})
	if err != nil {
		switch {
		case xerr.Is(err, xerr.AlreadyAssigned):
			e.count(item.Kind, "already_assigned")
		case xerr.Is(err, xerr.NoCapacity):
			e.count(item.Kind, "no_capacity")
		}
		return nil, err
	}
	e.count(item.Kind, "assigned")
	return res, nil
}

func (e *engineImpl) OnAssigned(cb func(ctx context.Context, item *entity.WorkItem, res *AssignmentResult)) {
	e.onAssigned = cb
}

// tryClaim increments the shared counter first, re-reads the cardinality and
// rolls the member back when the operator filled up in between. Only then is
// the guarded UPDATE attempted, so activeCount can never exceed the cap.
func (e *engineImpl) tryClaim(ctx context.Context, item *entity.WorkItem, cand operatorService.Candidate) (*AssignmentResult, error) {
	slot := CapacitySlot(item)
	if err := e.counter.Increment(ctx, cand.Operator.Uuid, slot); err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	count, err := e.counter.ActiveCount(ctx, cand.Operator.Uuid)
	if err != nil {
		_ = e.counter.Decrement(ctx, cand.Operator.Uuid, slot)
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	if count > cand.Operator.MaxActiveConversations {
		_ = e.counter.Decrement(ctx, cand.Operator.Uuid, slot)
		return nil, xerr.New(xerr.NoCapacity, "candidate filled up")
	}

	now := time.Now()
	claimed, err := e.workItemRepo.Claim(item.Uuid, cand.Operator.Uuid, now)
	if err != nil {
		_ = e.counter.Decrement(ctx, cand.Operator.Uuid, slot)
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	if !claimed {
		_ = e.counter.Decrement(ctx, cand.Operator.Uuid, slot)
		return nil, xerr.ErrAlreadyAssigned
	}

	if err := e.operators.RecordHandled(cand.Operator.Uuid); err != nil {
		zlog.Warn("failed to bump operator totals", zap.Error(err))
	}

	e.notifier.Fire(gateway.OperatorNotification{
		Type:         gateway.NotifyAssignment,
		OperatorUuid: cand.Operator.Uuid,
		WorkItemUuid: item.Uuid,
		WorkItemKind: string(item.Kind),
		OccurredAt:   now,
	})

	return &AssignmentResult{
		WorkItemUuid: item.Uuid,
		OperatorUuid: cand.Operator.Uuid,
		OperatorName: cand.Operator.FirstName,
	}, nil
}

func (e *engineImpl) SweepOnce(ctx context.Context) int {
	items, err := e.workItemRepo.ListUnassigned(nil, 50)
	if err != nil {
		zlog.Error("sweep list failed", zap.Error(err))
		return 0
	}
	assigned := 0
	for i := range items {
		item := &items[i]
		if ctx.Err() != nil {
			return assigned
		}
		if res, err := e.Assign(ctx, item.Uuid); err == nil {
			assigned++
			if e.onAssigned != nil {
				e.onAssigned(ctx, item, res)
			}
		} else if xerr.Is(err, xerr.NoCapacity) {
			// nobody is free, the rest of the batch will not fare better
			return assigned
		}
	}
	return assigned
}

func (e *engineImpl) RunSweep(ctx context.Context) {
	interval := time.Duration(e.conf.SupportConfig.SweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	zlog.Info("assignment sweep started")
	for {
		select {
		case <-ctx.Done():
			zlog.Info("assignment sweep stopped")
			return
		case <-ticker.C:
			if n := e.SweepOnce(ctx); n > 0 {
				zlog.Info("sweep assigned pending work items")
			}
		}
	}
}

func (e *engineImpl) count(kind entity.WorkItemKind, outcome string) {
	if e.metrics != nil {
		e.metrics.AssignmentsTotal.WithLabelValues(string(kind), outcome).Inc()
	}
}

// CapacitySlot identifies the slot a work item occupies in the shared
// counter. Chat items use the session id so the handoff and close paths bind
// the conversation to the same slot; applications use the item uuid. The
// release side must use the same derivation.
func CapacitySlot(item *entity.WorkItem) string {
	if item.Kind == entity.KindChat && item.SessionID != "" {
		return item.SessionID
	}
	return item.Uuid
}
