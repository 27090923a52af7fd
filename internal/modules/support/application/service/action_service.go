package service

import (
	"context"
	"errors"
	"strings"
	"time"

	assignmentService "ilpotaxi/internal/modules/assignment/application/service"
	assignmentEntity "ilpotaxi/internal/modules/assignment/domain/entity"
	assignmentRepo "ilpotaxi/internal/modules/assignment/domain/repository"
	operatorService "ilpotaxi/internal/modules/operator/application/service"
	"ilpotaxi/internal/modules/operator/domain/capacity"
	operatorEntity "ilpotaxi/internal/modules/operator/domain/entity"
	supportRequest "ilpotaxi/internal/modules/support/application/dto/request"
	"ilpotaxi/internal/modules/support/domain/repository"
	"ilpotaxi/pkg/metrics"
	"ilpotaxi/pkg/util"
	"ilpotaxi/pkg/xerr"
	"ilpotaxi/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Action names accepted from the HTTP API and the Kafka events topic.
const (
	ActionTake      = "TAKE"
	ActionComplete  = "COMPLETE"
	ActionCancel    = "CANCEL"
	ActionClose     = "CLOSE"
	ActionSetStatus = "SET_STATUS"
	ActionReply     = "REPLY"
	ActionTyping    = "TYPING"
)

// ActionService executes operator commands. Both transports feed it, so the
// rules live here and nowhere else.
type ActionService interface {
	Dispatch(ctx context.Context, req supportRequest.OperatorActionRequest) error
	Take(ctx context.Context, operatorUuid, workItemUuid string) error
	Complete(ctx context.Context, operatorUuid, workItemUuid string) error
	Cancel(ctx context.Context, operatorUuid, workItemUuid string) error
	// SetStatus applies presence. Going offline drains the operator: every
	// active conversation is closed, its slot released and a fresh chat work
	// item queued so another operator picks the client up.
	SetStatus(ctx context.Context, operatorUuid string, status operatorEntity.OperatorStatus) error
}

type actionServiceImpl struct {
	workItemRepo assignmentRepo.WorkItemRepository
	convRepo     repository.ConversationRepository
	engine       assignmentService.Engine
	operators    operatorService.OperatorService
	counter      capacity.Counter
	handoff      HandoffService
	relay        RelayService
	metrics      *metrics.Metrics
}

func NewActionService(
	workItemRepo assignmentRepo.WorkItemRepository,
	convRepo repository.ConversationRepository,
	engine assignmentService.Engine,
	operators operatorService.OperatorService,
	counter capacity.Counter,
	handoff HandoffService,
	relay RelayService,
	m *metrics.Metrics,
) ActionService {
	return &actionServiceImpl{
		workItemRepo: workItemRepo,
		convRepo:     convRepo,
		engine:       engine,
		operators:    operators,
		counter:      counter,
		handoff:      handoff,
		relay:        relay,
		metrics:      m,
	}
}

func (s *actionServiceImpl) Dispatch(ctx context.Context, req supportRequest.OperatorActionRequest) error {
	switch strings.ToUpper(strings.TrimSpace(req.Action)) {
	case ActionTake:
		return s.Take(ctx, req.OperatorUuid, req.WorkItemUuid)
	case ActionComplete:
		return s.Complete(ctx, req.OperatorUuid, req.WorkItemUuid)
	case ActionCancel:
		return s.Cancel(ctx, req.OperatorUuid, req.WorkItemUuid)
	case ActionClose:
		return s.relay.Close(ctx, req.ConversationUuid, req.OperatorUuid)
	case ActionSetStatus:
		status := operatorEntity.OperatorStatus(req.Status)
		if !status.Valid() {
			return xerr.ErrParam
		}
		return s.SetStatus(ctx, req.OperatorUuid, status)
	case ActionReply:
		_, err := s.relay.Relay(ctx, req.ConversationUuid, DirectionToClient, req.OperatorUuid, req.Text)
		return err
	case ActionTyping:
		return s.relay.NotifyTyping(req.ConversationUuid)
	default:
		return xerr.ErrParam
	}
}

func (s *actionServiceImpl) Take(ctx context.Context, operatorUuid, workItemUuid string) error {
	res, err := s.engine.AssignTo(ctx, workItemUuid, operatorUuid)
	if err != nil {
		return err
	}
	item, err := s.workItemRepo.GetByUuid(res.WorkItemUuid)
	if err != nil {
		zlog.Error(err.Error())
		return xerr.ErrServerError
	}
	if item.Kind == assignmentEntity.KindChat {
		if _, err := s.handoff.CompleteForWorkItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *actionServiceImpl) Complete(ctx context.Context, operatorUuid, workItemUuid string) error {
	return s.finish(ctx, operatorUuid, workItemUuid, assignmentEntity.StatusCompleted)
}

func (s *actionServiceImpl) Cancel(ctx context.Context, operatorUuid, workItemUuid string) error {
	return s.finish(ctx, operatorUuid, workItemUuid, assignmentEntity.StatusCancelled)
}

// finish drives a work item into a terminal state and releases its slot
// exactly once. For chat items the conversation close owns the release.
func (s *actionServiceImpl) finish(ctx context.Context, operatorUuid, workItemUuid string, terminal assignmentEntity.WorkItemStatus) error {
	item, err := s.workItemRepo.GetByUuid(workItemUuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return xerr.ErrNotFound
		}
		zlog.Error(err.Error())
		return xerr.ErrServerError
	}
	if item.AssignedOperatorUuid != "" && item.AssignedOperatorUuid != operatorUuid {
		return xerr.New(xerr.Forbidden, "work item belongs to another operator")
	}
	if !item.Status.CanTransitionTo(terminal) {
		return xerr.ErrInvalidTransition
	}

	now := time.Now()
	ok, err := s.workItemRepo.TransitionStatus(item.Uuid, item.Status, terminal, now)
	if err != nil {
		zlog.Error(err.Error())
		return xerr.ErrServerError
	}
	if !ok {
		// the row moved concurrently; whatever it moved to, this request's
		// precondition no longer holds
		return xerr.ErrInvalidTransition
	}

	if item.AssignedOperatorUuid == "" {
		return nil
	}
	if item.Kind == assignmentEntity.KindChat {
		conv, cErr := s.convRepo.GetActiveBySessionID(item.SessionID)
		switch {
		case cErr == nil:
			return s.relay.Close(ctx, conv.Uuid, "")
		case errors.Is(cErr, gorm.ErrRecordNotFound):
			// claimed but never handed over, the slot is still held
			return s.releaseSlot(ctx, item)
		default:
			zlog.Error(cErr.Error())
			return nil
		}
	}
	return s.releaseSlot(ctx, item)
}

func (s *actionServiceImpl) releaseSlot(ctx context.Context, item *assignmentEntity.WorkItem) error {
	slot := assignmentService.CapacitySlot(item)
	if err := s.counter.Decrement(ctx, item.AssignedOperatorUuid, slot); err != nil {
		zlog.Error("capacity slot not released", zap.String("workItem", item.Uuid), zap.Error(err))
	}
	return nil
}

func (s *actionServiceImpl) SetStatus(ctx context.Context, operatorUuid string, status operatorEntity.OperatorStatus) error {
	if err := s.operators.SetStatus(ctx, operatorUuid, status); err != nil {
		return err
	}
	if status != operatorEntity.StatusOffline {
		return nil
	}
	return s.requeue(ctx, operatorUuid)
}

// requeue drains an operator that went offline: conversations are closed,
// their slots released and a fresh NEW chat item queued per client so the
// engine hands each one to somebody else.
func (s *actionServiceImpl) requeue(ctx context.Context, operatorUuid string) error {
	convs, err := s.convRepo.ListActiveByOperator(operatorUuid)
	if err != nil {
		zlog.Error(err.Error())
		return xerr.ErrServerError
	}
	for i := range convs {
		conv := &convs[i]
		if err := s.relay.Close(ctx, conv.Uuid, ""); err != nil {
			zlog.Error("requeue close failed", zap.String("conversation", conv.Uuid), zap.Error(err))
			continue
		}
		if conv.WorkItemUuid != "" {
			s.cancelAbandoned(conv.WorkItemUuid)
		}

		item := &assignmentEntity.WorkItem{
			Uuid:      util.GenerateUUID(),
			Kind:      assignmentEntity.KindChat,
			Status:    assignmentEntity.StatusNew,
			SessionID: conv.SessionID,
			CreatedAt: time.Now(),
		}
		if err := s.workItemRepo.Create(item); err != nil {
			zlog.Error("requeue item not created", zap.String("session", conv.SessionID), zap.Error(err))
			continue
		}
		if s.metrics != nil {
			s.metrics.RequeuedWorkItemsTotal.Inc()
		}
		// best effort immediate pickup; otherwise the sweep gets it
		if res, aErr := s.engine.Assign(ctx, item.Uuid); aErr == nil {
			item.AssignedOperatorUuid = res.OperatorUuid
			item.Status = assignmentEntity.StatusAssigned
			if _, hErr := s.handoff.CompleteForWorkItem(ctx, item); hErr != nil {
				zlog.Warn("requeued handoff incomplete", zap.String("workItem", item.Uuid), zap.Error(hErr))
			}
		}
	}
	return nil
}

func (s *actionServiceImpl) cancelAbandoned(workItemUuid string) {
	item, err := s.workItemRepo.GetByUuid(workItemUuid)
	if err != nil {
		return
	}
	if item.Status.Terminal() {
		return
	}
	if ok, err := s.workItemRepo.TransitionStatus(item.Uuid, item.Status, assignmentEntity.StatusCancelled, time.Now()); err != nil || !ok {
		zlog.Warn("abandoned item not cancelled", zap.String("workItem", workItemUuid))
	}
}
