package service

import (
	"context"
	"errors"
	"time"

	assignmentService "ilpotaxi/internal/modules/assignment/application/service"
	assignmentEntity "ilpotaxi/internal/modules/assignment/domain/entity"
	assignmentRepo "ilpotaxi/internal/modules/assignment/domain/repository"
	"ilpotaxi/internal/modules/assistant/domain/session"
	operatorService "ilpotaxi/internal/modules/operator/application/service"
	"ilpotaxi/internal/modules/operator/domain/capacity"
	supportRespond "ilpotaxi/internal/modules/support/application/dto/respond"
	"ilpotaxi/internal/modules/support/domain/entity"
	"ilpotaxi/internal/modules/support/domain/gateway"
	"ilpotaxi/internal/modules/support/domain/repository"
	"ilpotaxi/internal/modules/support/infrastructure/notify"
	"ilpotaxi/pkg/metrics"
	"ilpotaxi/pkg/util"
	"ilpotaxi/pkg/xerr"
	"ilpotaxi/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HandoffService moves a web session from the assistant to a human operator.
type HandoffService interface {
	// Transfer is idempotent per session: a second call while a handed-over
	// conversation is active returns that conversation. NoCapacity leaves
	// the session with the assistant.
	Transfer(ctx context.Context, sessionID, clientName, clientPhone string) (*supportRespond.ConversationItem, error)
	// CompleteForWorkItem finishes a handoff for a chat work item that was
	// assigned outside Transfer (sweep or explicit TAKE). No-op when the
	// session already has an active conversation.
	CompleteForWorkItem(ctx context.Context, item *assignmentEntity.WorkItem) (*entity.Conversation, error)
}

type handoffServiceImpl struct {
	convRepo     repository.ConversationRepository
	workItemRepo assignmentRepo.WorkItemRepository
	engine       assignmentService.Engine
	operators    operatorService.OperatorService
	counter      capacity.Counter
	store        *session.Store
	notifier     *notify.Notifier
	clients      gateway.ClientGateway
	metrics      *metrics.Metrics
}

func NewHandoffService(
	convRepo repository.ConversationRepository,
	workItemRepo assignmentRepo.WorkItemRepository,
	engine assignmentService.Engine,
	operators operatorService.OperatorService,
	counter capacity.Counter,
	store *session.Store,
	notifier *notify.Notifier,
	clients gateway.ClientGateway,
	m *metrics.Metrics,
) HandoffService {
	return &handoffServiceImpl{
		convRepo:     convRepo,
		workItemRepo: workItemRepo,
		engine:       engine,
		operators:    operators,
		counter:      counter,
		store:        store,
		notifier:     notifier,
		clients:      clients,
		metrics:      m,
	}
}

func (s *handoffServiceImpl) Transfer(ctx context.Context, sessionID, clientName, clientPhone string) (*supportRespond.ConversationItem, error) {
	if sessionID == "" {
		return nil, xerr.ErrParam
	}
	started := time.Now()

	// a session already talking to an operator keeps its conversation
	if conv, err := s.convRepo.GetActiveBySessionID(sessionID); err == nil && conv.IsHandedOver {
		return s.toItem(conv), nil
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	s.store.Create(sessionID, clientName, clientPhone)

	item := &assignmentEntity.WorkItem{
		Uuid:      util.GenerateUUID(),
		Kind:      assignmentEntity.KindChat,
		Status:    assignmentEntity.StatusNew,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}
	if err := s.workItemRepo.Create(item); err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	res, err := s.engine.Assign(ctx, item.Uuid)
	if err != nil {
		if xerr.Is(err, xerr.NoCapacity) {
			// nobody free: withdraw the item so the session stays with the
			// assistant instead of queueing silently
			if ok, cErr := s.workItemRepo.TransitionStatus(item.Uuid, assignmentEntity.StatusNew, assignmentEntity.StatusCancelled, time.Now()); cErr != nil || !ok {
				zlog.Warn("could not withdraw unassignable chat item", zap.String("workItem", item.Uuid))
			}
			return nil, xerr.ErrNoCapacity
		}
		return nil, err
	}

	item.AssignedOperatorUuid = res.OperatorUuid
	item.Status = assignmentEntity.StatusAssigned
	conv, err := s.complete(ctx, item, clientName, clientPhone)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.HandoffDuration.Observe(time.Since(started).Seconds())
	}
	return s.toItem(conv), nil
}

func (s *handoffServiceImpl) CompleteForWorkItem(ctx context.Context, item *assignmentEntity.WorkItem) (*entity.Conversation, error) {
	if item.Kind != assignmentEntity.KindChat || item.SessionID == "" || item.AssignedOperatorUuid == "" {
		return nil, xerr.ErrParam
	}
	if conv, err := s.convRepo.GetActiveBySessionID(item.SessionID); err == nil {
		return conv, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	return s.complete(ctx, item, "", "")
}

// complete freezes the session transcript, persists the conversation with it
// in one transaction and tells both sides.
func (s *handoffServiceImpl) complete(ctx context.Context, item *assignmentEntity.WorkItem, clientName, clientPhone string) (*entity.Conversation, error) {
	snap, ok := s.store.Snapshot(item.SessionID)
	if !ok {
		sess := s.store.Create(item.SessionID, clientName, clientPhone)
		snap, _ = s.store.Snapshot(sess.ID)
	}
	if clientName == "" {
		clientName = snap.ClientName
	}
	if clientPhone == "" {
		clientPhone = snap.ClientPhone
	}

	op, err := s.operators.GetByUuid(item.AssignedOperatorUuid)
	if err != nil {
		s.store.Release(item.SessionID)
		return nil, err
	}

	now := time.Now()
	conv := &entity.Conversation{
		Uuid:         util.GenerateUUID(),
		WorkItemUuid: item.Uuid,
		SessionID:    item.SessionID,
		ClientName:   clientName,
		ClientPhone:  clientPhone,
		OperatorUuid: op.Uuid,
		IsActive:     true,
		IsHandedOver: true,
		CreatedAt:    now,
	}
	msgs := snapshotMessages(conv.Uuid, snap)

	if err := s.convRepo.CreateWithMessages(conv, msgs); err != nil {
		if errors.Is(err, repository.ErrActiveConversationExists) {
			return s.yieldToExisting(ctx, item)
		}
		s.store.Release(item.SessionID)
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	s.store.MarkHandedOver(item.SessionID)

	if ok, err := s.workItemRepo.TransitionStatus(item.Uuid, assignmentEntity.StatusAssigned, assignmentEntity.StatusInProgress, now); err != nil || !ok {
		zlog.Warn("chat item did not enter in_progress", zap.String("workItem", item.Uuid))
	}
	if s.metrics != nil {
		s.metrics.ActiveConversations.Inc()
	}

	s.notifier.Fire(gateway.OperatorNotification{
		Type:             gateway.NotifyHandoff,
		OperatorUuid:     op.Uuid,
		WorkItemUuid:     item.Uuid,
		WorkItemKind:     string(item.Kind),
		ConversationUuid: conv.Uuid,
		SenderName:       clientName,
		OccurredAt:       now,
	})

	greeting := "Вас приветствует оператор " + operatorDisplayName(op.FirstName, op.Username) + ". Чем могу помочь?"
	if err := s.clients.Send(item.SessionID, gateway.ClientPayload{
		Type:             gateway.NotifyHandoff,
		SessionID:        item.SessionID,
		ConversationUuid: conv.Uuid,
		Sender:           "system",
		Text:             greeting,
		Timestamp:        now.Format(time.RFC3339),
	}); err != nil {
		zlog.Warn("handoff greeting not delivered", zap.String("session", item.SessionID), zap.Error(err))
	}

	return conv, nil
}

// yieldToExisting resolves a lost race on the active-conversation uniqueness
// check: another handoff for the same session committed first. The losing
// item is withdrawn and its capacity slot freed, unless both handoffs landed
// on the same operator and the slot is shared with the live conversation.
func (s *handoffServiceImpl) yieldToExisting(ctx context.Context, item *assignmentEntity.WorkItem) (*entity.Conversation, error) {
	existing, err := s.convRepo.GetActiveBySessionID(item.SessionID)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	if existing.OperatorUuid != item.AssignedOperatorUuid {
		slot := assignmentService.CapacitySlot(item)
		if err := s.counter.Decrement(ctx, item.AssignedOperatorUuid, slot); err != nil {
			zlog.Warn("capacity slot not released after lost handoff",
				zap.String("operator", item.AssignedOperatorUuid), zap.String("slot", slot), zap.Error(err))
		}
	}
	if ok, err := s.workItemRepo.TransitionStatus(item.Uuid, assignmentEntity.StatusAssigned, assignmentEntity.StatusCancelled, time.Now()); err != nil || !ok {
		zlog.Warn("duplicate chat item not withdrawn", zap.String("workItem", item.Uuid))
	}
	return existing, nil
}

func snapshotMessages(conversationUuid string, snap session.Snapshot) []*entity.Message {
	msgs := make([]*entity.Message, 0, len(snap.History))
	for _, turn := range snap.History {
		kind := entity.SenderClient
		switch turn.Role {
		case "assistant":
			kind = entity.SenderAssistant
		case "system":
			kind = entity.SenderSystem
		}
		msgs = append(msgs, &entity.Message{
			Uuid:             util.GenerateUUID(),
			ConversationUuid: conversationUuid,
			SenderKind:       kind,
			SenderName:       snap.ClientName,
			Text:             turn.Text,
			CreatedAt:        turn.At,
		})
	}
	return msgs
}

func operatorDisplayName(firstName, username string) string {
	if firstName != "" {
		return firstName
	}
	return username
}

func (s *handoffServiceImpl) toItem(conv *entity.Conversation) *supportRespond.ConversationItem {
	item := &supportRespond.ConversationItem{
		Uuid:         conv.Uuid,
		WorkItemUuid: conv.WorkItemUuid,
		SessionID:    conv.SessionID,
		ClientName:   conv.ClientName,
		OperatorUuid: conv.OperatorUuid,
		IsActive:     conv.IsActive,
		CreatedAt:    conv.CreatedAt,
	}
	if op, err := s.operators.GetByUuid(conv.OperatorUuid); err == nil {
		item.OperatorName = operatorDisplayName(op.FirstName, op.Username)
	}
	return item
}
