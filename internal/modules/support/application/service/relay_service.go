package service

import (
	"context"
	"errors"
	"time"

	"ilpotaxi/internal/config"
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

type RelayDirection string

const (
	DirectionToOperator RelayDirection = "client_to_operator"
	DirectionToClient   RelayDirection = "operator_to_client"
)

// RelayService carries messages across an open conversation and closes it.
type RelayService interface {
	// Relay appends the message and forwards it to the counterpart. The
	// message is durable even when forwarding fails; that case returns
	// xerr.TransportUnavailable with Delivered=false.
	Relay(ctx context.Context, conversationUuid string, direction RelayDirection, senderName, text string) (*supportRespond.DeliveryResult, error)
	// Close ends the conversation. Idempotent: the capacity slot is released
	// exactly once no matter how often it is called. actorOperatorUuid may
	// be empty for system-initiated closes.
	Close(ctx context.Context, conversationUuid, actorOperatorUuid string) error
	History(conversationUuid string, limit int, markRead bool) ([]supportRespond.MessageItem, error)
	// ActiveConversation resolves the open conversation of a web session.
	ActiveConversation(sessionID string) (*supportRespond.ConversationItem, error)
	ActiveConversations(operatorUuid string) ([]supportRespond.ConversationItem, error)
	// NotifyTyping pushes a transient typing indicator to the web side. Not
	// persisted, best effort.
	NotifyTyping(conversationUuid string) error
}

type relayServiceImpl struct {
	convRepo  repository.ConversationRepository
	msgRepo   repository.MessageRepository
	operators operatorService.OperatorService
	counter   capacity.Counter
	store     *session.Store
	notifier  *notify.Notifier
	clients   gateway.ClientGateway
	metrics   *metrics.Metrics
	conf      *config.Config
}

func NewRelayService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	operators operatorService.OperatorService,
	counter capacity.Counter,
	store *session.Store,
	notifier *notify.Notifier,
	clients gateway.ClientGateway,
	m *metrics.Metrics,
	conf *config.Config,
) RelayService {
	return &relayServiceImpl{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		operators: operators,
		counter:   counter,
		store:     store,
		notifier:  notifier,
		clients:   clients,
		metrics:   m,
		conf:      conf,
	}
}

func (s *relayServiceImpl) Relay(ctx context.Context, conversationUuid string, direction RelayDirection, senderName, text string) (*supportRespond.DeliveryResult, error) {
	if text == "" {
		return nil, xerr.ErrParam
	}
	conv, err := s.getConversation(conversationUuid)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive {
		return nil, xerr.ErrConversationClosed
	}

	sender := entity.SenderClient
	if direction == DirectionToClient {
		sender = entity.SenderOperator
	}
	firstReply := false
	if sender == entity.SenderOperator {
		prior, cErr := s.msgRepo.CountBySender(conv.Uuid, entity.SenderOperator)
		if cErr != nil {
			zlog.Warn("operator reply count unavailable", zap.String("conversation", conv.Uuid), zap.Error(cErr))
		} else {
			firstReply = prior == 0
		}
	}
	now := time.Now()
	msg := &entity.Message{
		Uuid:             util.GenerateUUID(),
		ConversationUuid: conv.Uuid,
		SenderKind:       sender,
		SenderName:       senderName,
		Text:             text,
		CreatedAt:        now,
	}
	if err := s.msgRepo.Create(msg); err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	if err := s.convRepo.UpdateLastMessageAt(conv.Uuid, now); err != nil {
		zlog.Warn("last_message_at not updated", zap.String("conversation", conv.Uuid), zap.Error(err))
	}
	if firstReply && conv.OperatorUuid != "" {
		seconds := int(now.Sub(conv.CreatedAt).Seconds())
		if seconds < 0 {
			seconds = 0
		}
		if err := s.operators.RecordResponse(conv.OperatorUuid, seconds); err != nil {
			zlog.Warn("response time not recorded", zap.String("operator", conv.OperatorUuid), zap.Error(err))
		}
	}
	s.store.Touch(conv.SessionID)

	result := &supportRespond.DeliveryResult{MessageUuid: msg.Uuid, Delivered: true}
	if err := s.forward(ctx, conv, direction, senderName, text, now); err != nil {
		s.countRelay(direction, "undelivered")
		result.Delivered = false
		return result, xerr.ErrTransportUnavailable
	}
	s.countRelay(direction, "delivered")
	return result, nil
}

func (s *relayServiceImpl) forward(ctx context.Context, conv *entity.Conversation, direction RelayDirection, senderName, text string, at time.Time) error {
	switch direction {
	case DirectionToClient:
		return s.clients.Send(conv.SessionID, gateway.ClientPayload{
			Type:             gateway.NotifyMessage,
			SessionID:        conv.SessionID,
			ConversationUuid: conv.Uuid,
			Sender:           "operator",
			Text:             text,
			Timestamp:        at.Format(time.RFC3339),
		})
	case DirectionToOperator:
		timeout := time.Duration(s.conf.SupportConfig.ForwardTimeoutSeconds) * time.Second
		fctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return s.notifier.Deliver(fctx, gateway.OperatorNotification{
			Type:             gateway.NotifyMessage,
			OperatorUuid:     conv.OperatorUuid,
			ConversationUuid: conv.Uuid,
			SenderName:       senderName,
			Text:             text,
			OccurredAt:       at,
		})
	default:
		return xerr.ErrParam
	}
}

func (s *relayServiceImpl) Close(ctx context.Context, conversationUuid, actorOperatorUuid string) error {
	conv, err := s.getConversation(conversationUuid)
	if err != nil {
		return err
	}
	if actorOperatorUuid != "" && actorOperatorUuid != conv.OperatorUuid {
		return xerr.New(xerr.Forbidden, "conversation belongs to another operator")
	}

	now := time.Now()
	closed, err := s.convRepo.Close(conv.Uuid, now)
	if err != nil {
		zlog.Error(err.Error())
		return xerr.ErrServerError
	}
	if !closed {
		// already closed earlier; the slot was released then
		return nil
	}

	// the chat slot is keyed by session id, matching the claim side
	if conv.OperatorUuid != "" {
		if err := s.counter.Decrement(ctx, conv.OperatorUuid, conv.SessionID); err != nil {
			zlog.Error("capacity slot not released", zap.String("operator", conv.OperatorUuid), zap.Error(err))
		}
	}
	s.store.MarkResumed(conv.SessionID)
	if s.metrics != nil {
		s.metrics.ActiveConversations.Dec()
	}

	if err := s.clients.Send(conv.SessionID, gateway.ClientPayload{
		Type:             gateway.NotifyClosed,
		SessionID:        conv.SessionID,
		ConversationUuid: conv.Uuid,
		Sender:           "system",
		Text:             "Диалог с оператором завершён, возвращаю вас к автоматическому ассистенту. 🤖",
		Timestamp:        now.Format(time.RFC3339),
	}); err != nil {
		zlog.Warn("close notice not delivered", zap.String("session", conv.SessionID), zap.Error(err))
	}
	if conv.OperatorUuid != "" && actorOperatorUuid == "" {
		// system-initiated close: make sure the operator side learns about it
		s.notifier.Fire(gateway.OperatorNotification{
			Type:             gateway.NotifyClosed,
			OperatorUuid:     conv.OperatorUuid,
			ConversationUuid: conv.Uuid,
			OccurredAt:       now,
		})
	}
	return nil
}

func (s *relayServiceImpl) History(conversationUuid string, limit int, markRead bool) ([]supportRespond.MessageItem, error) {
	conv, err := s.getConversation(conversationUuid)
	if err != nil {
		return nil, err
	}
	msgs, err := s.msgRepo.ListByConversation(conv.Uuid, limit)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	if markRead {
		if err := s.msgRepo.MarkRead(conv.Uuid, entity.SenderClient); err != nil {
			zlog.Warn("mark read failed", zap.String("conversation", conv.Uuid), zap.Error(err))
		}
	}
	items := make([]supportRespond.MessageItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, supportRespond.MessageItem{
			Uuid:       m.Uuid,
			SenderKind: string(m.SenderKind),
			SenderName: m.SenderName,
			Text:       m.Text,
			IsRead:     m.IsRead,
			CreatedAt:  m.CreatedAt,
		})
	}
	return items, nil
}

func (s *relayServiceImpl) ActiveConversation(sessionID string) (*supportRespond.ConversationItem, error) {
	if sessionID == "" {
		return nil, xerr.ErrParam
	}
	conv, err := s.convRepo.GetActiveBySessionID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrNotFound
		}
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	return conversationItem(conv), nil
}

func (s *relayServiceImpl) ActiveConversations(operatorUuid string) ([]supportRespond.ConversationItem, error) {
	convs, err := s.convRepo.ListActiveByOperator(operatorUuid)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	items := make([]supportRespond.ConversationItem, 0, len(convs))
	for i := range convs {
		items = append(items, *conversationItem(&convs[i]))
	}
	return items, nil
}

func (s *relayServiceImpl) NotifyTyping(conversationUuid string) error {
	conv, err := s.getConversation(conversationUuid)
	if err != nil {
		return err
	}
	if !conv.IsActive {
		return xerr.ErrConversationClosed
	}
	return s.clients.Send(conv.SessionID, gateway.ClientPayload{
		Type:             "typing",
		SessionID:        conv.SessionID,
		ConversationUuid: conv.Uuid,
		Sender:           "operator",
		Timestamp:        time.Now().Format(time.RFC3339),
	})
}

func conversationItem(conv *entity.Conversation) *supportRespond.ConversationItem {
	return &supportRespond.ConversationItem{
		Uuid:         conv.Uuid,
		WorkItemUuid: conv.WorkItemUuid,
		SessionID:    conv.SessionID,
		ClientName:   conv.ClientName,
		OperatorUuid: conv.OperatorUuid,
		IsActive:     conv.IsActive,
		CreatedAt:    conv.CreatedAt,
	}
}

func (s *relayServiceImpl) getConversation(uuid string) (*entity.Conversation, error) {
	if uuid == "" {
		return nil, xerr.ErrParam
	}
	conv, err := s.convRepo.GetByUuid(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrNotFound
		}
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	return conv, nil
}

func (s *relayServiceImpl) countRelay(direction RelayDirection, status string) {
	if s.metrics != nil {
		s.metrics.RelayMessagesTotal.WithLabelValues(string(direction), status).Inc()
	}
}
