package service

import (
	"context"
	"sort"
	"sync"
	"time"

	assignmentEntity "ilpotaxi/internal/modules/assignment/domain/entity"
	operatorRequest "ilpotaxi/internal/modules/operator/application/dto/request"
	operatorRespond "ilpotaxi/internal/modules/operator/application/dto/respond"
	operatorService "ilpotaxi/internal/modules/operator/application/service"
	"ilpotaxi/internal/modules/operator/domain/capacity"
	operatorEntity "ilpotaxi/internal/modules/operator/domain/entity"
	"ilpotaxi/internal/modules/support/domain/entity"
	"ilpotaxi/internal/modules/support/domain/gateway"
	"ilpotaxi/internal/modules/support/domain/repository"
	"ilpotaxi/pkg/xerr"

	"gorm.io/gorm"
)

// memConvRepo keeps conversations and their snapshot messages in memory with
// the same guarded-close semantics as the MySQL implementation.
type memConvRepo struct {
	mu    sync.Mutex
	convs map[string]*entity.Conversation
	msgs  *memMsgRepo
}

func newMemConvRepo(msgs *memMsgRepo) *memConvRepo {
	return &memConvRepo{convs: make(map[string]*entity.Conversation), msgs: msgs}
}

func (r *memConvRepo) CreateWithMessages(conv *entity.Conversation, msgs []*entity.Message) error {
	r.mu.Lock()
	for _, existing := range r.convs {
		if existing.SessionID == conv.SessionID && existing.IsActive {
			r.mu.Unlock()
			return repository.ErrActiveConversationExists
		}
	}
	cp := *conv
	r.convs[conv.Uuid] = &cp
	r.mu.Unlock()
	for _, m := range msgs {
		if err := r.msgs.Create(m); err != nil {
			return err
		}
	}
	return nil
}

func (r *memConvRepo) GetByUuid(uuid string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.convs[uuid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *conv
	return &cp, nil
}

func (r *memConvRepo) GetActiveBySessionID(sessionID string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conv := range r.convs {
		if conv.SessionID == sessionID && conv.IsActive {
			cp := *conv
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memConvRepo) ListActiveByOperator(operatorUuid string) ([]entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Conversation
	for _, conv := range r.convs {
		if conv.OperatorUuid == operatorUuid && conv.IsActive {
			out = append(out, *conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Uuid < out[j].Uuid })
	return out, nil
}

func (r *memConvRepo) Close(uuid string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.convs[uuid]
	if !ok || !conv.IsActive {
		return false, nil
	}
	conv.IsActive = false
	conv.ClosedAt.Time = at
	conv.ClosedAt.Valid = true
	return true, nil
}

func (r *memConvRepo) UpdateLastMessageAt(uuid string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.convs[uuid]; ok {
		conv.LastMessageAt.Time = at
		conv.LastMessageAt.Valid = true
	}
	return nil
}

type memMsgRepo struct {
	mu   sync.Mutex
	rows []entity.Message
}

func newMemMsgRepo() *memMsgRepo {
	return &memMsgRepo{}
}

func (r *memMsgRepo) Create(msg *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *msg)
	return nil
}

func (r *memMsgRepo) ListByConversation(conversationUuid string, limit int) ([]entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Message
	for _, m := range r.rows {
		if m.ConversationUuid == conversationUuid {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memMsgRepo) CountBySender(conversationUuid string, sender entity.SenderKind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.rows {
		if m.ConversationUuid == conversationUuid && m.SenderKind == sender {
			n++
		}
	}
	return n, nil
}

func (r *memMsgRepo) MarkRead(conversationUuid string, sender entity.SenderKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ConversationUuid == conversationUuid && r.rows[i].SenderKind == sender {
			r.rows[i].IsRead = true
		}
	}
	return nil
}

// fakeClientGW records payloads pushed to web sessions.
type fakeClientGW struct {
	mu     sync.Mutex
	sent   []gateway.ClientPayload
	fail   bool
	online map[string]bool
}

func newFakeClientGW() *fakeClientGW {
	return &fakeClientGW{online: make(map[string]bool)}
}

func (g *fakeClientGW) Send(sessionID string, payload gateway.ClientPayload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return xerr.ErrTransportUnavailable
	}
	g.sent = append(g.sent, payload)
	return nil
}

func (g *fakeClientGW) Connected(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online[sessionID]
}

func (g *fakeClientGW) byType(typ string) []gateway.ClientPayload {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []gateway.ClientPayload
	for _, p := range g.sent {
		if p.Type == typ {
			out = append(out, p)
		}
	}
	return out
}

// recordingOperatorGW captures operator-side notifications.
type recordingOperatorGW struct {
	mu       sync.Mutex
	received []gateway.OperatorNotification
	fail     bool
}

func (g *recordingOperatorGW) Deliver(_ context.Context, n gateway.OperatorNotification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return xerr.ErrTransportUnavailable
	}
	g.received = append(g.received, n)
	return nil
}

// memWorkItemRepo mimics the guarded UPDATE semantics of the MySQL impl.
type memWorkItemRepo struct {
	mu    sync.Mutex
	items map[string]*assignmentEntity.WorkItem
}

func newMemWorkItemRepo() *memWorkItemRepo {
	return &memWorkItemRepo{items: make(map[string]*assignmentEntity.WorkItem)}
}

func (r *memWorkItemRepo) Create(item *assignmentEntity.WorkItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.items[item.Uuid] = &cp
	return nil
}

func (r *memWorkItemRepo) GetByUuid(uuid string) (*assignmentEntity.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[uuid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *item
	return &cp, nil
}

func (r *memWorkItemRepo) ListUnassigned(kind *assignmentEntity.WorkItemKind, limit int) ([]assignmentEntity.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []assignmentEntity.WorkItem
	for _, item := range r.items {
		if item.Status != assignmentEntity.StatusNew || item.AssignedOperatorUuid != "" {
			continue
		}
		if kind != nil && item.Kind != *kind {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memWorkItemRepo) ListByOperator(operatorUuid string, limit int) ([]assignmentEntity.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []assignmentEntity.WorkItem
	for _, item := range r.items {
		if item.AssignedOperatorUuid == operatorUuid {
			out = append(out, *item)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memWorkItemRepo) Claim(uuid, operatorUuid string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[uuid]
	if !ok || item.Status != assignmentEntity.StatusNew || item.AssignedOperatorUuid != "" {
		return false, nil
	}
	item.AssignedOperatorUuid = operatorUuid
	item.Status = assignmentEntity.StatusAssigned
	item.AssignedAt.Time = at
	item.AssignedAt.Valid = true
	return true, nil
}

func (r *memWorkItemRepo) TransitionStatus(uuid string, from, to assignmentEntity.WorkItemStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[uuid]
	if !ok || item.Status != from {
		return false, nil
	}
	item.Status = to
	if to.Terminal() {
		item.CompletedAt.Time = at
		item.CompletedAt.Valid = true
	}
	return true, nil
}

func (r *memWorkItemRepo) countByStatus(status assignmentEntity.WorkItemStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// fakeOperatorService serves a fixed roster, reading live counts from the
// shared counter like the real implementation.
type fakeOperatorService struct {
	mu        sync.Mutex
	operators []operatorEntity.Operator
	counter   capacity.Counter
	responses []recordedResponse
}

type recordedResponse struct {
	operatorUuid string
	seconds      int
}

func newFakeOperatorService(counter capacity.Counter, ops ...operatorEntity.Operator) *fakeOperatorService {
	return &fakeOperatorService{operators: ops, counter: counter}
}

func (f *fakeOperatorService) ListEligible(ctx context.Context, includeBusy bool) ([]operatorService.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []operatorService.Candidate
	for _, op := range f.operators {
		if !op.IsActive {
			continue
		}
		if op.Status != operatorEntity.StatusOnline && !(includeBusy && op.Status == operatorEntity.StatusBusy) {
			continue
		}
		count, err := f.counter.ActiveCount(ctx, op.Uuid)
		if err != nil {
			return nil, err
		}
		if count < op.MaxActiveConversations {
			out = append(out, operatorService.Candidate{Operator: op, ActiveCount: count})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ActiveCount != out[j].ActiveCount {
			return out[i].ActiveCount < out[j].ActiveCount
		}
		return out[i].Operator.LastSeen.After(out[j].Operator.LastSeen)
	})
	return out, nil
}

func (f *fakeOperatorService) GetByUuid(uuid string) (*operatorEntity.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.operators {
		if f.operators[i].Uuid == uuid {
			cp := f.operators[i]
			return &cp, nil
		}
	}
	return nil, xerr.ErrNotFound
}

func (f *fakeOperatorService) RecordHandled(string) error { return nil }

func (f *fakeOperatorService) RecordResponse(operatorUuid string, seconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, recordedResponse{operatorUuid: operatorUuid, seconds: seconds})
	return nil
}

func (f *fakeOperatorService) recordedResponses() []recordedResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedResponse, len(f.responses))
	copy(out, f.responses)
	return out
}

func (f *fakeOperatorService) Register(operatorRequest.RegisterRequest) (*operatorRespond.LoginRespond, error) {
	return nil, xerr.ErrServerError
}

func (f *fakeOperatorService) Login(operatorRequest.LoginRequest) (*operatorRespond.LoginRespond, error) {
	return nil, xerr.ErrServerError
}

func (f *fakeOperatorService) SetStatus(_ context.Context, operatorUuid string, status operatorEntity.OperatorStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.operators {
		if f.operators[i].Uuid == operatorUuid {
			f.operators[i].Status = status
			return nil
		}
	}
	return xerr.ErrNotFound
}

func (f *fakeOperatorService) Stats(context.Context, string) (*operatorRespond.OperatorStats, error) {
	return nil, xerr.ErrServerError
}
