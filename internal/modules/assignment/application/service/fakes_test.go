package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"ilpotaxi/internal/modules/assignment/domain/entity"
	operatorRequest "ilpotaxi/internal/modules/operator/application/dto/request"
	operatorRespond "ilpotaxi/internal/modules/operator/application/dto/respond"
	operatorService "ilpotaxi/internal/modules/operator/application/service"
	"ilpotaxi/internal/modules/operator/domain/capacity"
	operatorEntity "ilpotaxi/internal/modules/operator/domain/entity"
	"ilpotaxi/internal/modules/support/domain/gateway"
	"ilpotaxi/pkg/xerr"

	"gorm.io/gorm"
)

// memWorkItemRepo mimics the guarded UPDATE semantics of the MySQL impl.
type memWorkItemRepo struct {
	mu    sync.Mutex
	items map[string]*entity.WorkItem
}

func newMemWorkItemRepo() *memWorkItemRepo {
	return &memWorkItemRepo{items: make(map[string]*entity.WorkItem)}
}

func (r *memWorkItemRepo) Create(item *entity.WorkItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.items[item.Uuid] = &cp
	return nil
}

func (r *memWorkItemRepo) GetByUuid(uuid string) (*entity.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[uuid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *item
	return &cp, nil
}

func (r *memWorkItemRepo) ListUnassigned(kind *entity.WorkItemKind, limit int) ([]entity.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.WorkItem
	for _, item := range r.items {
		if item.Status != entity.StatusNew || item.AssignedOperatorUuid != "" {
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

func (r *memWorkItemRepo) ListByOperator(operatorUuid string, limit int) ([]entity.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.WorkItem
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
	if !ok || item.Status != entity.StatusNew || item.AssignedOperatorUuid != "" {
		return false, nil
	}
	item.AssignedOperatorUuid = operatorUuid
	item.Status = entity.StatusAssigned
	item.AssignedAt.Time = at
	item.AssignedAt.Valid = true
	return true, nil
}

func (r *memWorkItemRepo) TransitionStatus(uuid string, from, to entity.WorkItemStatus, at time.Time) (bool, error) {
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

// fakeOperatorService serves a fixed roster, reading live counts from the
// shared counter like the real implementation.
type fakeOperatorService struct {
	mu        sync.Mutex
	operators []operatorEntity.Operator
	counter   capacity.Counter
	handled   map[string]int
}

func newFakeOperatorService(counter capacity.Counter, ops ...operatorEntity.Operator) *fakeOperatorService {
	return &fakeOperatorService{operators: ops, counter: counter, handled: make(map[string]int)}
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

func (f *fakeOperatorService) RecordHandled(operatorUuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled[operatorUuid]++
	return nil
}

func (f *fakeOperatorService) RecordResponse(string, int) error { return nil }

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

// recordingGateway captures operator notifications.
type recordingGateway struct {
	mu       sync.Mutex
	received []gateway.OperatorNotification
	fail     bool
}

func (g *recordingGateway) Deliver(_ context.Context, n gateway.OperatorNotification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return xerr.ErrTransportUnavailable
	}
	g.received = append(g.received, n)
	return nil
}

func (g *recordingGateway) byType(typ string) []gateway.OperatorNotification {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []gateway.OperatorNotification
	for _, n := range g.received {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}
