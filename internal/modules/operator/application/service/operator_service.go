package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"ilpotaxi/internal/config"
	operatorRequest "ilpotaxi/internal/modules/operator/application/dto/request"
	operatorRespond "ilpotaxi/internal/modules/operator/application/dto/respond"
	"ilpotaxi/internal/modules/operator/domain/capacity"
	"ilpotaxi/internal/modules/operator/domain/entity"
	"ilpotaxi/internal/modules/operator/domain/repository"
	"ilpotaxi/pkg/util"
	"ilpotaxi/pkg/util/myjwt"
	"ilpotaxi/pkg/xerr"
	"ilpotaxi/pkg/zlog"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Candidate pairs an operator with its live active count at scan time.
type Candidate struct {
	Operator    entity.Operator
	ActiveCount int
}

type OperatorService interface {
	Register(req operatorRequest.RegisterRequest) (*operatorRespond.LoginRespond, error)
	Login(req operatorRequest.LoginRequest) (*operatorRespond.LoginRespond, error)
	// SetStatus updates presence and work-session bookkeeping. Callers that
	// need the offline requeue policy go through the support action service,
	// which invokes this after draining the operator.
	SetStatus(ctx context.Context, operatorUuid string, status entity.OperatorStatus) error
	// ListEligible returns candidates with spare capacity, ordered by
	// (active count asc, last_seen desc). Counts are read from the shared
	// counter at call time. An empty result is a normal no-capacity outcome.
	ListEligible(ctx context.Context, includeBusy bool) ([]Candidate, error)
	GetByUuid(uuid string) (*entity.Operator, error)
	RecordHandled(operatorUuid string) error
	// RecordResponse feeds one first-reply latency sample, in whole seconds,
	// into the operator's running average.
	RecordResponse(operatorUuid string, seconds int) error
	Stats(ctx context.Context, operatorUuid string) (*operatorRespond.OperatorStats, error)
}

type operatorServiceImpl struct {
	operatorRepo repository.OperatorRepository
	sessionRepo  repository.WorkSessionRepository
	counter      capacity.Counter
	conf         *config.Config
}

func NewOperatorService(
	operatorRepo repository.OperatorRepository,
	sessionRepo repository.WorkSessionRepository,
	counter capacity.Counter,
	conf *config.Config,
) OperatorService {
	return &operatorServiceImpl{
		operatorRepo: operatorRepo,
		sessionRepo:  sessionRepo,
		counter:      counter,
		conf:         conf,
	}
}

func (s *operatorServiceImpl) Register(req operatorRequest.RegisterRequest) (*operatorRespond.LoginRespond, error) {
	if req.Username == "" || req.Password == "" || req.FirstName == "" {
		return nil, xerr.New(xerr.BadRequest, xerr.ErrParam.Message)
	}

	if _, err := s.operatorRepo.GetByUsername(req.Username); err == nil {
		return nil, xerr.New(xerr.BadRequest, "username already taken")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	op := &entity.Operator{
		Uuid:                   util.GenerateUUID(),
		Username:               req.Username,
		PasswordHash:           string(hash),
		FirstName:              req.FirstName,
		LastName:               req.LastName,
		Phone:                  req.Phone,
		Status:                 entity.StatusOffline,
		IsActive:               true,
		MaxActiveConversations: s.conf.SupportConfig.DefaultMaxActiveConversations,
		CreatedAt:              time.Now(),
		LastSeen:               time.Now(),
	}
	if err := s.operatorRepo.Create(op); err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	token, err := myjwt.GenerateToken(op.Uuid, op.Username, op.IsAdmin)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	return &operatorRespond.LoginRespond{
		Uuid:      op.Uuid,
		Username:  op.Username,
		FirstName: op.FirstName,
		IsAdmin:   op.IsAdmin,
		Token:     token,
	}, nil
}

func (s *operatorServiceImpl) Login(req operatorRequest.LoginRequest) (*operatorRespond.LoginRespond, error) {
	op, err := s.operatorRepo.GetByUsername(req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.New(xerr.Unauthorized, "unknown username or password")
		}
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	if !op.IsActive {
		return nil, xerr.New(xerr.Forbidden, "operator is deactivated")
	}
	if bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)) != nil {
		return nil, xerr.New(xerr.Unauthorized, "unknown username or password")
	}

	token, err := myjwt.GenerateToken(op.Uuid, op.Username, op.IsAdmin)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	return &operatorRespond.LoginRespond{
		Uuid:      op.Uuid,
		Username:  op.Username,
		FirstName: op.FirstName,
		IsAdmin:   op.IsAdmin,
		Token:     token,
	}, nil
}

func (s *operatorServiceImpl) SetStatus(ctx context.Context, operatorUuid string, status entity.OperatorStatus) error {
	if !status.Valid() {
		return xerr.New(xerr.BadRequest, "unknown status")
	}
	op, err := s.operatorRepo.GetByUuid(operatorUuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return xerr.ErrNotFound
		}
		zlog.Error(err.Error())
		return xerr.ErrServerError
	}

	now := time.Now()
	if err := s.operatorRepo.UpdateStatus(operatorUuid, status, now); err != nil {
		zlog.Error(err.Error())
		return xerr.ErrServerError
	}

	// on-duty bookkeeping: offline closes the session, anything else opens one
	if status == entity.StatusOffline {
		if err := s.sessionRepo.End(operatorUuid, now); err != nil {
			zlog.Warn("failed to end work session", zap.Error(err))
		}
	} else if op.Status == entity.StatusOffline {
		if err := s.sessionRepo.Start(operatorUuid, now); err != nil {
			zlog.Warn("failed to start work session", zap.Error(err))
		}
	}
	return nil
}

func (s *operatorServiceImpl) ListEligible(ctx context.Context, includeBusy bool) ([]Candidate, error) {
	statuses := []entity.OperatorStatus{entity.StatusOnline}
	if includeBusy {
		statuses = append(statuses, entity.StatusBusy)
	}
	ops, err := s.operatorRepo.ListActiveByStatus(statuses)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}

	candidates := make([]Candidate, 0, len(ops))
	for _, op := range ops {
		count, err := s.counter.ActiveCount(ctx, op.Uuid)
		if err != nil {
			zlog.Warn("capacity read failed", zap.String("operator", op.Uuid), zap.Error(err))
			continue
		}
		if count < op.MaxActiveConversations {
			candidates = append(candidates, Candidate{Operator: op, ActiveCount: count})
		}
	}

	// lowest load first; ties go to the most recently seen operator
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ActiveCount != candidates[j].ActiveCount {
			return candidates[i].ActiveCount < candidates[j].ActiveCount
		}
		return candidates[i].Operator.LastSeen.After(candidates[j].Operator.LastSeen)
	})
	return candidates, nil
}

func (s *operatorServiceImpl) GetByUuid(uuid string) (*entity.Operator, error) {
	op, err := s.operatorRepo.GetByUuid(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrNotFound
		}
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	return op, nil
}

func (s *operatorServiceImpl) RecordHandled(operatorUuid string) error {
	return s.operatorRepo.IncrementTotalHandled(operatorUuid)
}

func (s *operatorServiceImpl) RecordResponse(operatorUuid string, seconds int) error {
	if seconds < 0 {
		seconds = 0
	}
	return s.operatorRepo.RecordResponseSeconds(operatorUuid, seconds)
}

func (s *operatorServiceImpl) Stats(ctx context.Context, operatorUuid string) (*operatorRespond.OperatorStats, error) {
	op, err := s.GetByUuid(operatorUuid)
	if err != nil {
		return nil, err
	}
	count, err := s.counter.ActiveCount(ctx, operatorUuid)
	if err != nil {
		zlog.Error(err.Error())
		return nil, xerr.ErrServerError
	}
	weekDuration, err := s.sessionRepo.TotalDurationSince(operatorUuid, time.Now().AddDate(0, 0, -7))
	if err != nil {
		zlog.Warn(err.Error())
	}
	return &operatorRespond.OperatorStats{
		Uuid:                op.Uuid,
		Status:              string(op.Status),
		ActiveConversations: count,
		TotalHandled:        op.TotalHandled,
		AvgResponseSeconds:  op.AvgResponseSeconds,
		WeekOnDutyHours:     weekDuration.Hours(),
	}, nil
}
