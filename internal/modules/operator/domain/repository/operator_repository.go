package repository

import (
	"time"

	"ilpotaxi/internal/modules/operator/domain/entity"
)

type OperatorRepository interface {
	Create(op *entity.Operator) error
	GetByUuid(uuid string) (*entity.Operator, error)
	GetByUsername(username string) (*entity.Operator, error)
	// ListActiveByStatus returns active operators whose status is in the set,
	// most recently seen first.
	ListActiveByStatus(statuses []entity.OperatorStatus) ([]entity.Operator, error)
	UpdateStatus(uuid string, status entity.OperatorStatus, seenAt time.Time) error
	UpdateProfile(op *entity.Operator) error
	IncrementTotalHandled(uuid string) error
	// RecordResponseSeconds folds one first-reply latency sample into the
	// operator's running average.
	RecordResponseSeconds(uuid string, seconds int) error
	Deactivate(uuid string) error
}

type WorkSessionRepository interface {
	// Start opens a session unless one is already open for the operator.
	Start(operatorUuid string, at time.Time) error
	// End closes the open session, no-op when none is open.
	End(operatorUuid string, at time.Time) error
	TotalDurationSince(operatorUuid string, since time.Time) (time.Duration, error)
}
