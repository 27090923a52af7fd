package repository

import (
	"time"

	"ilpotaxi/internal/modules/assignment/domain/entity"
)

type WorkItemRepository interface {
	Create(item *entity.WorkItem) error
	GetByUuid(uuid string) (*entity.WorkItem, error)
	// ListUnassigned returns NEW items without an operator, oldest first.
	// A nil kind matches both kinds.
	ListUnassigned(kind *entity.WorkItemKind, limit int) ([]entity.WorkItem, error)
	ListByOperator(operatorUuid string, limit int) ([]entity.WorkItem, error)
	// Claim conditionally assigns the item: the row is updated only while it
	// is still NEW and unassigned. Returns false when the guard missed,
	// meaning a concurrent claim won.
	Claim(uuid, operatorUuid string, at time.Time) (bool, error)
	// TransitionStatus updates the status only when the row still holds the
	// expected current status. Returns false when the guard missed.
	TransitionStatus(uuid string, from, to entity.WorkItemStatus, at time.Time) (bool, error)
}

type ApplicationRepository interface {
	Create(app *entity.Application) error
	GetByWorkItemUuid(workItemUuid string) (*entity.Application, error)
	UpdateNotes(uuid, notes string) error
}
