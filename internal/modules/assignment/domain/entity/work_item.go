package entity

import (
	"database/sql"
	"time"
)

// WorkItemKind is the closed set of assignable work.
type WorkItemKind string

const (
	KindApplication WorkItemKind = "application"
	KindChat        WorkItemKind = "chat"
)

func (k WorkItemKind) Valid() bool {
	return k == KindApplication || k == KindChat
}

// WorkItemStatus forms the machine
// new -> assigned -> in_progress -> {completed | cancelled},
// with waiting_client reachable from in_progress and returning to it.
type WorkItemStatus string

const (
	StatusNew           WorkItemStatus = "new"
	StatusAssigned      WorkItemStatus = "assigned"
	StatusInProgress    WorkItemStatus = "in_progress"
	StatusWaitingClient WorkItemStatus = "waiting_client"
	StatusCompleted     WorkItemStatus = "completed"
	StatusCancelled     WorkItemStatus = "cancelled"
)

var transitions = map[WorkItemStatus][]WorkItemStatus{
	StatusNew:           {StatusAssigned, StatusCancelled},
	StatusAssigned:      {StatusInProgress, StatusCancelled},
	StatusInProgress:    {StatusWaitingClient, StatusCompleted, StatusCancelled},
	StatusWaitingClient: {StatusInProgress, StatusCompleted, StatusCancelled},
}

// CanTransitionTo reports whether next is reachable in one step. Terminal
// states accept nothing.
func (s WorkItemStatus) CanTransitionTo(next WorkItemStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

func (s WorkItemStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// WorkItem is a unit of work bound to at most one operator. The operator uuid
// is set exactly once by the claim; retained for audit, never deleted.
type WorkItem struct {
	Id                   int64          `gorm:"column:id;primaryKey"`
	Uuid                 string         `gorm:"column:uuid;uniqueIndex;type:char(36);not null"`
	Kind                 WorkItemKind   `gorm:"column:kind;index;type:varchar(16);not null"`
	Status               WorkItemStatus `gorm:"column:status;index;type:varchar(16);not null;default:new"`
	AssignedOperatorUuid string         `gorm:"column:assigned_operator_uuid;index;type:char(36);not null;default:'';comment:empty means unassigned"`
	SessionID            string         `gorm:"column:session_id;index;type:char(36);comment:web session for chat kind"`
	CreatedAt            time.Time      `gorm:"column:created_at;not null"`
	AssignedAt           sql.NullTime   `gorm:"column:assigned_at"`
	CompletedAt          sql.NullTime   `gorm:"column:completed_at"`
}

func (WorkItem) TableName() string {
	return "work_items"
}
