package entity

import (
	"database/sql"
	"time"
)

// WorkSession records one on-duty span of an operator, used for reporting.
type WorkSession struct {
	Id           int64        `gorm:"column:id;primaryKey"`
	OperatorUuid string       `gorm:"column:operator_uuid;index;type:char(36);not null"`
	StartedAt    time.Time    `gorm:"column:started_at;not null"`
	EndedAt      sql.NullTime `gorm:"column:ended_at"`
	HandledCount int          `gorm:"column:handled_count;not null;default:0"`
}

func (WorkSession) TableName() string {
	return "operator_work_sessions"
}
