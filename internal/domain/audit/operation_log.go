package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OperationLog is a fire-and-forget audit record. Writes are best-effort and
// asynchronous; a lost record never fails the operation that produced it.
type OperationLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Action    string         `gorm:"column:action;not null;index" json:"action"`
	Target    string         `gorm:"column:target" json:"target"`
	ActorID   *uuid.UUID     `gorm:"column:actor_id;type:uuid;index" json:"actor_id,omitempty"`
	Detail    datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (OperationLog) TableName() string { return "operation_log" }
