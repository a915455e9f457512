package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Operation kinds. The set is closed: every kind must be handled by the
// orchestrator dispatch switch.
type OperationKind string

const (
	OperationBulkDelete   OperationKind = "bulk_delete"
	OperationBulkCopy     OperationKind = "bulk_copy"
	OperationTTLUpdate    OperationKind = "ttl_update"
	OperationTagUpdate    OperationKind = "tag_update"
	OperationImport       OperationKind = "import"
	OperationExport       OperationKind = "export"
	OperationBackup       OperationKind = "backup"
	OperationRestore      OperationKind = "restore"
	OperationBatchBackup  OperationKind = "batch_backup"
	OperationBatchRestore OperationKind = "batch_restore"
)

func (k OperationKind) Valid() bool {
	switch k {
	case OperationBulkDelete, OperationBulkCopy, OperationTTLUpdate, OperationTagUpdate,
		OperationImport, OperationExport, OperationBackup, OperationRestore,
		OperationBatchBackup, OperationBatchRestore:
		return true
	}
	return false
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusCancelled is kept for historical rows only. No code path
	// writes it anymore since cancellation support was removed.
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type Job struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	CollectionID   string         `json:"collection_id" gorm:"not null;index"`
	OperationKind  OperationKind  `json:"operation_kind" gorm:"not null;index"`
	Status         JobStatus      `json:"status" gorm:"not null;index"`
	TotalItems     int            `json:"total_items" gorm:"not null;default:0"`
	ProcessedItems int            `json:"processed_items" gorm:"not null;default:0"`
	ErrorCount     int            `json:"error_count" gorm:"not null;default:0"`
	CurrentItem    string         `json:"current_item" gorm:"type:varchar(512)"`
	Percentage     int            `json:"percentage" gorm:"not null;default:0"`
	Extra          datatypes.JSON `json:"extra,omitempty" gorm:"type:jsonb"`
	StartedAt      time.Time      `json:"started_at" gorm:"not null;autoCreateTime"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Owner          string         `json:"owner" gorm:"not null;index"`
}
