package entity

import (
	"time"

	"gorm.io/datatypes"
)

type JobEventType string

const (
	EventStarted    JobEventType = "started"
	EventProgress25 JobEventType = "progress_25"
	EventProgress50 JobEventType = "progress_50"
	EventProgress75 JobEventType = "progress_75"
	EventCompleted  JobEventType = "completed"
	EventFailed     JobEventType = "failed"
	// EventCancelled exists only for historical rows, see JobStatusCancelled.
	EventCancelled JobEventType = "cancelled"
)

// JobEvent is an append-only milestone record. Rows are never mutated or
// deleted; at most one row per progress milestone type exists per job.
type JobEvent struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	JobID     string         `json:"job_id" gorm:"not null;index;uniqueIndex:idx_job_events_job_type"`
	EventType JobEventType   `json:"event_type" gorm:"not null;uniqueIndex:idx_job_events_job_type"`
	Owner     string         `json:"owner" gorm:"not null"`
	Timestamp time.Time      `json:"timestamp" gorm:"not null;autoCreateTime"`
	Details   datatypes.JSON `json:"details,omitempty" gorm:"type:jsonb"`
}
