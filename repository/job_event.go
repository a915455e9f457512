package repository

import (
	"github.com/tnqbao/gau-kv-orchestrator/entity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobEventRepository struct {
	db *gorm.DB
}

func NewJobEventRepository(db *gorm.DB) *JobEventRepository {
	return &JobEventRepository{db: db}
}

// Append writes one lifecycle event. The unique (job_id, event_type) index
// makes the write a no-op if the event already exists, which keeps
// milestones single-shot even when a chunk report is retried.
func (r *JobEventRepository) Append(jobID string, eventType entity.JobEventType, owner string, details datatypes.JSON) error {
	event := entity.JobEvent{
		JobID:     jobID,
		EventType: eventType,
		Owner:     owner,
		Details:   details,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "event_type"}},
		DoNothing: true,
	}).Create(&event).Error
}

func (r *JobEventRepository) ListByJobID(jobID string) ([]entity.JobEvent, error) {
	var events []entity.JobEvent
	err := r.db.Where("job_id = ?", jobID).
		Order("timestamp ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *JobEventRepository) CountByJobID(jobID string) (int64, error) {
	var count int64
	err := r.db.Model(&entity.JobEvent{}).Where("job_id = ?", jobID).Count(&count).Error
	return count, err
}
