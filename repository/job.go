package repository

import (
	"time"

	"github.com/tnqbao/gau-kv-orchestrator/entity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *entity.Job) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) FindByID(id string) (*entity.Job, error) {
	var job entity.Job
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) FindByOwner(owner string, limit int) ([]entity.Job, error) {
	var jobs []entity.Job
	query := r.db.Where("owner = ?", owner).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkRunning performs the one queued -> running transition, before any
// remote store I/O happens for the job.
func (r *JobRepository) MarkRunning(id string, startedAt time.Time) error {
	return r.db.Model(&entity.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     entity.JobStatusRunning,
		"started_at": startedAt,
	}).Error
}

func (r *JobRepository) UpdateTotal(id string, totalItems int) error {
	return r.db.Model(&entity.Job{}).Where("id = ?", id).
		Update("total_items", totalItems).Error
}

// UpdateProgress persists the incremental counters after a chunk of work.
func (r *JobRepository) UpdateProgress(id string, processed, errorCount, percentage int, currentItem string) error {
	return r.db.Model(&entity.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed_items": processed,
		"error_count":     errorCount,
		"percentage":      percentage,
		"current_item":    currentItem,
	}).Error
}

func (r *JobRepository) UpdateExtra(id string, extra datatypes.JSON) error {
	return r.db.Model(&entity.Job{}).Where("id = ?", id).
		Update("extra", extra).Error
}

// MarkTerminal writes the final status together with the final counts, so
// the job row and the terminal event can never disagree.
func (r *JobRepository) MarkTerminal(id string, status entity.JobStatus, processed, errorCount, percentage int, completedAt time.Time) error {
	return r.db.Model(&entity.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          status,
		"processed_items": processed,
		"error_count":     errorCount,
		"percentage":      percentage,
		"completed_at":    completedAt,
	}).Error
}
