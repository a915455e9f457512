package repository

import (
	"github.com/tnqbao/gau-kv-orchestrator/entity"
	"gorm.io/gorm"
)

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(record *entity.AuditLog) error {
	return r.db.Create(record).Error
}

func (r *AuditLogRepository) ListByCollection(collectionID string, limit int) ([]entity.AuditLog, error) {
	var records []entity.AuditLog
	query := r.db.Where("collection_id = ?", collectionID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
