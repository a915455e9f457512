package repository

import (
	"github.com/tnqbao/gau-kv-orchestrator/infra"
	"gorm.io/gorm"
)

type Repository struct {
	JobRepo        *JobRepository
	JobEventRepo   *JobEventRepository
	KVMetadataRepo *KVMetadataRepository
	AuditLogRepo   *AuditLogRepository
}

var repository *Repository

func InitRepository(infra *infra.Infra) *Repository {
	repository = &Repository{
		JobRepo:        NewJobRepository(infra.Postgres.DB),
		JobEventRepo:   NewJobEventRepository(infra.Postgres.DB),
		KVMetadataRepo: NewKVMetadataRepository(infra.Postgres.DB),
		AuditLogRepo:   NewAuditLogRepository(infra.Postgres.DB),
	}
	return repository
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}

func (r *Repository) WithTransaction(tx *gorm.DB) *Repository {
	return &Repository{
		JobRepo:        NewJobRepository(tx),
		JobEventRepo:   NewJobEventRepository(tx),
		KVMetadataRepo: NewKVMetadataRepository(tx),
		AuditLogRepo:   NewAuditLogRepository(tx),
	}
}
