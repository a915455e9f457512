package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tnqbao/gau-kv-orchestrator/entity"
	"github.com/tnqbao/gau-kv-orchestrator/infra"
	"gorm.io/datatypes"
)

// The engine talks to its collaborators through small interfaces so the
// processors can be exercised against in-memory fakes. The infra and
// repository types satisfy them directly.

type RemoteStore interface {
	GetValue(ctx context.Context, collectionID, key string) (string, error)
	PutValue(ctx context.Context, collectionID, key, value string, opts *infra.WriteOptions) error
	BulkPut(ctx context.Context, collectionID string, items []infra.BulkWriteItem) error
	BulkDelete(ctx context.Context, collectionID string, keys []string) error
	ListKeys(ctx context.Context, collectionID, prefix, cursor string) (*infra.KeyListPage, error)
}

type ArtifactArchive interface {
	PutArtifact(ctx context.Context, collectionID, name string, data []byte, contentType string) (string, error)
	GetArtifact(ctx context.Context, objectName string) ([]byte, error)
	ListArtifacts(ctx context.Context, collectionID string) ([]infra.ArchiveEntry, error)
}

// ExportStage holds finished export artifacts until their one-shot
// download. TakeBytes removes the artifact on first successful read.
type ExportStage interface {
	SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error
	TakeBytes(ctx context.Context, key string) ([]byte, error)
}

type JobStore interface {
	Create(job *entity.Job) error
	FindByID(id string) (*entity.Job, error)
	MarkRunning(id string, startedAt time.Time) error
	UpdateTotal(id string, totalItems int) error
	UpdateProgress(id string, processed, errorCount, percentage int, currentItem string) error
	UpdateExtra(id string, extra datatypes.JSON) error
	MarkTerminal(id string, status entity.JobStatus, processed, errorCount, percentage int, completedAt time.Time) error
}

type EventStore interface {
	Append(jobID string, eventType entity.JobEventType, owner string, details datatypes.JSON) error
}

type MetadataStore interface {
	Upsert(collectionID, keyName string, tags, customMetadata datatypes.JSON) error
	FindByKeys(collectionID string, keyNames []string) ([]entity.KVMetadata, error)
	DeleteByKeys(collectionID string, keyNames []string) error
}

type AuditRecorder interface {
	PublishRecord(ctx context.Context, collectionID, operation, owner string, details json.RawMessage) error
}

// JobLocker is an optional cross-process guard ensuring a job id has at
// most one live coordinator. The in-process registry already guarantees
// this within a single instance.
type JobLocker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

type Logger interface {
	InfoWithContextf(ctx context.Context, format string, args ...interface{})
	WarningWithContextf(ctx context.Context, format string, args ...interface{})
	ErrorWithContextf(ctx context.Context, err error, format string, args ...interface{})
}

type Dependencies struct {
	Jobs     JobStore
	Events   EventStore
	Metadata MetadataStore
	Store    RemoteStore
	Archive  ArtifactArchive
	Stage    ExportStage
	Audit    AuditRecorder
	Locks    JobLocker
	Logger   Logger
}
