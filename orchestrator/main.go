package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-kv-orchestrator/config"
	"github.com/tnqbao/gau-kv-orchestrator/entity"
	"github.com/tnqbao/gau-kv-orchestrator/infra"
	"github.com/tnqbao/gau-kv-orchestrator/repository"
	"gorm.io/datatypes"
)

// Orchestrator owns one coordinator per live job id. All operations for a
// job id are routed to the same coordinator and no two coordinators ever
// share a job's mutable state.
type Orchestrator struct {
	deps        Dependencies
	artifactTTL time.Duration

	mu     sync.Mutex
	active map[string]*Coordinator
}

var orchestratorInstance *Orchestrator

func InitOrchestrator(cfg *config.Config, infraClient *infra.Infra, repo *repository.Repository) *Orchestrator {
	if orchestratorInstance != nil {
		return orchestratorInstance
	}

	orchestratorInstance = NewOrchestrator(Dependencies{
		Jobs:     repo.JobRepo,
		Events:   repo.JobEventRepo,
		Metadata: repo.KVMetadataRepo,
		Store:    infraClient.KVStore,
		Archive:  infraClient.Minio,
		Stage:    infraClient.Redis,
		Audit:    infraClient.Produce.AuditService,
		Locks:    infraClient.Redis,
		Logger:   infraClient.Logger,
	}, time.Duration(cfg.EnvConfig.Export.ArtifactTTL)*time.Second)

	return orchestratorInstance
}

func GetOrchestrator() *Orchestrator {
	if orchestratorInstance == nil {
		panic("Orchestrator not initialized. Call InitOrchestrator() first.")
	}
	return orchestratorInstance
}

func NewOrchestrator(deps Dependencies, artifactTTL time.Duration) *Orchestrator {
	if artifactTTL <= 0 {
		artifactTTL = 24 * time.Hour
	}
	return &Orchestrator{
		deps:        deps,
		artifactTTL: artifactTTL,
		active:      make(map[string]*Coordinator),
	}
}

// Submit creates the job row in queued status and hands it to a new
// coordinator. It returns once the coordinator has accepted the job, not
// once the job has finished: processing outlives the calling request.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*entity.Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	jobID := fmt.Sprintf("%s_%s", req.OperationKind, uuid.New().String())

	extra, err := initialExtra(req)
	if err != nil {
		return nil, err
	}

	job := &entity.Job{
		ID:            jobID,
		CollectionID:  req.CollectionID,
		OperationKind: req.OperationKind,
		Status:        entity.JobStatusQueued,
		Extra:         extra,
		StartedAt:     time.Now().UTC(),
		Owner:         req.Owner,
	}

	if err := o.deps.Jobs.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job row: %w", err)
	}

	if o.deps.Locks != nil {
		acquired, err := o.deps.Locks.SetNX(ctx, jobOwnerKey(jobID), req.Owner, 12*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire job ownership: %w", err)
		}
		if !acquired {
			return nil, ErrJobAlreadyActive
		}
	}

	coordinator := newCoordinator(o, job, req.Params)

	o.mu.Lock()
	if _, exists := o.active[jobID]; exists {
		o.mu.Unlock()
		return nil, ErrJobAlreadyActive
	}
	o.active[jobID] = coordinator
	o.mu.Unlock()

	// The HTTP request that submitted the job ends long before the job
	// does; the coordinator runs on its own context.
	go coordinator.run(context.Background())

	return job, nil
}

// ActiveJobs reports the job ids with a live coordinator in this process.
func (o *Orchestrator) ActiveJobs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids
}

// TakeExportArtifact hands out an export artifact exactly once. After the
// first successful retrieval the artifact is gone.
func (o *Orchestrator) TakeExportArtifact(ctx context.Context, job *entity.Job) ([]byte, ArtifactFormat, error) {
	if job.OperationKind != entity.OperationExport {
		return nil, "", fmt.Errorf("job %s is not an export job", job.ID)
	}
	if job.Status != entity.JobStatusCompleted {
		return nil, "", fmt.Errorf("export job %s has not completed", job.ID)
	}

	data, err := o.deps.Stage.TakeBytes(ctx, exportStageKey(job.ID))
	if err != nil {
		if err == infra.ErrCacheMiss {
			return nil, "", ErrArtifactNotFound
		}
		return nil, "", fmt.Errorf("failed to fetch export artifact: %w", err)
	}

	format := FormatJSON
	var extra struct {
		Format ArtifactFormat `json:"format"`
	}
	if len(job.Extra) > 0 {
		if err := json.Unmarshal(job.Extra, &extra); err == nil && extra.Format != "" {
			format = extra.Format
		}
	}

	return data, format, nil
}

func (o *Orchestrator) release(jobID string) {
	o.mu.Lock()
	delete(o.active, jobID)
	o.mu.Unlock()

	if o.deps.Locks != nil {
		_ = o.deps.Locks.Delete(context.Background(), jobOwnerKey(jobID))
	}
}

func jobOwnerKey(jobID string) string {
	return "job:owner:" + jobID
}

func exportStageKey(jobID string) string {
	return "export:artifact:" + jobID
}

func initialExtra(req SubmitRequest) (datatypes.JSON, error) {
	fields := map[string]interface{}{}
	if len(req.Params.CollectionIDs) > 0 {
		fields["collection_ids"] = req.Params.CollectionIDs
	}
	if req.Params.Format != "" {
		fields["format"] = req.Params.Format
	}
	if req.Params.Policy != "" {
		fields["policy"] = req.Params.Policy
	}
	if req.Params.TargetCollectionID != "" {
		fields["target_collection_id"] = req.Params.TargetCollectionID
	}
	if len(fields) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job extra: %w", err)
	}
	return datatypes.JSON(data), nil
}
