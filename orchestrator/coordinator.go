package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tnqbao/gau-kv-orchestrator/entity"
	"gorm.io/datatypes"
)

const (
	// enumerationBudget is the share of the progress bar spent walking a
	// collection's key listing. The walk is cheap next to the per-key
	// fetch phase, so it gets a small fixed slice regardless of key count.
	enumerationBudget = 10

	// progressReportInterval bounds the write rate against the job state
	// store during per-item phases.
	progressReportInterval = 10

	// metadataChunkSize is the chunk size for phases where every item also
	// needs a side metadata write.
	metadataChunkSize = 100
)

// Coordinator drives exactly one job to a terminal status. It is logically
// single-threaded: all mutable state below is owned by the coordinator's
// goroutine alone.
type Coordinator struct {
	o      *Orchestrator
	job    *entity.Job
	params JobParams

	total     int
	processed int
	errors    int
	skipped   int

	percentage    int
	lastMilestone int
	currentItem   string

	phaseBase int
	phaseSpan int
}

func newCoordinator(o *Orchestrator, job *entity.Job, params JobParams) *Coordinator {
	return &Coordinator{
		o:         o,
		job:       job,
		params:    params,
		phaseSpan: 100,
	}
}

// run executes the job to completion. No fault escapes: the outermost
// handler turns panics and errors alike into a failed terminal status, so
// a job can never be left stuck in running.
func (c *Coordinator) run(ctx context.Context) {
	defer c.o.release(c.job.ID)
	defer func() {
		if r := recover(); r != nil {
			c.fail(ctx, fmt.Errorf("processor panic: %v", r))
		}
	}()

	startedAt := time.Now().UTC()
	if err := c.o.deps.Jobs.MarkRunning(c.job.ID, startedAt); err != nil {
		c.o.deps.Logger.ErrorWithContextf(ctx, err, "[Job %s] Failed to mark running: %v", c.job.ID, err)
		c.fail(ctx, fmt.Errorf("failed to transition job to running: %w", err))
		return
	}
	c.job.Status = entity.JobStatusRunning
	c.appendEvent(ctx, entity.EventStarted)

	c.o.deps.Logger.InfoWithContextf(ctx, "[Job %s] Started %s on collection %s",
		c.job.ID, c.job.OperationKind, c.job.CollectionID)

	var err error
	switch c.job.OperationKind {
	case entity.OperationBulkDelete:
		err = c.runBulkDelete(ctx)
	case entity.OperationBulkCopy:
		err = c.runBulkCopy(ctx)
	case entity.OperationTTLUpdate:
		err = c.runTTLUpdate(ctx)
	case entity.OperationTagUpdate:
		err = c.runTagUpdate(ctx)
	case entity.OperationImport:
		err = c.runImport(ctx)
	case entity.OperationExport:
		err = c.runExport(ctx)
	case entity.OperationBackup:
		err = c.runBackup(ctx)
	case entity.OperationRestore:
		err = c.runRestore(ctx)
	case entity.OperationBatchBackup:
		err = c.runBatchBackup(ctx)
	case entity.OperationBatchRestore:
		err = c.runBatchRestore(ctx)
	default:
		err = fmt.Errorf("unknown operation kind %q", c.job.OperationKind)
	}

	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.complete(ctx)
}

// setPhase narrows subsequent ratio reports to a window of the progress
// bar. Enumerate-then-act processors use it to split the bar between the
// discovery and fetch phases.
func (c *Coordinator) setPhase(base, span int) {
	c.phaseBase = base
	c.phaseSpan = span
}

// reportRatio maps done/total into the current phase window and persists.
func (c *Coordinator) reportRatio(ctx context.Context, done, total int, current string) {
	if total <= 0 {
		return
	}
	c.reportPercent(ctx, c.phaseBase+c.phaseSpan*done/total, current)
}

// reportPercent persists progress. Percentage never decreases, and each of
// the 25/50/75 milestones is recorded at most once per job.
func (c *Coordinator) reportPercent(ctx context.Context, percentage int, current string) {
	if percentage > 100 {
		percentage = 100
	}
	if percentage < c.percentage {
		percentage = c.percentage
	}
	c.percentage = percentage
	if current != "" {
		c.currentItem = current
	}

	if err := c.o.deps.Jobs.UpdateProgress(c.job.ID, c.processed, c.errors, c.percentage, c.currentItem); err != nil {
		c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to persist progress: %v", c.job.ID, err)
	}

	milestone := c.percentage / 25 * 25
	if milestone > c.lastMilestone && milestone >= 25 && milestone <= 75 {
		c.appendEvent(ctx, milestoneEventType(milestone))
		c.lastMilestone = milestone
	}
}

func milestoneEventType(milestone int) entity.JobEventType {
	switch milestone {
	case 25:
		return entity.EventProgress25
	case 50:
		return entity.EventProgress50
	default:
		return entity.EventProgress75
	}
}

func (c *Coordinator) complete(ctx context.Context) {
	completedAt := time.Now().UTC()
	c.percentage = 100

	if err := c.o.deps.Jobs.MarkTerminal(c.job.ID, entity.JobStatusCompleted, c.processed, c.errors, 100, completedAt); err != nil {
		c.o.deps.Logger.ErrorWithContextf(ctx, err, "[Job %s] Failed to persist completion: %v", c.job.ID, err)
	}
	c.appendEvent(ctx, entity.EventCompleted)

	// Batch operations audit per collection inside their processors.
	switch c.job.OperationKind {
	case entity.OperationBatchBackup, entity.OperationBatchRestore:
	default:
		c.audit(ctx, c.job.CollectionID, c.detailsJSON())
	}

	c.o.deps.Logger.InfoWithContextf(ctx, "[Job %s] Completed: processed=%d errors=%d",
		c.job.ID, c.processed, c.errors)
}

func (c *Coordinator) fail(ctx context.Context, cause error) {
	completedAt := time.Now().UTC()

	if err := c.o.deps.Jobs.MarkTerminal(c.job.ID, entity.JobStatusFailed, c.processed, c.errors, c.percentage, completedAt); err != nil {
		c.o.deps.Logger.ErrorWithContextf(ctx, err, "[Job %s] Failed to persist failure: %v", c.job.ID, err)
	}

	details := c.eventDetails()
	details.Error = cause.Error()
	if data, err := json.Marshal(details); err == nil {
		if err := c.o.deps.Events.Append(c.job.ID, entity.EventFailed, c.job.Owner, datatypes.JSON(data)); err != nil {
			c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to append failed event: %v", c.job.ID, err)
		}
		if err := c.o.deps.Jobs.UpdateExtra(c.job.ID, mergeExtra(c.job.Extra, map[string]interface{}{"error": cause.Error()})); err != nil {
			c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to record error message: %v", c.job.ID, err)
		}
	}

	c.o.deps.Logger.ErrorWithContextf(ctx, cause, "[Job %s] Failed after processed=%d errors=%d: %v",
		c.job.ID, c.processed, c.errors, cause)
}

type eventDetails struct {
	TotalItems     int    `json:"total_items"`
	ProcessedItems int    `json:"processed_items"`
	ErrorCount     int    `json:"error_count"`
	SkippedItems   int    `json:"skipped_items,omitempty"`
	Percentage     int    `json:"percentage"`
	Error          string `json:"error,omitempty"`
}

func (c *Coordinator) eventDetails() eventDetails {
	return eventDetails{
		TotalItems:     c.total,
		ProcessedItems: c.processed,
		ErrorCount:     c.errors,
		SkippedItems:   c.skipped,
		Percentage:     c.percentage,
	}
}

func (c *Coordinator) detailsJSON() json.RawMessage {
	data, err := json.Marshal(c.eventDetails())
	if err != nil {
		return nil
	}
	return data
}

func (c *Coordinator) appendEvent(ctx context.Context, eventType entity.JobEventType) {
	if err := c.o.deps.Events.Append(c.job.ID, eventType, c.job.Owner, datatypes.JSON(c.detailsJSON())); err != nil {
		c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to append %s event: %v", c.job.ID, eventType, err)
	}
}

func (c *Coordinator) audit(ctx context.Context, collectionID string, details json.RawMessage) {
	if c.o.deps.Audit == nil {
		return
	}
	err := c.o.deps.Audit.PublishRecord(ctx, collectionID, string(c.job.OperationKind), c.job.Owner, details)
	if err != nil {
		// Fire-and-forget: a lost audit record never fails a job.
		c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to publish audit record: %v", c.job.ID, err)
	}
}

func (c *Coordinator) setTotal(ctx context.Context, total int) {
	c.total = total
	if err := c.o.deps.Jobs.UpdateTotal(c.job.ID, total); err != nil {
		c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to persist total: %v", c.job.ID, err)
	}
}

func (c *Coordinator) updateExtra(ctx context.Context, fields map[string]interface{}) {
	merged := mergeExtra(c.job.Extra, fields)
	c.job.Extra = merged
	if err := c.o.deps.Jobs.UpdateExtra(c.job.ID, merged); err != nil {
		c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to persist extra: %v", c.job.ID, err)
	}
}

func mergeExtra(existing datatypes.JSON, fields map[string]interface{}) datatypes.JSON {
	merged := map[string]interface{}{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &merged)
	}
	for k, v := range fields {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return existing
	}
	return datatypes.JSON(data)
}
