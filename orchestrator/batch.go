package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
)

// Batch operations run the single-collection processor once per collection,
// sequentially. Progress, counters, and milestones track collections, not
// items, and one collection failing never stops the rest. The job itself
// fails only when every collection does.

type batchOutcome struct {
	CollectionID string `json:"collection_id"`
	Status       string `json:"status"`
	Artifact     string `json:"artifact,omitempty"`
	Items        int    `json:"items,omitempty"`
	Skipped      int    `json:"skipped,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (c *Coordinator) runBatchBackup(ctx context.Context) error {
	return c.runBatch(ctx, func(ctx context.Context, collectionID string) (batchOutcome, error) {
		objectName, count, err := c.backupCollection(ctx, collectionID, false)
		if err != nil {
			return batchOutcome{}, err
		}
		return batchOutcome{Artifact: objectName, Items: count}, nil
	})
}

func (c *Coordinator) runBatchRestore(ctx context.Context) error {
	return c.runBatch(ctx, func(ctx context.Context, collectionID string) (batchOutcome, error) {
		artifactName, err := c.latestArtifact(ctx, collectionID)
		if err != nil {
			return batchOutcome{}, err
		}
		outcome, err := c.restoreInto(ctx, collectionID, artifactName, false)
		if err != nil {
			return batchOutcome{}, err
		}
		return batchOutcome{Artifact: artifactName, Items: outcome.processed, Skipped: outcome.skipped}, nil
	})
}

func (c *Coordinator) runBatch(ctx context.Context, process func(ctx context.Context, collectionID string) (batchOutcome, error)) error {
	collections := c.params.CollectionIDs
	c.setTotal(ctx, len(collections))
	c.setPhase(0, 100)

	outcomes := make([]batchOutcome, 0, len(collections))
	for i, collectionID := range collections {
		outcome, err := process(ctx, collectionID)
		outcome.CollectionID = collectionID
		if err != nil {
			outcome.Status = "failed"
			outcome.Error = err.Error()
			c.errors++
			c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Collection %s failed: %v", c.job.ID, collectionID, err)
		} else {
			outcome.Status = "completed"
			c.processed++
		}
		outcomes = append(outcomes, outcome)

		if details, err := json.Marshal(outcome); err == nil {
			c.audit(ctx, collectionID, details)
		}

		c.reportRatio(ctx, i+1, len(collections), collectionID)
	}

	c.updateExtra(ctx, map[string]interface{}{"collections": outcomes})

	if c.processed == 0 {
		return fmt.Errorf("all %d collections failed", len(collections))
	}
	return nil
}

// latestArtifact picks the newest archive object for a collection. A
// collection with no archived backups counts as a failed collection, not a
// failed job.
func (c *Coordinator) latestArtifact(ctx context.Context, collectionID string) (string, error) {
	entries, err := c.o.deps.Archive.ListArtifacts(ctx, collectionID)
	if err != nil {
		return "", fmt.Errorf("failed to list artifacts for collection %s: %w", collectionID, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("collection %s: %w", collectionID, ErrArtifactNotFound)
	}
	// ListArtifacts returns newest first.
	return entries[0].Name, nil
}
