package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/tnqbao/gau-kv-orchestrator/infra"
)

// runExport walks the collection, fetches every value, and stages the
// serialized artifact for a single authenticated download.
func (c *Coordinator) runExport(ctx context.Context) error {
	format := c.params.formatOrDefault()

	keys, err := c.enumerateKeys(ctx, c.job.CollectionID, c.params.Prefix, true)
	if err != nil {
		return err
	}

	c.setTotal(ctx, len(keys))
	c.reportPercent(ctx, enumerationBudget, "")
	c.setPhase(enumerationBudget, 85)

	items := make([]ImportItem, 0, len(keys))
	for i, key := range keys {
		value, err := c.o.deps.Store.GetValue(ctx, c.job.CollectionID, key)
		if err != nil {
			c.errors++
			if !errors.Is(err, infra.ErrKeyNotFound) {
				c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to fetch %q: %v", c.job.ID, key, err)
			}
		} else {
			items = append(items, ImportItem{Name: key, Value: value})
			c.processed++
		}

		if (i+1)%progressReportInterval == 0 || i+1 == len(keys) {
			c.reportRatio(ctx, i+1, len(keys), key)
		}
	}

	data, err := serializeItems(items, format)
	if err != nil {
		return err
	}

	stageKey := exportStageKey(c.job.ID)
	if err := c.o.deps.Stage.SetBytes(ctx, stageKey, data, c.o.artifactTTL); err != nil {
		return fmt.Errorf("failed to stage export artifact: %w", err)
	}

	c.updateExtra(ctx, map[string]interface{}{
		"format":         format,
		"artifact_bytes": len(data),
	})

	return nil
}
