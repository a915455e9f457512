package orchestrator

import (
	"context"
	"fmt"
)

// runRestore pulls a named archive object and imports its items back into
// the collection under the requested collision policy.
func (c *Coordinator) runRestore(ctx context.Context) error {
	outcome, err := c.restoreInto(ctx, c.job.CollectionID, c.params.ArtifactName, true)
	if err != nil {
		return err
	}

	c.updateExtra(ctx, map[string]interface{}{
		"artifact":      c.params.ArtifactName,
		"restored":      outcome.processed,
		"skipped_items": outcome.skipped,
	})
	return nil
}

// restoreInto downloads, parses, and imports one archive artifact. With
// track unset the coordinator's counters stay untouched, so batch restore
// can account at collection granularity.
func (c *Coordinator) restoreInto(ctx context.Context, collectionID, artifactName string, track bool) (importOutcome, error) {
	data, err := c.o.deps.Archive.GetArtifact(ctx, artifactName)
	if err != nil {
		return importOutcome{}, fmt.Errorf("failed to fetch artifact %q: %w", artifactName, err)
	}

	items, err := parseArtifact(data, formatForArtifact(artifactName, c.params.Format))
	if err != nil {
		return importOutcome{}, err
	}

	if track {
		c.setTotal(ctx, len(items))
		c.reportPercent(ctx, enumerationBudget, "")
		c.setPhase(enumerationBudget, 90)
	}

	return c.importInto(ctx, collectionID, items, c.params.policyOrDefault(), track)
}
