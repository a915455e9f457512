package orchestrator

import (
	"context"
	"errors"

	"github.com/tnqbao/gau-kv-orchestrator/infra"
)

// Item-list operations: the caller supplies the key set, progress is
// linear in items, and a failed item never voids the rest of the job.

func (c *Coordinator) runBulkDelete(ctx context.Context) error {
	keys := c.params.Keys
	c.setTotal(ctx, len(keys))

	for start := 0; start < len(keys); start += infra.BulkDeleteLimit {
		chunk := keys[start:min(start+infra.BulkDeleteLimit, len(keys))]

		if err := c.o.deps.Store.BulkDelete(ctx, c.job.CollectionID, chunk); err != nil {
			c.errors += len(chunk)
			c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Bulk delete chunk of %d keys failed: %v",
				c.job.ID, len(chunk), err)
		} else {
			c.processed += len(chunk)
			// Deleted keys lose their side metadata records too, so the
			// side store never describes keys that no longer exist.
			if err := c.o.deps.Metadata.DeleteByKeys(c.job.CollectionID, chunk); err != nil {
				c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to drop side metadata for %d keys: %v",
					c.job.ID, len(chunk), err)
			}
		}

		c.reportRatio(ctx, c.processed+c.errors, c.total, chunk[len(chunk)-1])
	}

	return nil
}

// runBulkCopy reads every source value first, then writes the batch to the
// target collection. Both phases are O(total), so each gets half the bar.
func (c *Coordinator) runBulkCopy(ctx context.Context) error {
	keys := c.params.Keys
	target := c.params.TargetCollectionID
	c.setTotal(ctx, len(keys))

	c.setPhase(0, 50)
	fetched := make([]infra.BulkWriteItem, 0, len(keys))
	for i, key := range keys {
		value, err := c.o.deps.Store.GetValue(ctx, c.job.CollectionID, key)
		if err != nil {
			c.errors++
			if !errors.Is(err, infra.ErrKeyNotFound) {
				c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to fetch %q: %v", c.job.ID, key, err)
			}
		} else {
			fetched = append(fetched, infra.BulkWriteItem{Key: key, Value: value})
		}

		if (i+1)%progressReportInterval == 0 || i+1 == len(keys) {
			c.reportRatio(ctx, i+1, len(keys), key)
		}
	}

	c.setPhase(50, 50)
	written := 0
	for start := 0; start < len(fetched); start += infra.BulkWriteLimit {
		chunk := fetched[start:min(start+infra.BulkWriteLimit, len(fetched))]

		if err := c.o.deps.Store.BulkPut(ctx, target, chunk); err != nil {
			c.errors += len(chunk)
			c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Bulk copy write chunk of %d items failed: %v",
				c.job.ID, len(chunk), err)
		} else {
			c.processed += len(chunk)
		}
		written += len(chunk)

		c.reportRatio(ctx, written, len(fetched), chunk[len(chunk)-1].Key)
	}
	if len(fetched) == 0 {
		c.reportPercent(ctx, 100, "")
	}

	return nil
}

// runTTLUpdate rewrites each key with the new expiry. The remote store has
// no TTL-only endpoint, so this is a read-modify-write per key.
func (c *Coordinator) runTTLUpdate(ctx context.Context) error {
	keys := c.params.Keys
	c.setTotal(ctx, len(keys))

	opts := &infra.WriteOptions{
		TTLSeconds: c.params.TTLSeconds,
		Expiration: c.params.Expiration,
	}

	for i, key := range keys {
		value, err := c.o.deps.Store.GetValue(ctx, c.job.CollectionID, key)
		if err != nil {
			c.errors++
			if !errors.Is(err, infra.ErrKeyNotFound) {
				c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to fetch %q: %v", c.job.ID, key, err)
			}
		} else if err := c.o.deps.Store.PutValue(ctx, c.job.CollectionID, key, value, opts); err != nil {
			c.errors++
			c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to rewrite %q: %v", c.job.ID, key, err)
		} else {
			c.processed++
		}

		if (i+1)%progressReportInterval == 0 || i+1 == len(keys) {
			c.reportRatio(ctx, i+1, len(keys), key)
		}
	}

	return nil
}

// runTagUpdate applies the tag set to the side metadata store in small
// chunks, since every item costs one side-store write.
func (c *Coordinator) runTagUpdate(ctx context.Context) error {
	keys := c.params.Keys
	c.setTotal(ctx, len(keys))

	tags, err := tagsJSON(c.params.Tags)
	if err != nil {
		return err
	}

	done := 0
	for start := 0; start < len(keys); start += metadataChunkSize {
		chunk := keys[start:min(start+metadataChunkSize, len(keys))]

		for _, key := range chunk {
			if err := c.o.deps.Metadata.Upsert(c.job.CollectionID, key, tags, nil); err != nil {
				c.errors++
				c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to tag %q: %v", c.job.ID, key, err)
			} else {
				c.processed++
			}
			done++
		}

		c.reportRatio(ctx, done, len(keys), chunk[len(chunk)-1])
	}

	return nil
}
