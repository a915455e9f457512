package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tnqbao/gau-kv-orchestrator/infra"
	"gorm.io/datatypes"
)

type importOutcome struct {
	processed int
	skipped   int
	errors    int
}

func (c *Coordinator) runImport(ctx context.Context) error {
	items := c.params.Items
	c.setTotal(ctx, len(items))

	_, err := c.importInto(ctx, c.job.CollectionID, items, c.params.policyOrDefault(), true)
	return err
}

// importInto writes a batch of items under a collision policy. With track
// set, the coordinator's counters and progress follow along; batch
// processors run it untracked and account at collection granularity.
//
// Metadata routing happens per item: inline metadata rides along in the
// remote store's bounded slot, custom metadata and tags go to the side
// store. A side metadata record is upserted for every successfully written
// key either way, so imported keys stay visible to search tooling.
func (c *Coordinator) importInto(ctx context.Context, collectionID string, items []ImportItem, policy CollisionPolicy, track bool) (importOutcome, error) {
	var out importOutcome
	done := 0

	report := func(current string) {
		if !track {
			return
		}
		c.processed = out.processed
		c.skipped = out.skipped
		c.reportRatio(ctx, done, len(items), current)
	}

	for start := 0; start < len(items); start += metadataChunkSize {
		chunk := items[start:min(start+metadataChunkSize, len(items))]

		toWrite := make([]infra.BulkWriteItem, 0, len(chunk))
		written := make([]ImportItem, 0, len(chunk))

		for _, item := range chunk {
			if policy == PolicySkip || policy == PolicyFail {
				_, err := c.o.deps.Store.GetValue(ctx, collectionID, item.Name)
				switch {
				case err == nil:
					if policy == PolicyFail {
						// Items after this one in submission order are
						// neither processed nor errored.
						return out, fmt.Errorf("key %q: %w", item.Name, ErrCollision)
					}
					out.skipped++
					done++
					continue
				case !errors.Is(err, infra.ErrKeyNotFound):
					out.errors++
					if track {
						c.errors++
					}
					done++
					continue
				}
			}

			toWrite = append(toWrite, infra.BulkWriteItem{
				Key:        item.Name,
				Value:      item.Value,
				TTLSeconds: item.TTLSeconds,
				Expiration: item.Expiration,
				Metadata:   item.InlineMetadata,
			})
			written = append(written, item)
		}

		if len(toWrite) > 0 {
			if err := c.o.deps.Store.BulkPut(ctx, collectionID, toWrite); err != nil {
				out.errors += len(toWrite)
				if track {
					c.errors += len(toWrite)
				}
				done += len(toWrite)
				c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Import chunk of %d items failed: %v",
					c.job.ID, len(toWrite), err)
			} else {
				for _, item := range written {
					tags, err := tagsJSON(item.Tags)
					if err != nil {
						return out, err
					}
					if err := c.o.deps.Metadata.Upsert(collectionID, item.Name, tags, datatypes.JSON(item.CustomMetadata)); err != nil {
						// The side store being unreachable is an
						// infrastructure fault, not an item fault.
						return out, fmt.Errorf("failed to upsert side metadata for %q: %w", item.Name, err)
					}
				}
				out.processed += len(toWrite)
				done += len(toWrite)
			}
		}

		if len(chunk) > 0 {
			report(chunk[len(chunk)-1].Name)
		}
	}

	return out, nil
}

func tagsJSON(tags []string) (datatypes.JSON, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return datatypes.JSON(data), nil
}
