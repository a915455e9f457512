package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tnqbao/gau-kv-orchestrator/infra"
)

// runBackup snapshots the whole collection, side metadata included, into
// a durable archive object.
func (c *Coordinator) runBackup(ctx context.Context) error {
	objectName, count, err := c.backupCollection(ctx, c.job.CollectionID, true)
	if err != nil {
		return err
	}

	c.updateExtra(ctx, map[string]interface{}{
		"artifact":    objectName,
		"total_items": count,
	})
	return nil
}

// backupCollection enumerates, fetches, and archives one collection.
// Unlike exports, backups fold the side metadata store's tags and custom
// metadata back into each serialized item so a restore reconstructs both
// channels. Returns the archive object name and the item count.
func (c *Coordinator) backupCollection(ctx context.Context, collectionID string, track bool) (string, int, error) {
	format := c.params.formatOrDefault()

	keys, err := c.enumerateKeys(ctx, collectionID, c.params.Prefix, track)
	if err != nil {
		return "", 0, err
	}

	if track {
		c.setTotal(ctx, len(keys))
		c.reportPercent(ctx, enumerationBudget, "")
		c.setPhase(enumerationBudget, 85)
	}

	items := make([]ImportItem, 0, len(keys))
	for i, key := range keys {
		value, err := c.o.deps.Store.GetValue(ctx, collectionID, key)
		if err != nil {
			if track {
				c.errors++
			}
			if !errors.Is(err, infra.ErrKeyNotFound) {
				c.o.deps.Logger.WarningWithContextf(ctx, "[Job %s] Failed to fetch %q: %v", c.job.ID, key, err)
			}
		} else {
			items = append(items, ImportItem{Name: key, Value: value})
			if track {
				c.processed++
			}
		}

		if track && ((i+1)%progressReportInterval == 0 || i+1 == len(keys)) {
			c.reportRatio(ctx, i+1, len(keys), key)
		}
	}

	if err := c.attachSideMetadata(collectionID, items); err != nil {
		return "", 0, err
	}

	data, err := serializeItems(items, format)
	if err != nil {
		return "", 0, err
	}

	name := fmt.Sprintf("backup-%s.%s", time.Now().UTC().Format("20060102-150405"), artifactExtension(format))
	objectName, err := c.o.deps.Archive.PutArtifact(ctx, collectionID, name, data, artifactContentType(format))
	if err != nil {
		return "", 0, fmt.Errorf("failed to archive backup for collection %s: %w", collectionID, err)
	}

	return objectName, len(items), nil
}

// attachSideMetadata joins the side store's records onto the items by key.
func (c *Coordinator) attachSideMetadata(collectionID string, items []ImportItem) error {
	byKey := make(map[string]int, len(items))
	keys := make([]string, 0, len(items))
	for i, item := range items {
		byKey[item.Name] = i
		keys = append(keys, item.Name)
	}

	for start := 0; start < len(keys); start += metadataChunkSize {
		chunk := keys[start:min(start+metadataChunkSize, len(keys))]

		records, err := c.o.deps.Metadata.FindByKeys(collectionID, chunk)
		if err != nil {
			return fmt.Errorf("failed to load side metadata for collection %s: %w", collectionID, err)
		}
		for _, record := range records {
			i, ok := byKey[record.KeyName]
			if !ok {
				continue
			}
			if len(record.Tags) > 0 {
				var tags []string
				if err := json.Unmarshal(record.Tags, &tags); err == nil {
					items[i].Tags = tags
				}
			}
			if len(record.CustomMetadata) > 0 {
				items[i].CustomMetadata = json.RawMessage(record.CustomMetadata)
			}
		}
	}

	return nil
}
