package orchestrator

import (
	"context"
	"fmt"
)

// enumerateKeys walks the collection's cursor-paginated key listing until
// the store reports it complete. A listing failure aborts the whole job
// before any item processing. With track set, progress creeps toward the
// enumeration budget; the exact share per page is unknowable up front.
func (c *Coordinator) enumerateKeys(ctx context.Context, collectionID, prefix string, track bool) ([]string, error) {
	var keys []string
	cursor := ""
	pages := 0

	for {
		page, err := c.o.deps.Store.ListKeys(ctx, collectionID, prefix, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate collection %s: %w", collectionID, err)
		}

		keys = append(keys, page.Keys...)
		pages++

		if track {
			percentage := pages
			if percentage > enumerationBudget-1 {
				percentage = enumerationBudget - 1
			}
			current := ""
			if len(page.Keys) > 0 {
				current = page.Keys[len(page.Keys)-1]
			}
			c.reportPercent(ctx, percentage, current)
		}

		if page.ListComplete || page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	return keys, nil
}
