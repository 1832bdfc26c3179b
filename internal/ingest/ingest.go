// Package ingest folds store batch reports into three-way bulk results.
package ingest

import (
	"context"
	"fmt"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
)

// Ingest persists a batch through the store's unordered insert and partitions
// the outcome. Per-record failures are data, never errors: uniqueness
// violations land in Duplicates, everything else in Errors, and records the
// store committed land in Successful even when the batch as a whole reported
// a mixed result. Only store-level (infrastructure) failure returns an error.
//
// The three partitions cover the input exactly once each and preserve the
// batch's relative order.
func Ingest(ctx context.Context, store catalog.ProductStore, batch []catalog.Product) (catalog.BulkResult, error) {
	var result catalog.BulkResult
	if len(batch) == 0 {
		return result, nil
	}

	report, err := store.InsertBatch(ctx, batch)
	if err != nil {
		return catalog.BulkResult{}, fmt.Errorf("insert batch: %w", err)
	}

	failures := make(map[int]catalog.InsertFailure, len(report.Failures))
	for _, f := range report.Failures {
		failures[f.Index] = f
	}
	inserted := make(map[int]struct{}, len(report.Inserted))
	for _, i := range report.Inserted {
		inserted[i] = struct{}{}
	}

	for i, p := range batch {
		if f, failed := failures[i]; failed {
			if f.Duplicate {
				result.Duplicates = append(result.Duplicates, catalog.DuplicateRecord{
					Product: p,
					Field:   f.Field,
					Value:   f.Value,
					Message: f.Message,
				})
			} else {
				result.Errors = append(result.Errors, catalog.ErrorRecord{
					Product: p,
					Message: f.Message,
				})
			}
			continue
		}
		if _, ok := inserted[i]; ok {
			result.Successful = append(result.Successful, p)
			continue
		}
		// The store reported neither success nor failure for this index.
		// Treat it as errored rather than dropping it on the floor.
		result.Errors = append(result.Errors, catalog.ErrorRecord{
			Product: p,
			Message: "record outcome missing from batch report",
		})
	}
	return result, nil
}
