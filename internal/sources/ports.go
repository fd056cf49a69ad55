// Package sources defines the data loader ports and the decoding shared by
// every adapter that reads tabular datasets.
package sources

import (
	"context"

	"indicadores/internal/core"
)

// Ports for outbound adapters.
type (
	// DatasetReader loads one dataset already restricted by the filter.
	// The aggregation engine never re-filters by entity.
	DatasetReader interface {
		ReadDataset(ctx context.Context, dataset string, filter core.Filter) (core.Table, error)
	}

	// DatasetWriter replaces the stored rows of a dataset.
	DatasetWriter interface {
		ReplaceDataset(ctx context.Context, table core.Table) (int, error)
	}

	// Invalidator drops cached loads of a dataset.
	Invalidator interface {
		Invalidate(dataset string) int
	}
)
