package sources

import (
	"context"
	"time"

	"indicadores/internal/cache"
	"indicadores/internal/core"
	"indicadores/internal/log"
)

// Cached memoizes dataset loads per (dataset, filter).
type Cached struct {
	next DatasetReader
	memo *cache.Memo[core.Table]
}

var (
	_ DatasetReader = (*Cached)(nil)
	_ Invalidator   = (*Cached)(nil)
)

// NewCached wraps next with the given table cache.
func NewCached(next DatasetReader, c cache.Cache[core.Table], observer cache.Observer) *Cached {
	return &Cached{next: next, memo: cache.NewMemo("datasets", c, observer)}
}

func datasetPrefix(dataset string) string { return "dataset:" + dataset + ":" }

func (c *Cached) ReadDataset(ctx context.Context, dataset string, filter core.Filter) (core.Table, error) {
	return c.memo.Do(datasetPrefix(dataset)+filter.Key(), func() (core.Table, error) {
		return c.next.ReadDataset(ctx, dataset, filter)
	})
}

// Invalidate drops every cached load of dataset.
func (c *Cached) Invalidate(dataset string) int {
	return c.memo.Invalidate(datasetPrefix(dataset))
}

// LoadRecorder receives dataset load measurements.
type LoadRecorder interface {
	RecordDatasetLoad(dataset, backend string, rows int, d time.Duration, err error)
}

// Instrumented logs and measures every load of next.
type Instrumented struct {
	next     DatasetReader
	backend  string
	recorder LoadRecorder
	logger   *log.StructuredLogger
}

var _ DatasetReader = (*Instrumented)(nil)

// NewInstrumented wraps next; recorder may be nil.
func NewInstrumented(next DatasetReader, backend string, recorder LoadRecorder, logger *log.Logger) *Instrumented {
	return &Instrumented{
		next:     next,
		backend:  backend,
		recorder: recorder,
		logger:   log.NewStructuredLogger(logger.WithComponent(log.ComponentSources)),
	}
}

func (i *Instrumented) ReadDataset(ctx context.Context, dataset string, filter core.Filter) (core.Table, error) {
	start := time.Now()
	t, err := i.next.ReadDataset(ctx, dataset, filter)
	elapsed := time.Since(start)
	if i.recorder != nil {
		i.recorder.RecordDatasetLoad(dataset, i.backend, t.Len(), elapsed, err)
	}
	i.logger.LogDatasetLoad(ctx, dataset, i.backend, t.Len(), elapsed.Milliseconds(), err)
	if err != nil {
		return core.Table{}, err
	}
	return t, nil
}
