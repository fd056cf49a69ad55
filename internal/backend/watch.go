package backend

import (
	"context"
	"time"

	"indicadores/internal/log"
	"indicadores/internal/sources"
	"indicadores/internal/storage"
)

const watchBatch = 100

// RunSource is the refresh history written by the worker.
type RunSource interface {
	RecentRefreshes(ctx context.Context, limit int) ([]storage.RefreshRun, error)
}

// SnapshotWatcher polls the refresh history of a shared snapshot and drops
// cached tables of datasets another process refreshed.
type SnapshotWatcher struct {
	runs     RunSource
	inv      sources.Invalidator
	onChange func(datasets []string)
	logger   *log.Logger
	lastID   int64
	primed   bool
}

// NewSnapshotWatcher returns a watcher; onChange may be nil.
func NewSnapshotWatcher(runs RunSource, inv sources.Invalidator, onChange func(datasets []string), logger *log.Logger) *SnapshotWatcher {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SnapshotWatcher{
		runs:     runs,
		inv:      inv,
		onChange: onChange,
		logger:   logger.WithComponent(log.ComponentBackend),
	}
}

// Poll invalidates every dataset with a successful run newer than the last
// one seen and returns their names. The first poll only records the
// position.
func (w *SnapshotWatcher) Poll(ctx context.Context) ([]string, error) {
	runs, err := w.runs.RecentRefreshes(ctx, watchBatch)
	if err != nil {
		return nil, err
	}

	maxID := w.lastID
	seen := map[string]bool{}
	var changed []string
	for _, run := range runs {
		if run.ID > maxID {
			maxID = run.ID
		}
		if !w.primed || run.ID <= w.lastID || run.Error != "" || seen[run.Dataset] {
			continue
		}
		seen[run.Dataset] = true
		changed = append(changed, run.Dataset)
	}
	w.lastID = maxID
	w.primed = true

	if len(changed) == 0 {
		return nil, nil
	}
	dropped := 0
	for _, name := range changed {
		dropped += w.inv.Invalidate(name)
	}
	if w.onChange != nil {
		w.onChange(changed)
	}
	w.logger.InfoContext(ctx, "Snapshot refreshed by worker, cache invalidated",
		"datasets", changed, "entries", dropped)
	return changed, nil
}

// Run polls every interval until ctx is done.
func (w *SnapshotWatcher) Run(ctx context.Context, interval time.Duration) {
	if _, err := w.Poll(ctx); err != nil {
		w.logger.WarnContext(ctx, "Snapshot watch failed", log.FieldError, err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "Snapshot watch failed", log.FieldError, err)
			}
		}
	}
}
