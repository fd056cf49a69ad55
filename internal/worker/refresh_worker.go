package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"indicadores/internal/amqp"
	"indicadores/internal/core"
	"indicadores/internal/log"
	"indicadores/internal/sources"
	"indicadores/internal/storage"
)

// Extractor reads a dataset from the upstream warehouse
type Extractor interface {
	Extract(ctx context.Context, dataset string, municipalities []string, years []int) (core.Table, error)
	Datasets() []string
}

// Snapshot is the local store refreshed by the worker
type Snapshot interface {
	sources.DatasetWriter
	RecordRefresh(ctx context.Context, run storage.RefreshRun) error
	LastRefresh(ctx context.Context, dataset string) (storage.RefreshRun, bool, error)
}

// Recorder receives refresh measurements
type Recorder interface {
	RecordRefresh(dataset string, rows int, d time.Duration, err error)
}

// Options configures a RefreshWorker
type Options struct {
	Municipalities []string
	Years          []int
	// MaxAge marks a dataset stale at startup when its last successful
	// refresh is older than this.
	MaxAge      time.Duration
	Invalidate  []sources.Invalidator
	Recorder    Recorder
	Logger      *log.Logger
	CurrentTime func() time.Time
}

// DatasetResult is the outcome of refreshing one dataset
type DatasetResult struct {
	Dataset string `json:"dataset"`
	Rows    int    `json:"rows"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report summarizes one refresh job
type Report struct {
	JobID   string          `json:"job_id"`
	Results []DatasetResult `json:"results"`
}

// Failed counts the datasets that did not refresh
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Error != "" {
			n++
		}
	}
	return n
}

// RefreshWorker copies datasets from the warehouse into the local snapshot
type RefreshWorker struct {
	extractor Extractor
	snapshot  Snapshot
	opts      Options
	logger    *log.StructuredLogger
	now       func() time.Time
}

func NewRefreshWorker(extractor Extractor, snapshot Snapshot, opts Options) *RefreshWorker {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := opts.CurrentTime
	if now == nil {
		now = time.Now
	}
	return &RefreshWorker{
		extractor: extractor,
		snapshot:  snapshot,
		opts:      opts,
		logger:    log.NewStructuredLogger(logger.WithComponent(log.ComponentWorker)),
		now:       now,
	}
}

// HandleRefreshMessage processes a single refresh message from AMQP.
// Only a job where every dataset failed is reported as an error.
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.RefreshMessage) error {
	slog.InfoContext(ctx, "Processing refresh message",
		"job_id", msg.JobID,
		"reason", msg.Reason,
		"datasets", msg.Datasets)

	report, err := w.Refresh(ctx, msg.JobID, msg.Datasets)
	if err != nil && report.Failed() == len(report.Results) {
		return err
	}
	return nil
}

// RefreshAll refreshes every dataset the warehouse can extract
func (w *RefreshWorker) RefreshAll(ctx context.Context) (Report, error) {
	return w.Refresh(ctx, uuid.NewString(), nil)
}

// StartupRefreshCheck refreshes datasets that never refreshed successfully
// or whose last refresh is older than MaxAge. This recovers from missed
// AMQP messages or worker downtime.
func (w *RefreshWorker) StartupRefreshCheck(ctx context.Context) (Report, error) {
	var stale []string
	for _, name := range w.extractor.Datasets() {
		last, ok, err := w.snapshot.LastRefresh(ctx, name)
		if err != nil {
			return Report{}, fmt.Errorf("check last refresh of %s: %w", name, err)
		}
		if !ok || last.Error != "" || (w.opts.MaxAge > 0 && w.now().Sub(last.FinishedAt) > w.opts.MaxAge) {
			stale = append(stale, name)
		}
	}
	if len(stale) == 0 {
		slog.InfoContext(ctx, "Snapshot is fresh, no startup refresh needed")
		return Report{}, nil
	}
	slog.InfoContext(ctx, "Stale datasets found on startup, refreshing...", "count", len(stale))
	return w.Refresh(ctx, uuid.NewString(), stale)
}

// Refresh reloads the given datasets, all of them when empty. A failing
// dataset does not stop the others; their errors are joined.
func (w *RefreshWorker) Refresh(ctx context.Context, jobID string, datasets []string) (Report, error) {
	if len(datasets) == 0 {
		datasets = w.extractor.Datasets()
	}
	report := Report{JobID: jobID, Results: make([]DatasetResult, 0, len(datasets))}
	var errs []error
	for _, name := range datasets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := w.refreshDataset(ctx, jobID, name)
		if err != nil {
			res.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		report.Results = append(report.Results, res)
	}
	return report, errors.Join(errs...)
}

func (w *RefreshWorker) refreshDataset(ctx context.Context, jobID, dataset string) (res DatasetResult, err error) {
	res.Dataset = dataset
	started := w.now()
	defer func() {
		elapsed := w.now().Sub(started)
		if w.opts.Recorder != nil {
			w.opts.Recorder.RecordRefresh(dataset, res.Rows, elapsed, err)
		}
		if res.Skipped {
			return
		}
		run := storage.RefreshRun{
			JobID:      jobID,
			Dataset:    dataset,
			Rows:       int64(res.Rows),
			StartedAt:  started,
			FinishedAt: w.now(),
		}
		if err != nil {
			run.Error = err.Error()
		}
		if recErr := w.snapshot.RecordRefresh(ctx, run); recErr != nil {
			slog.ErrorContext(ctx, "Failed to record refresh run", "dataset", dataset, "error", recErr)
		}
		w.logger.LogRefreshCompleted(ctx, jobID, dataset, res.Rows, err)
	}()

	table, err := w.extractor.Extract(ctx, dataset, w.opts.Municipalities, w.opts.Years)
	if err != nil {
		return res, fmt.Errorf("extract: %w", err)
	}
	if table.Len() == 0 {
		// Keep the previous snapshot when the warehouse returns nothing
		slog.WarnContext(ctx, "Warehouse returned no rows, keeping snapshot", "dataset", dataset, "job_id", jobID)
		res.Skipped = true
		return res, nil
	}

	n, err := w.snapshot.ReplaceDataset(ctx, table)
	if err != nil {
		return res, fmt.Errorf("replace snapshot: %w", err)
	}
	res.Rows = n

	invalidated := 0
	for _, inv := range w.opts.Invalidate {
		invalidated += inv.Invalidate(dataset)
	}
	slog.DebugContext(ctx, "Cache invalidated after refresh", "dataset", dataset, "entries", invalidated)
	return res, nil
}

// Run consumes refresh messages when consumer is set and refreshes every
// interval until ctx is done.
func (w *RefreshWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	errCh := make(chan error, 1)
	if consumer != nil {
		go func() {
			errCh <- consumer.ConsumeRefresh(ctx, w.HandleRefreshMessage)
		}()
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("refresh consumer: %w", err)
		case <-tick:
			if report, err := w.RefreshAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic refresh failed",
					"job_id", report.JobID,
					"failed", report.Failed(),
					"error", err)
			}
		}
	}
}

// Consumer delivers refresh messages to a handler
type Consumer interface {
	ConsumeRefresh(ctx context.Context, handler amqp.RefreshHandler) error
}
