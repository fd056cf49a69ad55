package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"indicadores/internal/amqp"
	"indicadores/internal/core"
	"indicadores/internal/log"
	"indicadores/internal/sources"
	"indicadores/internal/storage"
)

type fakeExtractor struct {
	tables map[string]core.Table
	fail   map[string]error
	calls  []string
}

func (f *fakeExtractor) Extract(_ context.Context, dataset string, municipalities []string, years []int) (core.Table, error) {
	f.calls = append(f.calls, dataset)
	if err := f.fail[dataset]; err != nil {
		return core.Table{}, err
	}
	return f.tables[dataset], nil
}

func (f *fakeExtractor) Datasets() []string {
	return []string{core.DatasetEmpregoMunicipios, core.DatasetSeguranca, core.DatasetSaudeMensal}
}

type fakeSnapshot struct {
	mu       sync.Mutex
	replaced map[string]int
	runs     []storage.RefreshRun
	last     map[string]storage.RefreshRun
}

func newFakeSnapshot() *fakeSnapshot {
	return &fakeSnapshot{replaced: map[string]int{}, last: map[string]storage.RefreshRun{}}
}

func (s *fakeSnapshot) ReplaceDataset(_ context.Context, t core.Table) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced[t.Schema.Dataset] = t.Len()
	return t.Len(), nil
}

func (s *fakeSnapshot) RecordRefresh(_ context.Context, run storage.RefreshRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeSnapshot) LastRefresh(_ context.Context, dataset string) (storage.RefreshRun, bool, error) {
	run, ok := s.last[dataset]
	return run, ok, nil
}

type fakeInvalidator struct{ datasets []string }

func (f *fakeInvalidator) Invalidate(dataset string) int {
	f.datasets = append(f.datasets, dataset)
	return 1
}

type fakeRecorder struct{ errs int }

func (f *fakeRecorder) RecordRefresh(_ string, _ int, _ time.Duration, err error) {
	if err != nil {
		f.errs++
	}
}

func table(dataset string, n int) core.Table {
	t := core.Table{Schema: core.DefaultCatalog()[dataset]}
	for i := 0; i < n; i++ {
		t.Records = append(t.Records, core.Record{Year: 2024, Month: i%12 + 1})
	}
	return t
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestRefreshIsolatesFailures(t *testing.T) {
	ext := &fakeExtractor{
		tables: map[string]core.Table{
			core.DatasetEmpregoMunicipios: table(core.DatasetEmpregoMunicipios, 3),
			core.DatasetSaudeMensal:       table(core.DatasetSaudeMensal, 2),
		},
		fail: map[string]error{core.DatasetSeguranca: errors.New("relation seguranca does not exist")},
	}
	snap := newFakeSnapshot()
	inv := &fakeInvalidator{}
	rec := &fakeRecorder{}
	w := NewRefreshWorker(ext, snap, Options{Invalidate: []sources.Invalidator{inv}, Recorder: rec, Logger: quietLogger()})

	report, err := w.Refresh(context.Background(), "job-1", nil)
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if len(ext.calls) != 3 {
		t.Fatalf("every dataset must be attempted, calls=%v", ext.calls)
	}
	if report.Failed() != 1 || report.Results[1].Error == "" {
		t.Fatalf("unexpected report %+v", report)
	}
	if snap.replaced[core.DatasetEmpregoMunicipios] != 3 || snap.replaced[core.DatasetSaudeMensal] != 2 {
		t.Fatalf("unexpected replacements %v", snap.replaced)
	}
	if len(inv.datasets) != 2 {
		t.Fatalf("cache must be invalidated for refreshed datasets, got %v", inv.datasets)
	}
	if len(snap.runs) != 3 || snap.runs[1].Error == "" || snap.runs[0].JobID != "job-1" {
		t.Fatalf("unexpected runs %+v", snap.runs)
	}
	if rec.errs != 1 {
		t.Fatalf("recorder errors = %d", rec.errs)
	}
}

func TestRefreshSkipsEmptyExtract(t *testing.T) {
	ext := &fakeExtractor{tables: map[string]core.Table{}}
	snap := newFakeSnapshot()
	w := NewRefreshWorker(ext, snap, Options{Logger: quietLogger()})

	report, err := w.Refresh(context.Background(), "job-2", []string{core.DatasetSeguranca})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Results[0].Skipped {
		t.Fatalf("expected skipped result, got %+v", report.Results[0])
	}
	if _, ok := snap.replaced[core.DatasetSeguranca]; ok {
		t.Fatalf("empty extract must keep the snapshot")
	}
	if len(snap.runs) != 0 {
		t.Fatalf("skipped datasets are not recorded, got %+v", snap.runs)
	}
}

func TestHandleRefreshMessage(t *testing.T) {
	ext := &fakeExtractor{fail: map[string]error{core.DatasetSeguranca: errors.New("boom")}}
	w := NewRefreshWorker(ext, newFakeSnapshot(), Options{Logger: quietLogger()})

	msg := amqp.NewRefreshMessage("test", core.DatasetSeguranca)
	if err := w.HandleRefreshMessage(context.Background(), msg); err == nil {
		t.Fatalf("a job where every dataset failed must be retried")
	}

	ext.tables = map[string]core.Table{core.DatasetEmpregoMunicipios: table(core.DatasetEmpregoMunicipios, 1)}
	msg = amqp.NewRefreshMessage("test", core.DatasetSeguranca, core.DatasetEmpregoMunicipios)
	if err := w.HandleRefreshMessage(context.Background(), msg); err != nil {
		t.Fatalf("partial failure must be acknowledged, got %v", err)
	}
}

func TestStartupRefreshCheck(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	snap := newFakeSnapshot()
	snap.last[core.DatasetEmpregoMunicipios] = storage.RefreshRun{FinishedAt: now.Add(-time.Hour)}
	snap.last[core.DatasetSeguranca] = storage.RefreshRun{FinishedAt: now.Add(-48 * time.Hour)}
	// saude_mensal never refreshed

	ext := &fakeExtractor{tables: map[string]core.Table{}}
	w := NewRefreshWorker(ext, snap, Options{
		MaxAge:      24 * time.Hour,
		Logger:      quietLogger(),
		CurrentTime: func() time.Time { return now },
	})

	if _, err := w.StartupRefreshCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ext.calls) != 2 || ext.calls[0] != core.DatasetSeguranca || ext.calls[1] != core.DatasetSaudeMensal {
		t.Fatalf("expected stale datasets to refresh, got %v", ext.calls)
	}
}

type fakeConsumer struct{ msgs []*amqp.RefreshMessage }

func (f *fakeConsumer) ConsumeRefresh(ctx context.Context, handler amqp.RefreshHandler) error {
	for _, m := range f.msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	ext := &fakeExtractor{tables: map[string]core.Table{core.DatasetSeguranca: table(core.DatasetSeguranca, 4)}}
	snap := newFakeSnapshot()
	w := NewRefreshWorker(ext, snap, Options{Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, &fakeConsumer{msgs: []*amqp.RefreshMessage{amqp.NewRefreshMessage("test", core.DatasetSeguranca)}}, 0)
	}()

	deadline := time.After(2 * time.Second)
	for {
		snap.mu.Lock()
		n := snap.replaced[core.DatasetSeguranca]
		snap.mu.Unlock()
		if n == 4 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("message was not processed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
