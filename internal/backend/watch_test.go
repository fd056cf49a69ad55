package backend

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"indicadores/internal/storage"
)

type fakeRuns struct {
	runs []storage.RefreshRun
	err  error
}

func (f *fakeRuns) RecentRefreshes(ctx context.Context, limit int) ([]storage.RefreshRun, error) {
	return f.runs, f.err
}

type countingInvalidator map[string]int

func (c countingInvalidator) Invalidate(dataset string) int {
	c[dataset]++
	return 1
}

func TestSnapshotWatcherPoll(t *testing.T) {
	ctx := context.Background()
	runs := &fakeRuns{runs: []storage.RefreshRun{{ID: 2, Dataset: "seguranca"}, {ID: 1, Dataset: "cnpj_total"}}}
	inv := countingInvalidator{}
	var notified [][]string
	w := NewSnapshotWatcher(runs, inv, func(ds []string) { notified = append(notified, ds) }, nil)

	got, err := w.Poll(ctx)
	if err != nil || got != nil {
		t.Fatalf("first poll = %v, %v; want nothing", got, err)
	}

	runs.runs = []storage.RefreshRun{
		{ID: 5, Dataset: "seguranca"},
		{ID: 4, Dataset: "saude_mensal", Error: "extract: timeout"},
		{ID: 3, Dataset: "seguranca"},
		{ID: 2, Dataset: "seguranca"},
	}
	got, err = w.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"seguranca"}) {
		t.Fatalf("changed = %v", got)
	}
	if inv["seguranca"] != 1 || inv["saude_mensal"] != 0 {
		t.Fatalf("invalidations = %v", inv)
	}
	if len(notified) != 1 {
		t.Fatalf("notified %d times", len(notified))
	}

	got, _ = w.Poll(ctx)
	if got != nil {
		t.Fatalf("repeat poll = %v", got)
	}
}

func TestSnapshotWatcherError(t *testing.T) {
	w := NewSnapshotWatcher(&fakeRuns{err: errors.New("database is locked")}, countingInvalidator{}, nil, nil)
	if _, err := w.Poll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
