package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"indicadores/internal/core"
)

func newTestRepo(t *testing.T, batch int) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), core.DefaultCatalog(), batch)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func emprego(records ...core.Record) core.Table {
	return core.Table{Schema: core.DefaultCatalog()[core.DatasetEmpregoMunicipios], Records: records}
}

func rec(year, month int, city string, v float64) core.Record {
	return core.Record{
		Year:   year,
		Month:  month,
		Dims:   map[string]string{"municipio": city},
		Values: map[string]float64{"saldo_movimentacao": v},
	}
}

func TestReplaceAndReadDataset(t *testing.T) {
	repo := newTestRepo(t, 2)
	ctx := context.Background()

	n, err := repo.ReplaceDataset(ctx, emprego(
		rec(2023, 1, "Canoas", 10),
		rec(2024, 1, "Canoas", 12),
		rec(2024, 1, "Gravataí", 3),
		rec(2024, 2, "Canoas", math.NaN()),
		rec(2024, 3, "Canoas", math.Inf(1)),
	))
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n != 5 {
		t.Fatalf("inserted %d, want 5", n)
	}

	tbl, err := repo.ReadDataset(ctx, core.DatasetEmpregoMunicipios, core.Filter{
		Municipalities: []string{"Canoas"},
		Years:          []int{2024},
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", tbl.Len())
	}
	if tbl.Records[0].Values["saldo_movimentacao"] != 12 || tbl.Records[0].Dims["municipio"] != "Canoas" {
		t.Fatalf("unexpected first record %+v", tbl.Records[0])
	}
	for _, r := range tbl.Records[1:] {
		if _, ok := r.Values["saldo_movimentacao"]; ok {
			t.Fatalf("non-finite value must be read back as missing: %+v", r)
		}
	}
}

func TestReplaceDatasetSwapsSnapshot(t *testing.T) {
	repo := newTestRepo(t, 0)
	ctx := context.Background()

	if _, err := repo.ReplaceDataset(ctx, emprego(rec(2023, 1, "Canoas", 1), rec(2023, 2, "Canoas", 2))); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	if _, err := repo.ReplaceDataset(ctx, emprego(rec(2024, 1, "Canoas", 5))); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	tbl, err := repo.ReadDataset(ctx, core.DatasetEmpregoMunicipios, core.Filter{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tbl.Len() != 1 || tbl.Records[0].Year != 2024 {
		t.Fatalf("expected only the new snapshot, got %+v", tbl.Records)
	}

	counts, err := repo.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[core.DatasetEmpregoMunicipios] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestReplaceUnknownDataset(t *testing.T) {
	repo := newTestRepo(t, 0)
	_, err := repo.ReplaceDataset(context.Background(), core.Table{Schema: core.Schema{Dataset: "nope"}})
	if err == nil {
		t.Fatalf("expected error for unknown dataset")
	}
}

func TestRefreshRuns(t *testing.T) {
	repo := newTestRepo(t, 0)
	ctx := context.Background()

	if _, ok, err := repo.LastRefresh(ctx, core.DatasetSeguranca); err != nil || ok {
		t.Fatalf("expected no runs, got ok=%v err=%v", ok, err)
	}

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	runs := []RefreshRun{
		{JobID: "a", Dataset: core.DatasetSeguranca, Rows: 10, StartedAt: base, FinishedAt: base.Add(time.Second)},
		{JobID: "b", Dataset: core.DatasetSeguranca, Error: "timeout", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second)},
	}
	for _, r := range runs {
		if err := repo.RecordRefresh(ctx, r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	last, ok, err := repo.LastRefresh(ctx, core.DatasetSeguranca)
	if err != nil || !ok {
		t.Fatalf("last refresh: ok=%v err=%v", ok, err)
	}
	if last.JobID != "b" || last.Error != "timeout" || !last.FinishedAt.Equal(base.Add(time.Hour+time.Second)) {
		t.Fatalf("unexpected last run %+v", last)
	}

	recent, err := repo.RecentRefreshes(ctx, 10)
	if err != nil || len(recent) != 2 {
		t.Fatalf("recent = %v, %v", recent, err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	first, err := NewSQLiteRepository(path, core.DefaultCatalog(), 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if first.SchemaVersion() != 2 {
		t.Fatalf("schema version = %d, want 2", first.SchemaVersion())
	}
	first.Close()

	again, err := NewSQLiteRepository(path, core.DefaultCatalog(), 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	if again.SchemaVersion() != 2 {
		t.Fatalf("schema version after reopen = %d", again.SchemaVersion())
	}
}
