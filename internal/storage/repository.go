package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"indicadores/internal/core"
	"indicadores/internal/sources"

	_ "modernc.org/sqlite"
)

// DefaultBatchSize is the number of records written per INSERT statement.
const DefaultBatchSize = 500

// SQLiteRepository is the local snapshot of every dataset.
type SQLiteRepository struct {
	db        *sql.DB
	queries   *Queries
	catalog   core.Catalog
	batchSize int
	version   uint
}

var (
	_ sources.DatasetReader = (*SQLiteRepository)(nil)
	_ sources.DatasetWriter = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, catalog core.Catalog, batchSize int) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := Migrate(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SQLiteRepository{
		db:        db,
		queries:   New(db),
		catalog:   catalog,
		batchSize: batchSize,
		version:   version,
	}, nil
}

// SchemaVersion is the migration version the snapshot was opened at.
func (r *SQLiteRepository) SchemaVersion() uint { return r.version }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReadDataset implements sources.DatasetReader
func (r *SQLiteRepository) ReadDataset(ctx context.Context, dataset string, filter core.Filter) (core.Table, error) {
	schema, err := r.catalog.Lookup(dataset)
	if err != nil {
		return core.Table{}, err
	}
	rows, err := r.queries.ListObservations(ctx, ListObservationsParams{
		Dataset:      dataset,
		Years:        filter.Years,
		EntityColumn: schema.EntityColumn,
		Entities:     filter.Municipalities,
	})
	if err != nil {
		return core.Table{}, fmt.Errorf("list observations %s: %w", dataset, err)
	}

	table := core.Table{Schema: schema, Records: make([]core.Record, 0, len(rows))}
	for _, row := range rows {
		rec, err := decodeRow(row)
		if err != nil {
			return core.Table{}, fmt.Errorf("decode %s: %w", dataset, err)
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

// ReplaceDataset implements sources.DatasetWriter. The previous snapshot is
// swapped out in one transaction; non-finite measures are stored as NULL.
func (r *SQLiteRepository) ReplaceDataset(ctx context.Context, t core.Table) (int, error) {
	if _, err := r.catalog.Lookup(t.Schema.Dataset); err != nil {
		return 0, err
	}
	rows := make([]ObservationRow, 0, len(t.Records))
	for _, rec := range t.Records {
		row, err := encodeRecord(t.Schema, rec)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	deleted, err := q.DeleteDataset(ctx, t.Schema.Dataset)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", t.Schema.Dataset, err)
	}
	for start := 0; start < len(rows); start += r.batchSize {
		end := min(start+r.batchSize, len(rows))
		if err := q.InsertObservations(ctx, t.Schema.Dataset, rows[start:end]); err != nil {
			return 0, fmt.Errorf("insert %s batch at %d: %w", t.Schema.Dataset, start, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Dataset snapshot replaced",
		"dataset", t.Schema.Dataset,
		"deleted", deleted,
		"inserted", len(rows),
		"batch_size", r.batchSize)
	return len(rows), nil
}

// Counts returns the stored record count per dataset.
func (r *SQLiteRepository) Counts(ctx context.Context) (map[string]int64, error) {
	return r.queries.CountByDataset(ctx)
}

// RecordRefresh stores the outcome of a dataset refresh.
func (r *SQLiteRepository) RecordRefresh(ctx context.Context, run RefreshRun) error {
	if _, err := r.queries.CreateRefreshRun(ctx, run); err != nil {
		return fmt.Errorf("record refresh run: %w", err)
	}
	return nil
}

// LastRefresh returns the latest refresh of a dataset; ok is false when it never ran.
func (r *SQLiteRepository) LastRefresh(ctx context.Context, dataset string) (RefreshRun, bool, error) {
	run, err := r.queries.LastRefreshRun(ctx, dataset)
	if errors.Is(err, sql.ErrNoRows) {
		return RefreshRun{}, false, nil
	}
	if err != nil {
		return RefreshRun{}, false, fmt.Errorf("last refresh run: %w", err)
	}
	return run, true, nil
}

func (r *SQLiteRepository) RecentRefreshes(ctx context.Context, limit int) ([]RefreshRun, error) {
	return r.queries.ListRefreshRuns(ctx, limit)
}

func encodeRecord(schema core.Schema, rec core.Record) (ObservationRow, error) {
	dims := rec.Dims
	if dims == nil {
		dims = map[string]string{}
	}
	measures := make(map[string]*float64, len(schema.Measures))
	for _, m := range schema.Measures {
		v, ok := rec.Values[m.Name]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			measures[m.Name] = nil
			continue
		}
		measures[m.Name] = &v
	}
	d, err := json.Marshal(dims)
	if err != nil {
		return ObservationRow{}, fmt.Errorf("encode dims: %w", err)
	}
	m, err := json.Marshal(measures)
	if err != nil {
		return ObservationRow{}, fmt.Errorf("encode measures: %w", err)
	}
	return ObservationRow{Ano: int64(rec.Year), Mes: int64(rec.Month), Dims: string(d), Measures: string(m)}, nil
}

func decodeRow(row ObservationRow) (core.Record, error) {
	rec := core.Record{Year: int(row.Ano), Month: int(row.Mes), Values: map[string]float64{}}
	if err := json.Unmarshal([]byte(row.Dims), &rec.Dims); err != nil {
		return rec, fmt.Errorf("dims: %w", err)
	}
	var measures map[string]*float64
	if err := json.Unmarshal([]byte(row.Measures), &measures); err != nil {
		return rec, fmt.Errorf("measures: %w", err)
	}
	for k, v := range measures {
		if v != nil {
			rec.Values[k] = *v
		}
	}
	return rec, nil
}
