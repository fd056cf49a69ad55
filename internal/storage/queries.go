package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ObservationRow is one stored record with JSON encoded dimensions and measures.
type ObservationRow struct {
	Ano      int64
	Mes      int64
	Dims     string
	Measures string
}

// RefreshRun records the outcome of refreshing one dataset.
type RefreshRun struct {
	ID         int64     `json:"id"`
	JobID      string    `json:"job_id"`
	Dataset    string    `json:"dataset"`
	Rows       int64     `json:"rows"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

const deleteDataset = `DELETE FROM observations WHERE dataset = ?`

func (q *Queries) DeleteDataset(ctx context.Context, dataset string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteDataset, dataset)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertObservations writes rows with a single multi-row INSERT.
func (q *Queries) InsertObservations(ctx context.Context, dataset string, rows []ObservationRow) error {
	if len(rows) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO observations (dataset, ano, mes, dims, measures) VALUES `)
	args := make([]any, 0, len(rows)*5)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, dataset, r.Ano, r.Mes, r.Dims, r.Measures)
	}
	_, err := q.db.ExecContext(ctx, b.String(), args...)
	return err
}

// ListObservationsParams narrows a dataset read. Empty slices match all.
type ListObservationsParams struct {
	Dataset      string
	Years        []int
	EntityColumn string
	Entities     []string
}

func (q *Queries) ListObservations(ctx context.Context, arg ListObservationsParams) ([]ObservationRow, error) {
	var b strings.Builder
	b.WriteString(`SELECT ano, mes, dims, measures FROM observations WHERE dataset = ?`)
	args := []any{arg.Dataset}
	if len(arg.Years) > 0 {
		fmt.Fprintf(&b, ` AND ano IN (%s)`, placeholders(len(arg.Years)))
		for _, y := range arg.Years {
			args = append(args, y)
		}
	}
	if arg.EntityColumn != "" && len(arg.Entities) > 0 {
		fmt.Fprintf(&b, ` AND json_extract(dims, ?) IN (%s)`, placeholders(len(arg.Entities)))
		args = append(args, "$."+arg.EntityColumn)
		for _, e := range arg.Entities {
			args = append(args, strings.TrimSpace(e))
		}
	}
	b.WriteString(` ORDER BY ano, mes, id`)

	rows, err := q.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ObservationRow
	for rows.Next() {
		var i ObservationRow
		if err := rows.Scan(&i.Ano, &i.Mes, &i.Dims, &i.Measures); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const countByDataset = `SELECT dataset, COUNT(*) FROM observations GROUP BY dataset ORDER BY dataset`

func (q *Queries) CountByDataset(ctx context.Context) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, countByDataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

const createRefreshRun = `INSERT INTO refresh_runs (job_id, dataset, row_count, error, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRefreshRun(ctx context.Context, r RefreshRun) (int64, error) {
	res, err := q.db.ExecContext(ctx, createRefreshRun,
		r.JobID, r.Dataset, r.Rows, r.Error,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listRefreshRuns = `SELECT id, job_id, dataset, row_count, error, started_at, finished_at
FROM refresh_runs ORDER BY finished_at DESC, id DESC LIMIT ?`

func (q *Queries) ListRefreshRuns(ctx context.Context, limit int) ([]RefreshRun, error) {
	rows, err := q.db.QueryContext(ctx, listRefreshRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RefreshRun
	for rows.Next() {
		i, err := scanRefreshRun(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const lastRefreshRun = `SELECT id, job_id, dataset, row_count, error, started_at, finished_at
FROM refresh_runs WHERE dataset = ? ORDER BY finished_at DESC, id DESC LIMIT 1`

func (q *Queries) LastRefreshRun(ctx context.Context, dataset string) (RefreshRun, error) {
	return scanRefreshRun(q.db.QueryRowContext(ctx, lastRefreshRun, dataset))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRefreshRun(s scanner) (RefreshRun, error) {
	var i RefreshRun
	var started, finished string
	if err := s.Scan(&i.ID, &i.JobID, &i.Dataset, &i.Rows, &i.Error, &started, &finished); err != nil {
		return i, err
	}
	var err error
	if i.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return i, fmt.Errorf("started_at: %w", err)
	}
	if i.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return i, fmt.Errorf("finished_at: %w", err)
	}
	return i, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
