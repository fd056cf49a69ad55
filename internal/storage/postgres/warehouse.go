// Package postgres extracts datasets from the upstream Postgres warehouse.
package postgres

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"indicadores/internal/core"
	"indicadores/internal/log"
)

// Config holds warehouse connection settings
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Warehouse wraps sqlx.DB with the per-dataset extraction queries
type Warehouse struct {
	db      *sqlx.DB
	catalog core.Catalog
	logger  *log.Logger
}

// Open connects to the warehouse and verifies the connection
func Open(ctx context.Context, cfg Config, catalog core.Catalog, logger *log.Logger) (*Warehouse, error) {
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}
	return NewWithDB(db, catalog, logger), nil
}

// NewWithDB wraps an existing connection
func NewWithDB(db *sqlx.DB, catalog core.Catalog, logger *log.Logger) *Warehouse {
	return &Warehouse{db: db, catalog: catalog, logger: logger.WithComponent(log.ComponentWarehouse)}
}

func (w *Warehouse) Close() error {
	return w.db.Close()
}

// Datasets lists the datasets with an extraction query
func (w *Warehouse) Datasets() []string {
	var out []string
	for _, name := range w.catalog.Names() {
		if _, ok := extractQueries[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Extract runs the dataset query for the given municipalities and years.
func (w *Warehouse) Extract(ctx context.Context, dataset string, municipalities []string, years []int) (core.Table, error) {
	schema, err := w.catalog.Lookup(dataset)
	if err != nil {
		return core.Table{}, err
	}
	query, args, err := BuildQuery(w.db, dataset, municipalities, years)
	if err != nil {
		return core.Table{}, err
	}

	start := time.Now()
	rows, err := w.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return core.Table{}, fmt.Errorf("query %s: %w", dataset, err)
	}
	defer rows.Close()

	table := core.Table{Schema: schema}
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return core.Table{}, fmt.Errorf("scan %s: %w", dataset, err)
		}
		rec, err := recordFromMap(schema, m)
		if err != nil {
			return core.Table{}, fmt.Errorf("%s row %d: %w", dataset, table.Len()+1, err)
		}
		table.Records = append(table.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return core.Table{}, fmt.Errorf("iterate %s: %w", dataset, err)
	}

	w.logger.DebugContext(ctx, "Warehouse extract completed",
		log.FieldDataset, dataset,
		log.FieldRows, table.Len(),
		log.FieldDuration, time.Since(start).Milliseconds())
	return table, nil
}

// BuildQuery expands the IN (?) lists of a dataset query and rebinds it
// for the connection's driver.
func BuildQuery(db *sqlx.DB, dataset string, municipalities []string, years []int) (string, []any, error) {
	q, ok := extractQueries[dataset]
	if !ok {
		return "", nil, fmt.Errorf("no warehouse query for %q: %w", dataset, core.ErrUnknownDataset)
	}
	if len(municipalities) == 0 || len(years) == 0 {
		return "", nil, fmt.Errorf("%s: municipalities and years are required", dataset)
	}
	query, args, err := sqlx.In(q, municipalities, years)
	if err != nil {
		return "", nil, fmt.Errorf("expand %s query: %w", dataset, err)
	}
	return db.Rebind(query), args, nil
}

// recordFromMap converts a scanned row into a record. NULL and non-finite
// measures are left out of Values.
func recordFromMap(schema core.Schema, m map[string]any) (core.Record, error) {
	year, err := intValue(m[schema.YearColumn])
	if err != nil {
		return core.Record{}, fmt.Errorf("%s: %w", schema.YearColumn, err)
	}
	rec := core.Record{
		Year:   year,
		Dims:   make(map[string]string, len(schema.Dimensions)),
		Values: make(map[string]float64, len(schema.Measures)),
	}
	if schema.PeriodColumn != "" {
		if rec.Month, err = intValue(m[schema.PeriodColumn]); err != nil {
			return core.Record{}, fmt.Errorf("%s: %w", schema.PeriodColumn, err)
		}
	}
	for _, d := range schema.Dimensions {
		rec.Dims[d] = strings.TrimSpace(stringValue(m[d]))
	}
	for _, ms := range schema.Measures {
		v, ok, err := floatValue(m[ms.Name])
		if err != nil {
			return core.Record{}, fmt.Errorf("%s: %w", ms.Name, err)
		}
		if ok {
			rec.Values[ms.Name] = v
		}
	}
	return rec, nil
}

func intValue(v any) (int, error) {
	f, ok, err := floatValue(v)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("missing value")
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int(f), nil
}

func floatValue(v any) (float64, bool, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case int:
		f = float64(x)
	case float64:
		f = x
	case float32:
		f = float64(x)
	case []byte:
		return parseFloat(string(x))
	case string:
		return parseFloat(x)
	default:
		return 0, false, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, nil
	}
	return f, true, nil
}

func parseFloat(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, nil
	}
	return f, true, nil
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
