// Package backend assembles the dataset reader the dashboard runs on: one
// source chosen by DATA_BACKEND, instrumented and fronted by the table cache.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"indicadores/internal/cache"
	"indicadores/internal/config"
	"indicadores/internal/sources"
	"indicadores/internal/storage"
)

// Kind names a dataset source.
type Kind string

const (
	MemoryBackend Kind = "memory"
	SQLiteBackend Kind = "sqlite"
	SheetsBackend Kind = "sheets"
	CSVBackend    Kind = "csv"
)

func (k Kind) String() string { return string(k) }

// required lists what each kind needs beyond its name.
var required = map[Kind]func(Config) error{
	MemoryBackend: func(Config) error { return nil },
	SQLiteBackend: func(c Config) error {
		if c.SQLiteDBPath == "" {
			return errors.New("sqlite backend needs SQLITE_DB_PATH")
		}
		return nil
	},
	// Credentials may also come from GOOGLE_APPLICATION_CREDENTIALS.
	SheetsBackend: func(Config) error { return nil },
	CSVBackend: func(c Config) error {
		if c.CSVExportBaseURL == "" {
			return errors.New("csv backend needs CSV_EXPORT_BASE_URL")
		}
		return nil
	},
}

func (k Kind) IsValid() bool {
	_, ok := required[k]
	return ok
}

// Config is the slice of the application config the factory reads.
type Config struct {
	Type Kind

	DataDirectory string

	SQLiteDBPath string
	BatchSize    int

	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	CSVExportBaseURL string

	RedisAddr       string
	CacheTTL        time.Duration
	CacheMaxEntries int
}

func (c Config) Validate() error {
	check, ok := required[c.Type]
	if !ok {
		return fmt.Errorf("unknown backend %q", c.Type)
	}
	return check(c)
}

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errors.New("nil application config")
	}
	kind := Kind(app.DataBackend)
	if !kind.IsValid() {
		return Config{}, fmt.Errorf("unknown backend %q in DATA_BACKEND", app.DataBackend)
	}
	return Config{
		Type:                     kind,
		DataDirectory:            app.DataDir,
		SQLiteDBPath:             app.SQLiteDBPath,
		BatchSize:                app.RefreshBatchSize,
		GoogleSpreadsheetID:      app.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: app.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: app.GoogleServiceAccountFile,
		CSVExportBaseURL:         app.CSVExportBaseURL,
		RedisAddr:                app.RedisAddr,
		CacheTTL:                 app.CacheTTL,
		CacheMaxEntries:          app.CacheMaxEntries,
	}, nil
}

// BackendResult is what CreateBackend hands back to the commands.
type BackendResult struct {
	// Reader is instrumented and cached.
	Reader sources.DatasetReader
	// Invalidator drops cached loads of a dataset.
	Invalidator sources.Invalidator
	// Snapshot is set for the sqlite backend only.
	Snapshot *storage.SQLiteRepository
	// Cleaners go to a cache.Manager.
	Cleaners []cache.Cleaner
	Cleanup  func() error
}

// Close releases the backend's connections. Safe on a nil result.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
