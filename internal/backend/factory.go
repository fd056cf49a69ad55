package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"indicadores/internal/cache"
	"indicadores/internal/core"
	"indicadores/internal/log"
	"indicadores/internal/metrics"
	"indicadores/internal/sources"
	"indicadores/internal/sources/csvexport"
	"indicadores/internal/sources/google"
	"indicadores/internal/sources/memory"
	"indicadores/internal/storage"
)

const (
	defaultCacheTTL        = 24 * time.Hour
	defaultCacheMaxEntries = 256
	redisNamespace         = "indicadores:datasets"
)

// DefaultFactory builds backends for one catalog.
type DefaultFactory struct {
	catalog  core.Catalog
	logger   *log.Logger
	recorder sources.LoadRecorder
	observer cache.Observer
}

// NewFactory creates a new backend factory; collector may be nil.
func NewFactory(catalog core.Catalog, logger *log.Logger, collector *metrics.Collector) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	f := &DefaultFactory{
		catalog: catalog,
		logger:  logger.WithComponent(log.ComponentBackend),
	}
	if collector != nil {
		f.recorder = collector
		f.observer = collector
	}
	return f
}

// CreateBackend opens the source named by config.Type and wraps it.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		reader sources.DatasetReader
		result = &BackendResult{}
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		reader, err = f.createSQLiteBackend(config, result)
	case SheetsBackend:
		reader, err = f.createSheetsBackend(ctx, config)
	case CSVBackend:
		reader = f.createCSVBackend(config)
	case MemoryBackend:
		reader, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	tables, redisClient := f.tableCache(ctx, config)
	cached := sources.NewCached(sources.NewInstrumented(reader, config.Type.String(), f.recorder, f.logger), tables, f.observer)
	result.Reader = cached
	result.Invalidator = cached
	result.Cleaners = append(result.Cleaners, tables)

	snapshot := result.Snapshot
	result.Cleanup = func() error {
		var errs []error
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				errs = append(errs, fmt.Errorf("redis: %w", err))
			}
		}
		if snapshot != nil {
			if err := snapshot.Close(); err != nil {
				errs = append(errs, fmt.Errorf("storage: %w", err))
			}
		}
		return errors.Join(errs...)
	}
	return result, nil
}

// tiered is the table cache handed to sources.Cached.
type tiered interface {
	cache.Cache[core.Table]
	cache.Cleaner
}

// tableCache builds the dataset cache: an in-process LRU, fronting Redis
// when REDIS_ADDR is set and reachable.
func (f *DefaultFactory) tableCache(ctx context.Context, config Config) (tiered, *redis.Client) {
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	size := config.CacheMaxEntries
	if size <= 0 {
		size = defaultCacheMaxEntries
	}
	local := cache.NewLRUCache[core.Table](size, ttl)
	if config.RedisAddr == "" {
		return local, nil
	}

	client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		f.logger.Warn("Redis unavailable, using in-process cache only", "addr", config.RedisAddr, "error", err)
		_ = client.Close()
		return local, nil
	}
	f.logger.Info("Initialized Redis dataset cache", "addr", config.RedisAddr)
	shared := cache.NewRedisCache[core.Table](client, redisNamespace, ttl, f.logger.Slog())
	return cache.NewTiered(local, shared), client
}

func (f *DefaultFactory) createSQLiteBackend(config Config, result *BackendResult) (sources.DatasetReader, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.catalog, config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	result.Snapshot = repo

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath, "schema_version", repo.SchemaVersion())
	return repo, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (sources.DatasetReader, error) {
	cli, err := google.NewFromOptions(ctx, google.Options{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	}, f.catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return cli, nil
}

func (f *DefaultFactory) createCSVBackend(config Config) sources.DatasetReader {
	f.logger.Info("Initialized CSV export backend", "base_url", config.CSVExportBaseURL)
	return csvexport.New(config.CSVExportBaseURL, f.catalog, nil)
}

func (f *DefaultFactory) createMemoryBackend(config Config) (sources.DatasetReader, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store, err := memory.NewFromDir(dataDir, f.catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir, "datasets", len(store.Datasets()))
	return store, nil
}
