package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"indicadores/internal/amqp"
	"indicadores/internal/backend"
	"indicadores/internal/cache"
	"indicadores/internal/cli"
	"indicadores/internal/core"
	"indicadores/internal/dashboard"
	apphttp "indicadores/internal/http"
	"indicadores/internal/log"
	"indicadores/internal/metrics"
	"indicadores/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting indicadores server", "backend", cfg.DataBackend, "focus", cfg.FocusMunicipality)

	catalog := core.DefaultCatalog()
	if err := catalog.Validate(); err != nil {
		logger.Error("Invalid dataset catalog", "error", err)
		os.Exit(1)
	}
	collector := metrics.NewCollector("indicadores")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(catalog, logger, collector).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	pages := cache.NewLRUCache[dashboard.Page](cfg.CacheMaxEntries, cfg.CacheTTL)
	pivots := cache.NewLRUCache[dashboard.PivotResult](cfg.CacheMaxEntries, cfg.CacheTTL)
	svc := dashboard.NewService(result.Reader, catalog, dashboard.Options{
		Focus:          cfg.FocusMunicipality,
		Municipalities: cfg.ScopeMunicipalities(),
		Years:          cfg.Years,
		Logger:         logger,
		PivotCache:     pivots,
	}, pages, collector)

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	for _, c := range result.Cleaners {
		cacheManager.Register("tables", c)
	}
	cacheManager.Register("pages", pages)
	cacheManager.Register("pivots", pivots)
	cacheManager.StartCleanup(10 * time.Minute)

	// Refresh jobs are optional; without a broker the endpoint answers 503.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, refresh requests disabled", "error", err)
		} else {
			publisher = client
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	var runs services.RunLister
	var ready []apphttp.ReadyCheck
	if result.Snapshot != nil {
		runs = result.Snapshot
		ready = append(ready, apphttp.ReadyCheck{Name: "sqlite", Check: result.Snapshot.Ping})
	}
	refresh := services.NewRefreshService(catalog, publisher, runs)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Dashboard: svc,
		Refresh:   refresh,
		Metrics:   collector,
		Logger:    logger,
		Ready:     ready,

		TrustedProxies: cfg.TrustedProxyPrefixes(),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := refresh.Close(); err != nil {
			logger.Error("Failed to close AMQP publisher", "error", err)
		}
		if err := result.Close(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	})

	// The worker replaces the SQLite snapshot from another process.
	if result.Snapshot != nil {
		watcher := backend.NewSnapshotWatcher(result.Snapshot, result.Invalidator, func([]string) {
			svc.InvalidatePages()
		}, logger)
		go watcher.Run(ctx, cfg.SnapshotPollInterval)
	}

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
