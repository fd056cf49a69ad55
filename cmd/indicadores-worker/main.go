package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"indicadores/internal/amqp"
	"indicadores/internal/backend"
	"indicadores/internal/cli"
	"indicadores/internal/core"
	"indicadores/internal/metrics"
	"indicadores/internal/sources"
	"indicadores/internal/storage/postgres"
	"indicadores/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting indicadores-worker")

	if cfg.UpstreamDatabaseURL == "" {
		logger.Error("UPSTREAM_DATABASE_URL is required by the refresh worker")
		os.Exit(1)
	}

	catalog := core.DefaultCatalog()
	collector := metrics.NewCollector("indicadores_worker")

	// The snapshot is always SQLite here; Redis, when configured, is the
	// cache shared with the server and is invalidated after each refresh.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	backendCfg.Type = backend.SQLiteBackend
	result, err := backend.NewFactory(catalog, logger, collector).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize SQLite snapshot", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer result.Close()

	warehouse, err := postgres.Open(context.Background(), postgres.Config{
		URL:             cfg.UpstreamDatabaseURL,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}, catalog, logger)
	if err != nil {
		logger.Error("Failed to connect to warehouse", "error", err)
		os.Exit(1)
	}
	defer warehouse.Close()

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
	} else {
		logger.Info("AMQP disabled, refreshing on schedule only")
	}

	refreshWorker := worker.NewRefreshWorker(warehouse, result.Snapshot, worker.Options{
		Municipalities: cfg.ScopeMunicipalities(),
		Years:          cfg.Years,
		MaxAge:         cfg.MaxRefreshAge,
		Invalidate:     []sources.Invalidator{result.Invalidator},
		Recorder:       collector,
		Logger:         logger,
	})

	var metricsSrv *http.Server
	if cfg.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", "error", err)
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(ctx); err != nil {
				logger.Error("Metrics server shutdown error", "error", err)
			}
		}
	})

	// Recover from refreshes missed while the worker was down.
	logger.Info("Performing startup refresh check...")
	if report, err := refreshWorker.StartupRefreshCheck(ctx); err != nil {
		logger.Error("Startup refresh check failed", "error", err, "failed", report.Failed())
	}

	if err := refreshWorker.Run(ctx, consumer, cfg.RefreshInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Refresh worker stopped", "error", err)
		_ = warehouse.Close()
		_ = result.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
