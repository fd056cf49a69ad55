package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"indicadores/internal/amqp"
	"indicadores/internal/core"
	"indicadores/internal/storage"
)

// ErrRefreshUnavailable is returned when no message broker is configured.
var ErrRefreshUnavailable = errors.New("refresh queue not configured")

// Publisher sends refresh jobs to the worker.
type Publisher interface {
	PublishRefresh(ctx context.Context, msg *amqp.RefreshMessage) error
	Close() error
}

// RunLister exposes the refresh history kept by the snapshot store.
type RunLister interface {
	RecentRefreshes(ctx context.Context, limit int) ([]storage.RefreshRun, error)
}

// RefreshService validates refresh requests and hands them to the worker
type RefreshService struct {
	catalog   core.Catalog
	publisher Publisher
	runs      RunLister
}

// NewRefreshService accepts nil publisher and runs; the corresponding
// operations then report unavailability or an empty history.
func NewRefreshService(catalog core.Catalog, publisher Publisher, runs RunLister) *RefreshService {
	return &RefreshService{catalog: catalog, publisher: publisher, runs: runs}
}

// Available reports whether refresh jobs can be queued.
func (s *RefreshService) Available() bool {
	return s.publisher != nil
}

// RequestRefresh queues a refresh of the given datasets, or of every
// dataset when none is named. Unknown names fail before anything is sent.
func (s *RefreshService) RequestRefresh(ctx context.Context, reason string, datasets []string) (*amqp.RefreshMessage, error) {
	for _, d := range datasets {
		if _, err := s.catalog.Lookup(d); err != nil {
			return nil, err
		}
	}
	if s.publisher == nil {
		return nil, ErrRefreshUnavailable
	}

	names := slices.Compact(slices.Sorted(slices.Values(datasets)))
	msg := amqp.NewRefreshMessage(reason, names...)
	if err := s.publisher.PublishRefresh(ctx, msg); err != nil {
		return nil, fmt.Errorf("publish refresh: %w", err)
	}
	slog.InfoContext(ctx, "Refresh requested",
		"job_id", msg.JobID, "datasets", msg.Datasets, "reason", reason)
	return msg, nil
}

// RecentRuns returns the latest refresh runs, newest first.
func (s *RefreshService) RecentRuns(ctx context.Context, limit int) ([]storage.RefreshRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return s.runs.RecentRefreshes(ctx, limit)
}

// Close closes the publisher
func (s *RefreshService) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close refresh service: %w", err)
	}
	return nil
}
