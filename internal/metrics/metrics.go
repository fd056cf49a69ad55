package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector provides application metrics collection
type Collector struct {
	registry *prometheus.Registry

	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimitedTotal    prometheus.Counter
	SuspiciousTotal     prometheus.Counter

	// Source Metrics
	DatasetLoadDuration *prometheus.HistogramVec
	DatasetRows         *prometheus.GaugeVec
	DatasetErrorsTotal  *prometheus.CounterVec

	// Cache Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Refresh Metrics
	RefreshRowsTotal     *prometheus.CounterVec
	RefreshDuration      *prometheus.HistogramVec
	RefreshErrorsTotal   *prometheus.CounterVec
	RefreshJobsPublished prometheus.Counter
}

// NewCollector creates a collector registered on its own registry, so
// tests and multiple binaries can build one without clashing.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),

		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"route"},
		),

		RateLimitedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_rate_limited_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
		),

		SuspiciousTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_suspicious_requests_total",
				Help:      "Total number of requests flagged as suspicious",
			},
		),

		DatasetLoadDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dataset_load_duration_seconds",
				Help:      "Dataset load duration in seconds by dataset and backend",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
			[]string{"dataset", "backend"},
		),

		DatasetRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_rows",
				Help:      "Rows returned by the last load of a dataset",
			},
			[]string{"dataset"},
		),

		DatasetErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_errors_total",
				Help:      "Total number of dataset load errors",
			},
			[]string{"dataset", "backend"},
		),

		CacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits by cache name",
			},
			[]string{"cache"},
		),

		CacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses by cache name",
			},
			[]string{"cache"},
		),

		RefreshRowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_rows_total",
				Help:      "Total number of rows written by dataset refreshes",
			},
			[]string{"dataset"},
		),

		RefreshDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_duration_seconds",
				Help:      "Duration of dataset refreshes in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"dataset"},
		),

		RefreshErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_errors_total",
				Help:      "Total number of failed dataset refreshes",
			},
			[]string{"dataset"},
		),

		RefreshJobsPublished: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_jobs_published_total",
				Help:      "Total number of refresh jobs published",
			},
		),
	}
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordHTTPRequest increments the request counter and observes latency
func (c *Collector) RecordHTTPRequest(route, method, status string, d time.Duration) {
	c.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	c.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordDatasetLoad records a dataset load outcome
func (c *Collector) RecordDatasetLoad(dataset, backend string, rows int, d time.Duration, err error) {
	if err != nil {
		c.DatasetErrorsTotal.WithLabelValues(dataset, backend).Inc()
		return
	}
	c.DatasetLoadDuration.WithLabelValues(dataset, backend).Observe(d.Seconds())
	c.DatasetRows.WithLabelValues(dataset).Set(float64(rows))
}

// RecordRefresh records a dataset refresh outcome
func (c *Collector) RecordRefresh(dataset string, rows int, d time.Duration, err error) {
	c.RefreshDuration.WithLabelValues(dataset).Observe(d.Seconds())
	if err != nil {
		c.RefreshErrorsTotal.WithLabelValues(dataset).Inc()
		return
	}
	c.RefreshRowsTotal.WithLabelValues(dataset).Add(float64(rows))
}

// CacheHit implements cache.Observer
func (c *Collector) CacheHit(name string) {
	c.CacheHitsTotal.WithLabelValues(name).Inc()
}

// CacheMiss implements cache.Observer
func (c *Collector) CacheMiss(name string) {
	c.CacheMissesTotal.WithLabelValues(name).Inc()
}

// RateLimited counts a rejected request
func (c *Collector) RateLimited() {
	c.RateLimitedTotal.Inc()
}

// Suspicious counts a request flagged by the security detector
func (c *Collector) Suspicious() {
	c.SuspiciousTotal.Inc()
}
