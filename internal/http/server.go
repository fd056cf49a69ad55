package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"indicadores/internal/dashboard"
	"indicadores/internal/log"
	"indicadores/internal/metrics"
	"indicadores/internal/middleware/ratelimit"
	"indicadores/internal/middleware/security"
	"indicadores/internal/middleware/trace"
	"indicadores/internal/services"
	appweb "indicadores/web"
)

// ReadyCheck is one dependency checked by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the services the server exposes. Refresh and Metrics may be nil.
type Deps struct {
	Dashboard *dashboard.Service
	Refresh   *services.RefreshService
	Metrics   *metrics.Collector
	Logger    *log.Logger
	Ready     []ReadyCheck
	// RateLimit overrides ratelimit.DefaultConfig when RequestsPerMinute > 0.
	RateLimit ratelimit.Config
	// TrustedProxies are trusted for X-Forwarded-For besides private networks.
	TrustedProxies []netip.Prefix
}

type Server struct {
	http.Server
	deps      Deps
	templates *template.Template
	parser    *RequestParser
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	rlConfig := ratelimit.DefaultConfig()
	if deps.RateLimit.RequestsPerMinute > 0 {
		rlConfig = deps.RateLimit
	}

	router := mux.NewRouter()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		deps:     deps,
		parser:   NewRequestParser(),
		limiter:  ratelimit.NewLimiter(rlConfig),
		detector: security.NewDetector(deps.TrustedProxies...),
		logger:   logger.WithComponent(log.ComponentHTTP),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	var recorder trace.Recorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, routeName, recorder)
	headers := security.NewHeaders(security.DefaultHeadersConfig())

	router.Use(
		log.Middleware(s.logger),
		tracer.Middleware,
		s.detector.Middleware(s.onSuspicious),
		headers.Middleware,
		s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited),
	)

	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/topics/{topic}", s.handleTopicPage).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(log.ComponentMiddleware(log.ComponentAPI))
	api.HandleFunc("/topics", s.handleTopics).Methods(http.MethodGet)
	api.HandleFunc("/topics/{topic}", s.handleTopic).Methods(http.MethodGet)
	api.HandleFunc("/topics/{topic}/export.xlsx", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/topics/{topic}/sections/{section}", s.handleSection).Methods(http.MethodGet)
	api.HandleFunc("/topics/{topic}/sections/{section}/chart.png", s.handleChart).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{dataset}/pivot", s.handlePivot).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/refresh/runs", s.handleRefreshRuns).Methods(http.MethodGet)

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		router.PathPrefix("/static/").Handler(security.CacheFor(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	return s
}

func (s *Server) onSuspicious(*http.Request) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Suspicious()
	}
}

func (s *Server) onRateLimited(r *http.Request, clientIP string) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RateLimited()
	}
}

// Shutdown stops the limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
