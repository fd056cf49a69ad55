// Package trace tags each request with an id, logs its start and end and
// records its latency per route.
package trace

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"indicadores/internal/log"
)

// HeaderRequestID carries the request id in and out.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9_.-]{8,64}$`)

// Recorder receives one observation per completed request.
type Recorder interface {
	RecordHTTPRequest(route, method, status string, d time.Duration)
}

type Middleware struct {
	clientIP func(*http.Request) string
	route    func(*http.Request) string
	recorder Recorder
}

// NewMiddleware builds the tracer. route names the matched route for
// metrics labels and defaults to the URL path; clientIP and recorder may
// be nil.
func NewMiddleware(clientIP func(*http.Request) string, route func(*http.Request) string, recorder Recorder) *Middleware {
	if clientIP == nil {
		clientIP = func(*http.Request) string { return "" }
	}
	if route == nil {
		route = func(r *http.Request) string { return r.URL.Path }
	}
	return &Middleware{clientIP: clientIP, route: route, recorder: recorder}
}

// requestID keeps a well-formed incoming id so callers can correlate logs.
func requestID(r *http.Request) string {
	if id := r.Header.Get(HeaderRequestID); validRequestID.MatchString(id) {
		return id
	}
	return "req_" + uuid.NewString()
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := requestID(r)
		ip := m.clientIP(r)
		w.Header().Set(HeaderRequestID, id)

		logger := log.FromContext(r.Context()).With(log.FieldRequestID, id)
		ctx := log.NewContext(context.WithValue(r.Context(), requestIDKey{}, id), logger)
		r = r.WithContext(ctx)

		events := log.NewStructuredLogger(logger)
		events.LogHTTPStart(ctx, r, ip)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		events.LogHTTPEnd(ctx, r, sw.status, elapsed.Milliseconds(), ip)
		if m.recorder != nil {
			m.recorder.RecordHTTPRequest(m.route(r), r.Method, strconv.Itoa(sw.status), elapsed)
		}
	})
}

// statusWriter remembers the first status written.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// GetRequestID returns the id the middleware assigned, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
