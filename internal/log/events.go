package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger writes the recurring events of the request and refresh
// paths with a fixed attribute set, so they can be queried by key.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) emit(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	sl.logger.LogAttrs(ctx, level, msg, attrs...)
}

func statusLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func errorLevel(err error) slog.Level {
	if err != nil {
		return slog.LevelError
	}
	return slog.LevelInfo
}

func requestAttrs(r *http.Request, clientIP string) []slog.Attr {
	return []slog.Attr{
		slog.String(FieldComponent, ComponentHTTP),
		slog.String(FieldMethod, r.Method),
		slog.String(FieldPath, r.URL.Path),
		slog.String(FieldQuery, r.URL.RawQuery),
		slog.String(FieldClientIP, clientIP),
	}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	attrs := append(requestAttrs(r, clientIP), slog.String(FieldUserAgent, r.UserAgent()))
	sl.emit(ctx, slog.LevelInfo, "HTTP request started", attrs...)
}

func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	attrs := append(requestAttrs(r, clientIP),
		slog.Int(FieldStatusCode, statusCode),
		slog.Int64(FieldDuration, durationMs),
		slog.Bool(FieldSuccess, statusCode < 400),
	)
	sl.emit(ctx, statusLevel(statusCode), "HTTP request completed", attrs...)
}

// LogDatasetLoad records one read from a source; err marks a failed read.
func (sl *StructuredLogger) LogDatasetLoad(ctx context.Context, dataset, backend string, rows int, durationMs int64, err error) {
	attrs := []slog.Attr{
		slog.String(FieldComponent, ComponentSources),
		slog.String(FieldOperation, OpLoad),
		slog.String(FieldDataset, dataset),
		slog.String(FieldBackend, backend),
		slog.Int64(FieldDuration, durationMs),
	}
	if err != nil {
		sl.emit(ctx, slog.LevelError, "Dataset load failed", append(attrs, slog.String(FieldError, err.Error()))...)
		return
	}
	sl.emit(ctx, slog.LevelInfo, "Dataset loaded", append(attrs, slog.Int(FieldRows, rows))...)
}

func (sl *StructuredLogger) LogRefreshCompleted(ctx context.Context, jobID, dataset string, rows int, err error) {
	attrs := []slog.Attr{
		slog.String(FieldComponent, ComponentWorker),
		slog.String(FieldOperation, OpRefresh),
		slog.String(FieldJobID, jobID),
		slog.String(FieldDataset, dataset),
		slog.Int(FieldRows, rows),
		slog.Bool(FieldSuccess, err == nil),
	}
	if err != nil {
		attrs = append(attrs, slog.String(FieldError, err.Error()))
	}
	sl.emit(ctx, errorLevel(err), "Dataset refresh completed", attrs...)
}
