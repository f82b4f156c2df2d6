package mediadex

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with mediadex-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// LogIngest logs an ingest operation.
func (l *Logger) LogIngest(ctx context.Context, mediaID string, rowID uint32, created bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed",
			"media_id", mediaID,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "ingest completed",
			"media_id", mediaID,
			"row_id", rowID,
			"created", created,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogMatch logs a catalog match operation.
func (l *Logger) LogMatch(ctx context.Context, query string, total, excluded int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "match failed",
			"query", query,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "match completed",
			"query", query,
			"total", total,
			"excluded", excluded,
		)
	}
}

// LogRecovery logs a vector log replay at startup.
func (l *Logger) LogRecovery(ctx context.Context, rowsReplayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "vector log recovery failed",
			"rows_replayed", rowsReplayed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "vector log recovery completed",
			"rows_replayed", rowsReplayed,
		)
	}
}
