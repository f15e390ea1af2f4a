package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDMiddleware adds request ID to logger context
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger provides domain-level log records with consistent fields
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogReportGenerated logs a finished report run
func (sl *StructuredLogger) LogReportGenerated(ctx context.Context, projectID, fiscalYear, asOf string, contributors int, took time.Duration) {
	fields := NewFields().
		WithReport(projectID, fiscalYear, asOf).
		WithOperation(OpGenerate).
		ToSlice()

	fields = append(fields,
		FieldContributors, contributors,
		FieldDuration, took.Milliseconds(),
		FieldDurationHuman, took.String())

	sl.logger.InfoContext(ctx, "Report generated", fields...)
}

// LogDrillDown logs a finished drill-down
func (sl *StructuredLogger) LogDrillDown(ctx context.Context, projectID, month, kind string, rows int, took time.Duration) {
	fields := NewFields().
		WithDrillDown(projectID, month, kind).
		WithOperation(OpDrillDown).
		ToSlice()

	fields = append(fields,
		FieldRows, rows,
		FieldDuration, took.Milliseconds())

	sl.logger.InfoContext(ctx, "Drill-down resolved", fields...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	sl.logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
