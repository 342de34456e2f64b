// Package types holds the observability contracts shared by every component
// of the relay: the structured Logger, the Metrics recorder, the Provider that
// hands both out, and the context keys used for request correlation.
package types

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines the contract for structured logging.
// Implementations emit one JSON object per entry so the output can be
// shipped to Loki or any line-oriented aggregator. Every method takes a
// context so correlation identifiers travel with the call.
type Logger interface {
	// Info logs routine operational events.
	Info(ctx context.Context, msg string, fields Fields)

	// Error logs a failure together with the error that caused it.
	Error(ctx context.Context, msg string, err error, fields Fields)

	// Warn logs a recoverable or degraded condition.
	Warn(ctx context.Context, msg string, fields Fields)

	// Debug logs detail that is normally filtered out in production.
	Debug(ctx context.Context, msg string, fields Fields)

	// WithFields returns a child logger that adds fields to every entry.
	WithFields(fields Fields) Logger
}

// Metrics defines the contract for metrics collection.
// Implementations should expose Prometheus-compatible series.
type Metrics interface {
	// RecordSuccess increments the success counter for an operation.
	RecordSuccess(operationType string)

	// RecordError increments the failure counters for an operation and error category
	// (e.g. "spawn_failed", "client_disconnect", "timeout").
	RecordError(operationType string, errorType string)

	// RecordDuration observes an operation duration in seconds.
	RecordDuration(operation string, duration float64)

	// RecordFileSize observes a payload size in bytes, such as the number of
	// media bytes relayed to one client.
	RecordFileSize(fileType string, bytes int64)

	// StartOperation increments the in-progress gauge. Pair every call with EndOperation.
	StartOperation(operation string)

	// EndOperation decrements the in-progress gauge.
	EndOperation(operation string)
}

// Fields represents structured logging fields as key-value pairs.
// Values must be JSON-serializable.
type Fields map[string]interface{}

// Config holds observability configuration for the provider.
type Config struct {
	// ServiceName identifies the service in logs and prefixes metric names.
	ServiceName string

	// Environment is the deployment environment ("local", "staging", "production").
	Environment string

	// LogLevel is the minimum level written: "debug", "info", "warn" or "error".
	LogLevel string

	// LogOutput receives log lines. Nil means os.Stdout.
	LogOutput io.Writer

	// AdditionalFields are merged into every log entry.
	AdditionalFields Fields

	// Registry receives every metric collector. Nil means the Prometheus
	// default registry. Tests pass a fresh prometheus.NewRegistry().
	Registry *prometheus.Registry
}

// Provider manages the lifecycle of observability components.
// Logger and Metrics return the same instance for repeated calls with the
// same component name.
type Provider interface {
	// Logger returns the logger for a component (e.g. "extractor", "relay").
	Logger(component string) Logger

	// Metrics returns the metrics recorder for a component.
	Metrics(component string) Metrics

	// Gatherer exposes the registry the recorders write to, for /metrics.
	Gatherer() prometheus.Gatherer

	// Close releases the log output when it is closable.
	Close() error
}

type contextKey string

// Context keys read by loggers when building an entry.
const (
	RequestIDKey contextKey = "request_id"
	TraceIDKey   contextKey = "trace_id"
	WorkerKey    contextKey = "worker"
)

// WithRequestID stores a request correlation identifier in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFrom returns the request identifier stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithTraceID stores a trace identifier in ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// TraceIDFrom returns the trace identifier stored in ctx, or "".
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(TraceIDKey).(string)
	return id
}

// WithWorker stores the name of the worker handling the request.
func WithWorker(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, WorkerKey, name)
}

// WorkerFrom returns the worker name stored in ctx, or "".
func WorkerFrom(ctx context.Context) string {
	name, _ := ctx.Value(WorkerKey).(string)
	return name
}
