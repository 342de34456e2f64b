// Package metrics provides the Prometheus implementation of types.Metrics.
package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics records the relay's standard series for one component:
//
//	{ns}_{component}_processed_total{status,type}
//	{ns}_{component}_errors_total{error_type,operation}
//	{ns}_{component}_duration_seconds{operation}
//	{ns}_{component}_file_size_bytes{file_type}
//	{ns}_{component}_in_progress{operation}
type PrometheusMetrics struct {
	namespace string
	subsystem string

	processedTotal  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	fileSizeBytes   *prometheus.HistogramVec
	inProgress      *prometheus.GaugeVec
}

// Media streams run from a few kilobytes to several gigabytes.
var fileSizeBuckets = prometheus.ExponentialBuckets(1024, 10, 8)

// Long-running relays push durations well past prometheus.DefBuckets.
var durationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900, 1800}

// New creates the collectors for component under namespace and registers
// them with reg. A nil reg means prometheus.DefaultRegisterer.
// Collectors already registered under the same names are reused, so two
// providers sharing a registry see the same series.
func New(namespace, component string, reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetrics{
		namespace: SanitizeName(namespace),
		subsystem: SanitizeName(component),
	}

	m.processedTotal = registerCounterVec(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "processed_total",
			Help:      "Total processed operations by status and type.",
		},
		[]string{"status", "type"},
	))

	m.errorsTotal = registerCounterVec(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_total",
			Help:      "Total errors by error type and operation.",
		},
		[]string{"error_type", "operation"},
	))

	m.durationSeconds = registerHistogramVec(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "duration_seconds",
			Help:      "Operation duration in seconds.",
			Buckets:   durationBuckets,
		},
		[]string{"operation"},
	))

	m.fileSizeBytes = registerHistogramVec(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "file_size_bytes",
			Help:      "Payload sizes in bytes.",
			Buckets:   fileSizeBuckets,
		},
		[]string{"file_type"},
	))

	m.inProgress = registerGaugeVec(reg, prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "in_progress",
			Help:      "Operations currently in progress.",
		},
		[]string{"operation"},
	))

	return m
}

// RecordSuccess increments processed_total with status="success".
func (m *PrometheusMetrics) RecordSuccess(operationType string) {
	m.processedTotal.WithLabelValues("success", operationType).Inc()
}

// RecordError increments processed_total with status="error" and the
// detailed errors_total counter.
func (m *PrometheusMetrics) RecordError(operationType string, errorType string) {
	m.processedTotal.WithLabelValues("error", operationType).Inc()
	m.errorsTotal.WithLabelValues(errorType, operationType).Inc()
}

// RecordDuration observes duration (seconds) for operation.
func (m *PrometheusMetrics) RecordDuration(operation string, duration float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(duration)
}

// RecordFileSize observes bytes for fileType.
func (m *PrometheusMetrics) RecordFileSize(fileType string, bytes int64) {
	m.fileSizeBytes.WithLabelValues(fileType).Observe(float64(bytes))
}

// StartOperation increments the in-progress gauge.
//
//	m.StartOperation("relay_stream")
//	defer m.EndOperation("relay_stream")
func (m *PrometheusMetrics) StartOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Inc()
}

// EndOperation decrements the in-progress gauge.
func (m *PrometheusMetrics) EndOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Dec()
}

// SanitizeName lowercases s and maps every character outside [a-z0-9_]
// to an underscore, collapsing runs, so free-form service names such as
// "YouTube Downloader Backend" become valid metric name parts.
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func registerHistogramVec(reg prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}

func registerGaugeVec(reg prometheus.Registerer, g *prometheus.GaugeVec) *prometheus.GaugeVec {
	if err := reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return g
}
