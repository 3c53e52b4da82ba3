// Package metrics exposes Prometheus metrics for the query pipeline, the
// audit bus and the HTTP front end.
package metrics

import (
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	apperrors "github.com/siemql/siemql/internal/pkg/errors"
)

const namespace = "siemql"

// Metrics holds all application metrics. Each instance owns its registry so
// tests never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	QueriesHandled  *prometheus.CounterVec   // labels: kind
	QueryDuration   *prometheus.HistogramVec // labels: kind
	QueryHits       prometheus.Histogram
	SearchFailures  prometheus.Counter
	TaggerFallbacks prometheus.Counter

	// Log store metrics
	DocumentsInserted *prometheus.CounterVec // labels: index
	InsertErrors      *prometheus.CounterVec // labels: error_type

	// Session metrics
	ActiveSessions prometheus.Gauge

	// Bus metrics
	BusEventsPublished *prometheus.CounterVec   // labels: topic
	BusEventLatency    *prometheus.HistogramVec // labels: topic
	BusErrors          *prometheus.CounterVec   // labels: topic
	AuditEvents        *prometheus.CounterVec   // labels: type

	// HTTP metrics
	HTTPRequests         *prometheus.CounterVec   // labels: method, path, status
	HTTPDuration         *prometheus.HistogramVec // labels: method, path
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates a metrics instance with every collector registered, plus the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		QueriesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_handled_total",
			Help:      "Total number of natural-language queries handled, by plan kind",
		}, []string{"kind"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end query handling latency",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		QueryHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_hits",
			Help:      "Number of hits returned per query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		SearchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_failures_total",
			Help:      "Searches that returned an error response",
		}),
		TaggerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tagger_fallbacks_total",
			Help:      "Extractions that fell back to patterns only after a tagger failure",
		}),

		DocumentsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_inserted_total",
			Help:      "Documents inserted into the log store",
		}, []string{"index"}),
		InsertErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insert_errors_total",
			Help:      "Failed document inserts",
		}, []string{"error_type"}),

		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory",
		}),

		BusEventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Events published to the audit bus",
		}, []string{"topic"}),
		BusEventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "publish_duration_seconds",
			Help:      "Audit bus publish latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		BusErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "errors_total",
			Help:      "Failed audit bus publishes",
		}, []string{"topic"}),
		AuditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_received_total",
			Help:      "Audit events observed by the metrics subscriber",
		}, []string{"type"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),
	}

	reg.MustRegister(
		m.QueriesHandled, m.QueryDuration, m.QueryHits, m.SearchFailures, m.TaggerFallbacks,
		m.DocumentsInserted, m.InsertErrors,
		m.ActiveSessions,
		m.BusEventsPublished, m.BusEventLatency, m.BusErrors, m.AuditEvents,
		m.HTTPRequests, m.HTTPDuration, m.HTTPRequestsInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordQuery records one handled query.
func (m *Metrics) RecordQuery(kind string, latency time.Duration, hits int, failed bool) {
	m.QueriesHandled.WithLabelValues(kind).Inc()
	m.QueryDuration.WithLabelValues(kind).Observe(latency.Seconds())
	m.QueryHits.Observe(float64(hits))
	if failed {
		m.SearchFailures.Inc()
	}
}

// RecordTaggerFallback records an extraction that ignored a failed tagger.
func (m *Metrics) RecordTaggerFallback() {
	m.TaggerFallbacks.Inc()
}

// RecordInsert records a document insert.
func (m *Metrics) RecordInsert(index string, err error) {
	if err != nil {
		m.InsertErrors.WithLabelValues(errorType(err)).Inc()
		return
	}
	m.DocumentsInserted.WithLabelValues(index).Inc()
}

// SetActiveSessions updates the session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// RecordBusPublish records event bus publish metrics.
func (m *Metrics) RecordBusPublish(topic string, latency time.Duration, err error) {
	m.BusEventsPublished.WithLabelValues(topic).Inc()
	m.BusEventLatency.WithLabelValues(topic).Observe(latency.Seconds())

	if err != nil {
		m.BusErrors.WithLabelValues(topic).Inc()
	}
}

// RecordHTTP records HTTP request metrics. Called by HTTPMiddleware.
func (m *Metrics) RecordHTTP(method, path string, status int, durationSeconds float64) {
	normalizedPath := normalizePath(path)

	m.HTTPRequests.WithLabelValues(method, normalizedPath, statusCode(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, normalizedPath).Observe(durationSeconds)
}

// errorType maps err to a low-cardinality label.
func errorType(err error) string {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "generic"
}
