package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the IFTA service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	httpDuration      *prometheus.HistogramVec
	operationDuration *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	reportsCreated    prometheus.Counter
	statusTransitions *prometheus.CounterVec
	quarterlyResolved *prometheus.CounterVec
	notifications     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ifta_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ifta_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ifta_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ifta_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ifta_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		reportsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ifta_reports_created_total",
				Help: "Total monthly reports created.",
			},
		),
		statusTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ifta_status_transitions_total",
				Help: "Status changes by report level and target status.",
			},
			[]string{"level", "status"},
		),
		quarterlyResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ifta_quarterly_resolutions_total",
				Help: "Quarterly report resolutions by outcome (found, created, raced, remapped).",
			},
			[]string{"outcome"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ifta_notifications_total",
				Help: "Notifications handed to the email dispatcher by template and result.",
			},
			[]string{"template", "result"},
		),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordOperationDuration records the duration of a service operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrReportCreated counts a committed monthly report.
func (m *Metrics) IncrReportCreated() {
	m.reportsCreated.Inc()
}

// IncrStatusTransition counts a persisted status change. level is
// "monthly" or "quarterly".
func (m *Metrics) IncrStatusTransition(level, status string) {
	m.statusTransitions.WithLabelValues(level, status).Inc()
}

// IncrQuarterlyResolved counts a rollup resolution outcome.
func (m *Metrics) IncrQuarterlyResolved(outcome string) {
	m.quarterlyResolved.WithLabelValues(outcome).Inc()
}

// IncrNotification counts a notification result ("sent", "failed", "dropped").
func (m *Metrics) IncrNotification(template, result string) {
	m.notifications.WithLabelValues(template, result).Inc()
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
