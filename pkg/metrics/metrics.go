// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeExisting = "already_existed"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration    *prometheus.HistogramVec
	RequestCounter     *prometheus.CounterVec
	LoginAttempts      *prometheus.CounterVec
	TenantProvisioning *prometheus.CounterVec
	LocatorScans       *prometheus.CounterVec
	LocatorTenantErrs  prometheus.Counter
	SchemaResetFails   prometheus.Counter
	EventsConsumed     *prometheus.CounterVec
}

// New registers all collectors on a fresh registry under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		RequestCounter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_login_attempts_total",
			Help:      "Login attempts by kind (tenant, super_admin) and outcome",
		}, []string{"kind", "outcome"}),

		TenantProvisioning: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_provisioning_total",
			Help:      "Tenant lifecycle operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		LocatorScans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locator_scans_total",
			Help:      "Cross-tenant lookups by outcome (found, not_found)",
		}, []string{"outcome"}),

		LocatorTenantErrs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locator_tenant_errors_total",
			Help:      "Tenants skipped by the cross-tenant lookup because their query failed",
		}),

		SchemaResetFails: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_reset_failures_total",
			Help:      "Pinned connections discarded because search_path could not be reset",
		}),

		EventsConsumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Consumed events by type and outcome",
		}, []string{"type", "outcome"}),
	}
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records duration and count per route pattern, so path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := prometheus.Labels{"method": r.Method, "route": route, "status": strconv.Itoa(status)}
		m.RequestCounter.With(labels).Inc()
		m.RequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}

// RecordLogin counts one login attempt.
func (m *Metrics) RecordLogin(kind, outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(kind, outcome).Inc()
}

// RecordProvisioning counts one tenant lifecycle operation.
func (m *Metrics) RecordProvisioning(operation, outcome string) {
	if m == nil {
		return
	}
	m.TenantProvisioning.WithLabelValues(operation, outcome).Inc()
}

// RecordLocatorScan counts one cross-tenant lookup.
func (m *Metrics) RecordLocatorScan(found bool) {
	if m == nil {
		return
	}
	outcome := "not_found"
	if found {
		outcome = "found"
	}
	m.LocatorScans.WithLabelValues(outcome).Inc()
}

// RecordLocatorTenantError counts one tenant skipped during a lookup.
func (m *Metrics) RecordLocatorTenantError() {
	if m == nil {
		return
	}
	m.LocatorTenantErrs.Inc()
}

// RecordEvent counts one consumed event.
func (m *Metrics) RecordEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.EventsConsumed.WithLabelValues(eventType, outcome).Inc()
}
