// Package metrics exposes Prometheus instruments for the web client. Every
// method is safe on a nil *Manager so packages can run without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Manager struct {
	// counters
	CounterRequests          *prometheus.CounterVec
	CounterUpstreamRequests  *prometheus.CounterVec
	CounterCacheLookups      *prometheus.CounterVec
	CounterCacheInvalidation *prometheus.CounterVec
	CounterStaleDiscarded    prometheus.Counter
	CounterRateLimited       prometheus.Counter
	CounterNotesCreated      prometheus.Counter
	CounterNotesDeleted      prometheus.Counter

	// gauges
	GaugeSessions prometheus.Gauge

	// histograms
	HistogramRequestDuration  *prometheus.HistogramVec
	HistogramUpstreamDuration *prometheus.HistogramVec
}

// SetupPrometheus returns a registry with build, runtime and process collectors.
func SetupPrometheus() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func NewTestManager() *Manager {
	return NewManager("notehub", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("notehub", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	return &Manager{
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Incoming HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		CounterUpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to NoteHub by operation and outcome",
		}, []string{"op", "outcome"}),
		CounterCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_lookups_total",
			Help:      "Query cache lookups by namespace and result",
		}, []string{"namespace", "result"}),
		CounterCacheInvalidation: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_invalidations_total",
			Help:      "Query cache namespace invalidations",
		}, []string{"namespace"}),
		CounterStaleDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "list_stale_responses_total",
			Help:      "List responses dropped because the query key changed first",
		}),
		CounterRateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the create rate limiter",
		}),
		CounterNotesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notes_created_total",
			Help:      "Notes created through this client",
		}),
		CounterNotesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notes_deleted_total",
			Help:      "Notes deleted through this client",
		}),
		GaugeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Live browser sessions with a list coordinator",
		}),
		HistogramRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of response time for requests in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"route", "method", "status_code"}),
		HistogramUpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upstream_request_duration_seconds",
			Help:      "Histogram of NoteHub round trip time in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}, []string{"op"}),
	}
}

// ObserveHTTP records one served request.
func (m *Manager) ObserveHTTP(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.CounterRequests.WithLabelValues(method, route, code).Inc()
	m.HistogramRequestDuration.WithLabelValues(route, method, code).Observe(dur.Seconds())
}

// ObserveUpstream records one NoteHub round trip. status 0 means the request
// never got a response.
func (m *Manager) ObserveUpstream(op string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	outcome := "error"
	switch {
	case status == 0:
		outcome = "transport_error"
	case status >= 200 && status < 300:
		outcome = "ok"
	case status >= 400 && status < 500:
		outcome = "client_error"
	}
	m.CounterUpstreamRequests.WithLabelValues(op, outcome).Inc()
	m.HistogramUpstreamDuration.WithLabelValues(op).Observe(dur.Seconds())
}

// CacheLookup records a hit or miss for namespace.
func (m *Manager) CacheLookup(namespace string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CounterCacheLookups.WithLabelValues(namespace, result).Inc()
}

// CacheInvalidated records a namespace invalidation.
func (m *Manager) CacheInvalidated(namespace string) {
	if m == nil {
		return
	}
	m.CounterCacheInvalidation.WithLabelValues(namespace).Inc()
}

// StaleDiscarded records a list response dropped for a superseded key.
func (m *Manager) StaleDiscarded() {
	if m == nil {
		return
	}
	m.CounterStaleDiscarded.Inc()
}

// RateLimited records a throttled create.
func (m *Manager) RateLimited() {
	if m == nil {
		return
	}
	m.CounterRateLimited.Inc()
}

// NoteCreated records a successful create.
func (m *Manager) NoteCreated() {
	if m == nil {
		return
	}
	m.CounterNotesCreated.Inc()
}

// NoteDeleted records a successful delete.
func (m *Manager) NoteDeleted() {
	if m == nil {
		return
	}
	m.CounterNotesDeleted.Inc()
}

// SessionsChanged adjusts the live session gauge by delta.
func (m *Manager) SessionsChanged(delta int) {
	if m == nil {
		return
	}
	m.GaugeSessions.Add(float64(delta))
}
