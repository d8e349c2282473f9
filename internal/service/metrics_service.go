package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the grant lifecycle.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheLatency    prometheus.Observer

	grantsCreated    *prometheus.CounterVec
	grantsExtended   *prometheus.CounterVec
	grantsRevoked    *prometheus.CounterVec
	sweepDeactivated prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	grantsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "access_grants_created_total",
		Help: "Total temporary access grants created",
	}, []string{"resource_type"})

	grantsExtended := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "access_grants_extended_total",
		Help: "Total temporary access grant extensions",
	}, []string{"resource_type"})

	grantsRevoked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "access_grants_revoked_total",
		Help: "Total temporary access grants revoked",
	}, []string{"resource_type"})

	sweepDeactivated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "access_sweep_deactivated_total",
		Help: "Total expired grants deactivated by the sweep",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, cacheLatency,
		grantsCreated, grantsExtended, grantsRevoked, sweepDeactivated, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		cacheLatency:     cacheLatency,
		grantsCreated:    grantsCreated,
		grantsExtended:   grantsExtended,
		grantsRevoked:    grantsRevoked,
		sweepDeactivated: sweepDeactivated,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordGrantCreated counts one created grant.
func (m *MetricsService) RecordGrantCreated(resourceType string) {
	if m == nil {
		return
	}
	m.grantsCreated.WithLabelValues(resourceType).Inc()
}

// RecordGrantExtended counts one grant extension.
func (m *MetricsService) RecordGrantExtended(resourceType string) {
	if m == nil {
		return
	}
	m.grantsExtended.WithLabelValues(resourceType).Inc()
}

// RecordGrantRevoked counts one revoked grant.
func (m *MetricsService) RecordGrantRevoked(resourceType string) {
	if m == nil {
		return
	}
	m.grantsRevoked.WithLabelValues(resourceType).Inc()
}

// AddGrantsRevoked counts a bulk revocation without per-type attribution.
func (m *MetricsService) AddGrantsRevoked(count int) {
	if m == nil {
		return
	}
	m.grantsRevoked.WithLabelValues("ALL").Add(float64(count))
}

// AddSweepDeactivated counts grants the expiry sweep deactivated.
func (m *MetricsService) AddSweepDeactivated(count int64) {
	if m == nil {
		return
	}
	m.sweepDeactivated.Add(float64(count))
}
