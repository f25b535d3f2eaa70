package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// aggregation pipelines.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	recomputeDuration *prometheus.HistogramVec
	requestDuration   *prometheus.HistogramVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	recomputeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aggregate_recompute_duration_seconds",
		Help:    "Duration of aggregate recompute pipelines",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	registry.MustRegister(recomputeDuration, requestDuration, cacheLatency, cacheWrite, cacheHits, cacheMisses)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		recomputeDuration: recomputeDuration,
		requestDuration:   requestDuration,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
	}
}

// Handler exposes the /metrics endpoint handler.
func (s *MetricsService) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return s.handler
}

// ObserveRecompute records the duration of one recompute pipeline run.
func (s *MetricsService) ObserveRecompute(operation string, d time.Duration) {
	if s == nil {
		return
	}
	s.recomputeDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveHTTPRequest records the duration of one handled request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	if s == nil {
		return
	}
	s.requestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordCacheOperation tracks cache lookup outcome and latency.
func (s *MetricsService) RecordCacheOperation(hit bool, d time.Duration) {
	if s == nil {
		return
	}
	s.cacheLatency.Observe(d.Seconds())
	if hit {
		s.cacheHits.Inc()
	} else {
		s.cacheMisses.Inc()
	}
}

// ObserveCacheWrite records the duration of a cache set.
func (s *MetricsService) ObserveCacheWrite(d time.Duration) {
	if s == nil {
		return
	}
	s.cacheWrite.Observe(d.Seconds())
}
