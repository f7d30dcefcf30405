package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// External dependency labels used with ObserveDependency.
const (
	DependencyClassifier = "classifier"
	DependencyOCR        = "ocr"
	DependencyLocator    = "locator"
	DependencyImageModel = "image_model"
)

// MetricsService encapsulates Prometheus instrumentation. All methods are
// safe on a nil receiver so callers can run without metrics.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheHitRatio      prometheus.Gauge
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	dependencyDuration *prometheus.HistogramVec
	submitted          *prometheus.CounterVec
	classifyFailures   prometheus.Counter
	softFailures       *prometheus.CounterVec
	transitions        *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dependencyDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "external_call_duration_seconds",
		Help:    "Duration of calls to the classifier, OCR engine and station locator",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
	}, []string{"dependency", "outcome"})

	submitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "complaints_submitted_total",
		Help: "Complaints persisted by category and priority",
	}, []string{"category", "priority"})

	classifyFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classification_failures_total",
		Help: "Submissions rejected because classification failed",
	})

	softFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soft_failures_total",
		Help: "Non-fatal submission failures reported as warnings",
	}, []string{"kind"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "complaint_transitions_total",
		Help: "Accepted complaint status transitions",
	}, []string{"from", "to"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		dependencyDuration, submitted, classifyFailures, softFailures, transitions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		dependencyDuration: dependencyDuration,
		submitted:          submitted,
		classifyFailures:   classifyFailures,
		softFailures:       softFailures,
		transitions:        transitions,
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
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDependency records the latency and outcome of one external call.
func (m *MetricsService) ObserveDependency(dependency string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.dependencyDuration.WithLabelValues(dependency, outcome).Observe(duration.Seconds())
}

// RecordSubmission counts a persisted complaint.
func (m *MetricsService) RecordSubmission(category, priority string) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(category, priority).Inc()
}

// RecordClassificationFailure counts a submission rejected by the classifier.
func (m *MetricsService) RecordClassificationFailure() {
	if m == nil {
		return
	}
	m.classifyFailures.Inc()
}

// RecordSoftFailure counts a degraded but successful submission step.
func (m *MetricsService) RecordSoftFailure(kind string) {
	if m == nil {
		return
	}
	m.softFailures.WithLabelValues(kind).Inc()
}

// RecordTransition counts an accepted status change.
func (m *MetricsService) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}
