package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// the catalog cache and the degraded paths of the academic workflows.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	gateDegraded      prometheus.Counter
	examAutocreate    prometheus.Counter
	examsReconciled   prometheus.Counter
	takesRecorded     *prometheus.CounterVec
	activityDropped   prometheus.Counter
	sagaCompensations *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the Prometheus collectors.
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

	gateDegraded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "progression_gate_degraded_total",
		Help: "Progression gate computations that fell back to zero completed modules",
	})

	examAutocreate := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exam_autocreate_failures_total",
		Help: "Classrooms created without their companion exam",
	})

	examsReconciled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exam_reconciled_total",
		Help: "Missing exams created by the reconciler",
	})

	takesRecorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_takes_recorded_total",
		Help: "Exam takes recorded by type and result",
	}, []string{"type", "result"})

	activityDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "activity_log_dropped_total",
		Help: "Activity entries that could not be queued or persisted",
	})

	sagaCompensations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_compensations_total",
		Help: "Compensating actions run by multi-step workflows",
	}, []string{"saga", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		gateDegraded, examAutocreate, examsReconciled, takesRecorded, activityDropped, sagaCompensations, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		gateDegraded:      gateDegraded,
		examAutocreate:    examAutocreate,
		examsReconciled:   examsReconciled,
		takesRecorded:     takesRecorded,
		activityDropped:   activityDropped,
		sagaCompensations: sagaCompensations,
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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
	if total := hits + misses; total > 0 {
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

// IncGateDegraded counts an indeterminate progression gate result.
func (m *MetricsService) IncGateDegraded() {
	if m == nil {
		return
	}
	m.gateDegraded.Inc()
}

// IncExamAutocreateFailure counts a classroom left without an exam.
func (m *MetricsService) IncExamAutocreateFailure() {
	if m == nil {
		return
	}
	m.examAutocreate.Inc()
}

// AddExamsReconciled counts exams backfilled by the reconciler.
func (m *MetricsService) AddExamsReconciled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.examsReconciled.Add(float64(n))
}

// RecordTake counts a recorded take. Ungraded takes are labelled "pending".
func (m *MetricsService) RecordTake(takeType string, passed *bool) {
	if m == nil {
		return
	}
	result := "pending"
	if passed != nil {
		result = "fail"
		if *passed {
			result = "pass"
		}
	}
	m.takesRecorded.WithLabelValues(takeType, result).Inc()
}

// IncActivityDropped counts an activity entry that was lost.
func (m *MetricsService) IncActivityDropped() {
	if m == nil {
		return
	}
	m.activityDropped.Inc()
}

// RecordCompensation counts a compensating action of a saga.
func (m *MetricsService) RecordCompensation(saga string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.sagaCompensations.WithLabelValues(saga, outcome).Inc()
}
