package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/ukm-attendance-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the attendance API.
// A nil *MetricsService is a valid no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	eligibility     *prometheus.CounterVec
	storeFailures   *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	reviews         *prometheus.CounterVec
	cleanupFailures prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schedule_cache_read_seconds",
			Help:    "Latency of cached schedule reads",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schedule_cache_write_seconds",
			Help:    "Latency of cached schedule writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schedule_cache_hit_ratio",
			Help: "Share of schedule lookups answered from redis",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_cache_lookups_total",
			Help: "Schedule cache reads by lookup kind and result",
		}, []string{"lookup", "result"}),
		eligibility: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_eligibility_checks_total",
			Help: "Eligibility decisions by rule source and outcome",
		}, []string{"category", "source", "open"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_store_failures_total",
			Help: "Schedule store lookups that failed or timed out",
		}, []string{"operation"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_submissions_total",
			Help: "Accepted attendance submissions by status",
		}, []string{"status"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_reviews_total",
			Help: "Secretary reviews by resulting approval state",
		}, []string{"state"}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proof_cleanup_failures_total",
			Help: "Superseded proof files that could not be removed",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite,
		m.cacheHitRatio, m.cacheLookups,
		m.eligibility, m.storeFailures, m.submissions, m.reviews, m.cleanupFailures,
		goroutines,
	)

	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// TrackGauge registers a gauge computed on scrape.
func (m *MetricsService) TrackGauge(name, help string, fn func() float64) {
	if m == nil || fn == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
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

// RecordCacheRead counts one schedule cache read. result is hit, miss or error;
// errors count as misses in the hit ratio.
func (m *MetricsService) RecordCacheRead(lookup, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	m.cacheLookups.WithLabelValues(lookup, result).Inc()
	if result == cacheResultHit {
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
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

// RecordEligibility counts one eligibility decision.
func (m *MetricsService) RecordEligibility(category models.AttendanceStatus, result models.EligibilityResult) {
	if m == nil {
		return
	}
	m.eligibility.WithLabelValues(string(category), string(result.Source), strconv.FormatBool(result.Open)).Inc()
}

// RecordStoreFailure counts a failed schedule store lookup.
func (m *MetricsService) RecordStoreFailure(operation string) {
	if m == nil {
		return
	}
	m.storeFailures.WithLabelValues(operation).Inc()
}

// RecordSubmission counts an accepted submission.
func (m *MetricsService) RecordSubmission(status models.AttendanceStatus) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(status)).Inc()
}

// RecordReview counts an applied approval or rejection.
func (m *MetricsService) RecordReview(state models.ApprovalState) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(string(state)).Inc()
}

// RecordCleanupFailure counts a proof file left behind.
func (m *MetricsService) RecordCleanupFailure() {
	if m == nil {
		return
	}
	m.cleanupFailures.Inc()
}
