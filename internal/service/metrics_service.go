package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the portal.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	proposalsSubmitted prometheus.Counter
	proposalsAccepted  prometheus.Counter
	projectsSubmitted  prometheus.Counter
	projectsArchived   prometheus.Counter
	marksFinalised     prometheus.Counter
	roundsOpened       prometheus.Counter
	gradesConfirmed    prometheus.Counter
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	proposalsSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proposals_submitted_total",
		Help: "Total project proposals submitted",
	})

	proposalsAccepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proposals_accepted_total",
		Help: "Total project proposals accepted",
	})

	projectsSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "projects_submitted_total",
		Help: "Total dissertations submitted for marking",
	})

	projectsArchived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "projects_archived_total",
		Help: "Total projects archived",
	})

	marksFinalised := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marks_finalised_total",
		Help: "Total mark records finalised",
	})

	roundsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marking_rounds_opened_total",
		Help: "Total additional marking rounds opened after discordant marks",
	})

	gradesConfirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grades_confirmed_total",
		Help: "Total projects whose final grade was confirmed",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		proposalsSubmitted, proposalsAccepted, projectsSubmitted, projectsArchived, marksFinalised, roundsOpened, gradesConfirmed, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		proposalsSubmitted: proposalsSubmitted,
		proposalsAccepted:  proposalsAccepted,
		projectsSubmitted:  projectsSubmitted,
		projectsArchived:   projectsArchived,
		marksFinalised:     marksFinalised,
		roundsOpened:       roundsOpened,
		gradesConfirmed:    gradesConfirmed,
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

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordProposalSubmitted increments the proposal submission counter.
func (m *MetricsService) RecordProposalSubmitted() {
	if m != nil {
		m.proposalsSubmitted.Inc()
	}
}

// RecordProposalAccepted increments the proposal acceptance counter.
func (m *MetricsService) RecordProposalAccepted() {
	if m != nil {
		m.proposalsAccepted.Inc()
	}
}

// RecordProjectSubmitted increments the dissertation submission counter.
func (m *MetricsService) RecordProjectSubmitted() {
	if m != nil {
		m.projectsSubmitted.Inc()
	}
}

// RecordProjectArchived increments the archive counter.
func (m *MetricsService) RecordProjectArchived() {
	if m != nil {
		m.projectsArchived.Inc()
	}
}

// RecordMarkFinalised increments the finalised mark counter.
func (m *MetricsService) RecordMarkFinalised() {
	if m != nil {
		m.marksFinalised.Inc()
	}
}

// RecordRoundOpened increments the marking round counter.
func (m *MetricsService) RecordRoundOpened() {
	if m != nil {
		m.roundsOpened.Inc()
	}
}

// RecordGradeConfirmed increments the confirmed grade counter.
func (m *MetricsService) RecordGradeConfirmed() {
	if m != nil {
		m.gradesConfirmed.Inc()
	}
}
