// Package metrics provides Prometheus metrics for the webhook pipeline.
package metrics

import (
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook outcomes.
const (
	OutcomeSaved        = "saved"
	OutcomeDuplicate    = "duplicate"
	OutcomeBadRequest   = "bad_request"
	OutcomeUnauthorized = "unauthorized"
	OutcomeTooLarge     = "too_large"
	OutcomeError        = "error"
)

// Dispatch results.
const (
	DispatchOK       = "ok"
	DispatchDegraded = "degraded"
	DispatchFailed   = "failed"
)

// Processing results.
const (
	ResultProcessed   = "processed"
	ResultSkipped     = "skipped"
	ResultFailed      = "failed"
	ResultQuarantined = "quarantined"
)

// Manager owns every metric exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion
	webhooksReceived *prometheus.CounterVec
	webhookOutcomes  *prometheus.CounterVec
	dedupeCacheSize  prometheus.Gauge

	// Dispatch
	dispatchTotal *prometheus.CounterVec
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	workerCount   prometheus.Gauge

	// Poller
	pollerTicks        prometheus.Counter
	pollerTicksSkipped prometheus.Counter
	pollerEventsPicked prometheus.Counter
	pollerTickDuration prometheus.Histogram

	// Processing
	eventsProcessed   *prometheus.CounterVec
	processingLatency *prometheus.HistogramVec

	// Scoring
	scoreRecomputes prometheus.Counter
	scoringErrors   prometheus.Counter
	scoringLatency  prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hookscore",
		subsystem:        "pipeline",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.webhooksReceived = m.counterVec("webhooks_received_total",
		"Deliveries received by event type", "event_type")
	m.webhookOutcomes = m.counterVec("webhook_outcomes_total",
		"Ingestion outcomes (saved, duplicate, rejected, error)", "outcome")
	m.dedupeCacheSize = m.gauge("dedupe_cache_size",
		"Delivery ids held by the recent delivery cache")

	m.dispatchTotal = m.counterVec("dispatch_total",
		"Dispatch attempts by backend and result", "backend", "result")
	m.queueSize = m.gauge("queue_size", "Current size of the in-memory dispatch queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the in-memory dispatch queue")
	m.workerCount = m.gauge("worker_count", "Number of dispatch consumers")

	m.pollerTicks = m.counter("poller_ticks_total", "Poller ticks executed")
	m.pollerTicksSkipped = m.counter("poller_ticks_skipped_total",
		"Poller ticks skipped because the previous tick was still running")
	m.pollerEventsPicked = m.counter("poller_events_picked_total",
		"Unprocessed events picked up by the poller")
	m.pollerTickDuration = m.histogram("poller_tick_duration_milliseconds",
		"Poller tick duration in milliseconds", m.histogramBuckets)

	m.eventsProcessed = m.counterVec("events_processed_total",
		"Stored events handled by the router by type and result", "event_type", "result")
	m.processingLatency = m.histogramVec("processing_latency_milliseconds",
		"Event routing latency in milliseconds", "event_type")

	m.scoreRecomputes = m.counter("score_recomputes_total", "Contributor score recomputations")
	m.scoringErrors = m.counter("scoring_errors_total", "Failed contributor score recomputations")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds",
		"Contributor score recomputation latency in milliseconds", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// RecordWebhookReceived counts an inbound delivery.
func RecordWebhookReceived(eventType string) {
	globalManager.webhooksReceived.WithLabelValues(eventType).Inc()
}

// RecordWebhookOutcome counts an ingestion outcome.
func RecordWebhookOutcome(outcome string) {
	globalManager.webhookOutcomes.WithLabelValues(outcome).Inc()
}

// UpdateDedupeCacheSize sets the recent delivery cache size.
func UpdateDedupeCacheSize(size int) {
	globalManager.dedupeCacheSize.Set(float64(size))
}

// RecordDispatch counts a dispatch attempt.
func RecordDispatch(backend, result string) {
	globalManager.dispatchTotal.WithLabelValues(backend, result).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordPollerTick records a completed tick and the number of events it picked.
func RecordPollerTick(d time.Duration, picked int) {
	globalManager.pollerTicks.Inc()
	globalManager.pollerEventsPicked.Add(float64(picked))
	globalManager.pollerTickDuration.Observe(ms(d))
}

// RecordPollerTickSkipped counts a tick skipped by the in-flight guard.
func RecordPollerTickSkipped() {
	globalManager.pollerTicksSkipped.Inc()
}

// RecordEventProcessed counts a routed event by type and result.
func RecordEventProcessed(eventType, result string, d time.Duration) {
	globalManager.eventsProcessed.WithLabelValues(eventType, result).Inc()
	globalManager.processingLatency.WithLabelValues(eventType).Observe(ms(d))
}

// RecordScoreRecompute records one recomputation.
func RecordScoreRecompute(d time.Duration, err error) {
	globalManager.scoreRecomputes.Inc()
	globalManager.scoringLatency.Observe(ms(d))
	if err != nil {
		globalManager.scoringErrors.Inc()
	}
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method string, statusCode int, d time.Duration) {
	code := strconv.Itoa(statusCode)
	globalManager.httpRequests.WithLabelValues(endpoint, method, code).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, code).Observe(ms(d))
}

// UpdateSystemMetrics samples runtime memory, goroutine and GC statistics.
func UpdateSystemMetrics() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	globalManager.systemMemoryUsage.Set(float64(mem.Alloc))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
	if mem.NumGC > 0 {
		last := mem.PauseNs[(mem.NumGC+255)%256]
		globalManager.systemGCPauseTime.Observe(float64(last) / float64(time.Millisecond))
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
