// Package metrics provides Prometheus metrics for the BetEdge service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the BetEdge service.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Odds ingestion
	oddsFetches          *prometheus.CounterVec
	oddsFetchLatency     *prometheus.HistogramVec
	apiRequestsRemaining prometheus.Gauge
	cachedGames          *prometheus.GaugeVec
	cacheAgeSeconds      *prometheus.GaugeVec

	// Analysis pipeline
	analysisJobs    prometheus.Counter
	analysisSkipped prometheus.Counter
	analysisErrors  prometheus.Counter
	analysisLatency prometheus.Histogram
	picksOnBoard    prometheus.Gauge

	// Audience
	signups     *prometheus.CounterVec
	betsPlaced  prometheus.Counter
	betsSettled *prometheus.CounterVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// DefaultNamespace prefixes metrics unless Configure names another.
const DefaultNamespace = "betedge"

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global manager on a fresh registry when opts change
// its namespace. Call it once at startup, before any metric is recorded or
// GetRegistry is served.
func Configure(opts ...Option) {
	next := &Manager{namespace: globalManager.namespace}
	for _, opt := range opts {
		opt(next)
	}
	if next.namespace == globalManager.namespace {
		return
	}
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(customRegistry))...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        DefaultNamespace,
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Name: name, Help: help}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Name: name, Help: help}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{Namespace: m.namespace, Name: name, Help: help, Buckets: buckets}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.oddsFetches = auto.NewCounterVec(m.counterOpts("odds_fetches_total",
		"Odds refreshes by sport and result (live, mock, error, skipped)"), []string{"sport", "result"})
	m.oddsFetchLatency = auto.NewHistogramVec(m.histogramOpts("odds_fetch_latency_milliseconds",
		"Upstream odds request latency in milliseconds", nil), []string{"sport"})
	m.apiRequestsRemaining = auto.NewGauge(m.gaugeOpts("odds_api_requests_remaining",
		"Requests remaining on the odds API quota as last reported upstream"))
	m.cachedGames = auto.NewGaugeVec(m.gaugeOpts("cached_games",
		"Games held in the odds cache per sport"), []string{"sport"})
	m.cacheAgeSeconds = auto.NewGaugeVec(m.gaugeOpts("cache_age_seconds",
		"Seconds since the sport snapshot was refreshed"), []string{"sport"})

	m.analysisJobs = auto.NewCounter(m.counterOpts("analysis_jobs_total",
		"Games analysed by the worker pool"))
	m.analysisSkipped = auto.NewCounter(m.counterOpts("analysis_skipped_total",
		"Games skipped because their priced version was already analysed"))
	m.analysisErrors = auto.NewCounter(m.counterOpts("analysis_errors_total",
		"Analysis jobs that failed"))
	m.analysisLatency = auto.NewHistogram(m.histogramOpts("analysis_latency_milliseconds",
		"Time to analyse one game", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100}))
	m.picksOnBoard = auto.NewGauge(m.gaugeOpts("picks_on_board",
		"Recommendations currently on the pick board"))

	m.signups = auto.NewCounterVec(m.counterOpts("signups_total",
		"Email signups by result (created, duplicate)"), []string{"result"})
	m.betsPlaced = auto.NewCounter(m.counterOpts("bets_placed_total",
		"Bets tracked for users"))
	m.betsSettled = auto.NewCounterVec(m.counterOpts("bets_settled_total",
		"Bets settled by result"), []string{"result"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the analysis queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum capacity of the analysis queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Jobs rejected by the queue"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds",
		"Enqueue latency in milliseconds", []float64{0.01, 0.1, 0.5, 1, 5, 10, 50}))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Running analysis workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"End-to-end job processing latency", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100}))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Worker processing errors"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", nil), []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component and type"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total",
		"Errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Errors by endpoint, method and type"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds",
		"Latency of operations that ended in an error", nil), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"Average GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Odds ingestion.

// RecordOddsFetch counts a refresh outcome for a sport.
func RecordOddsFetch(sport, result string) {
	globalManager.oddsFetches.WithLabelValues(sport, result).Inc()
}

// RecordOddsFetchLatency records upstream latency for a sport.
func RecordOddsFetchLatency(sport string, latencyMs float64) {
	globalManager.oddsFetchLatency.WithLabelValues(sport).Observe(latencyMs)
}

// UpdateAPIRequestsRemaining sets the remaining upstream quota.
func UpdateAPIRequestsRemaining(remaining int) {
	globalManager.apiRequestsRemaining.Set(float64(remaining))
}

// UpdateCachedGames sets the number of cached games for a sport.
func UpdateCachedGames(sport string, count int) {
	globalManager.cachedGames.WithLabelValues(sport).Set(float64(count))
}

// UpdateCacheAge sets the snapshot age for a sport.
func UpdateCacheAge(sport string, seconds float64) {
	globalManager.cacheAgeSeconds.WithLabelValues(sport).Set(seconds)
}

// Analysis pipeline.

// RecordAnalysisJob increments the analysed games counter.
func RecordAnalysisJob() { globalManager.analysisJobs.Inc() }

// RecordAnalysisSkipped increments the unchanged games counter.
func RecordAnalysisSkipped() { globalManager.analysisSkipped.Inc() }

// RecordAnalysisError increments the failed analysis counter.
func RecordAnalysisError() { globalManager.analysisErrors.Inc() }

// RecordAnalysisLatency records the time spent analysing one game.
func RecordAnalysisLatency(latencyMs float64) { globalManager.analysisLatency.Observe(latencyMs) }

// UpdatePicksOnBoard sets the pick board size.
func UpdatePicksOnBoard(count int) { globalManager.picksOnBoard.Set(float64(count)) }

// Audience.

// RecordSignup counts an email signup; created is false for a repeat address.
func RecordSignup(created bool) {
	result := "created"
	if !created {
		result = "duplicate"
	}
	globalManager.signups.WithLabelValues(result).Inc()
}

// RecordBetPlaced increments the tracked bets counter.
func RecordBetPlaced() { globalManager.betsPlaced.Inc() }

// RecordBetSettled counts a settled bet by result.
func RecordBetSettled(result string) { globalManager.betsSettled.WithLabelValues(result).Inc() }

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Workers.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
