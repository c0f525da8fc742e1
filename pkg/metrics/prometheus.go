// Package metrics provides Prometheus metrics for the duelkit tournament service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the duelkit service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer
	auto             promauto.Factory

	// Tournament metrics
	tournamentsCreated   prometheus.Counter
	tournamentsCompleted prometheus.Counter
	tournamentsStored    prometheus.Gauge
	tournamentPlayers    prometheus.Histogram
	resultsReported      *prometheus.CounterVec
	matchNotFound        prometheus.Counter
	standingsLatency     prometheus.Histogram

	// Export metrics
	exports       *prometheus.CounterVec
	exportLatency prometheus.Histogram

	// Interaction metrics
	cooldownRejected prometheus.Counter
	liveSubscribers  prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository metrics
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram
	repositoryLockWait      prometheus.Histogram
	repositoryConflicts     prometheus.Counter

	// Queue metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueue           prometheus.Counter
	queueDequeue           prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Error metrics
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "duelkit",
		subsystem:        "tournaments",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.auto = promauto.With(m.registry)
	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return m.auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return m.auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return m.auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return m.auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.tournamentsCreated = m.counter("created_total", "Total number of brackets built")
	m.tournamentsCompleted = m.counter("completed_total", "Total number of tournaments that reached completion")
	m.tournamentsStored = m.gauge("stored", "Number of tournament documents on disk")
	m.tournamentPlayers = m.histogram("players", "Roster size of built brackets", []float64{3, 4, 5, 6, 7, 8})
	m.resultsReported = m.counterVec("results_reported_total",
		"Result reports by outcome (recorded, corrected, unchanged, rejected)", "outcome")
	m.matchNotFound = m.counter("match_not_found_total", "Lookups that matched no pairing")
	m.standingsLatency = m.histogram("standings_latency_milliseconds",
		"Season standings aggregation latency in milliseconds", m.histogramBuckets)

	m.exports = m.counterVec("exports_total", "Spreadsheet exports by status", "status")
	m.exportLatency = m.histogram("export_latency_milliseconds", "Spreadsheet export latency in milliseconds", m.histogramBuckets)

	m.cooldownRejected = m.counter("cooldown_rejected_total", "Requests rejected by the per-user cooldown")
	m.liveSubscribers = m.gauge("live_subscribers", "Connected live bracket subscribers")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds",
		"Repository write latency in milliseconds", m.histogramBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds",
		"Repository read latency in milliseconds", m.histogramBuckets)
	m.repositoryLockWait = m.histogram("repository_lock_wait_milliseconds",
		"Time spent waiting for a per-tournament lock in milliseconds", m.histogramBuckets)
	m.repositoryConflicts = m.counter("repository_conflicts_total", "Writes rejected because of a stale revision")

	m.queueSize = m.gauge("queue_size", "Current size of the export queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum export queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds",
		"Queue processing latency in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Configured number of export workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of export workers handling a job")
	m.workerIdleCount = m.gauge("worker_idle_count", "Number of idle export workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Worker processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker errors")

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")
	m.errorsByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Tournament Metrics Functions.

// RecordTournamentCreated counts a built bracket and its roster size.
func RecordTournamentCreated(players int) {
	globalManager.tournamentsCreated.Inc()
	globalManager.tournamentPlayers.Observe(float64(players))
}

// RecordTournamentCompleted counts a tournament whose last match was resolved.
func RecordTournamentCompleted() {
	globalManager.tournamentsCompleted.Inc()
}

// UpdateTournamentsStored sets the number of stored tournament documents.
func UpdateTournamentsStored(count int) {
	globalManager.tournamentsStored.Set(float64(count))
}

// RecordResultReported counts a result report by outcome.
func RecordResultReported(outcome string) {
	globalManager.resultsReported.WithLabelValues(outcome).Inc()
}

// RecordMatchNotFound counts a lookup that matched no pairing.
func RecordMatchNotFound() {
	globalManager.matchNotFound.Inc()
}

// RecordStandingsLatency records season aggregation latency.
func RecordStandingsLatency(latencyMs float64) {
	globalManager.standingsLatency.Observe(latencyMs)
}

// RecordExport counts a spreadsheet export by status (ok, failed, dropped).
func RecordExport(status string) {
	globalManager.exports.WithLabelValues(status).Inc()
}

// RecordExportLatency records spreadsheet export latency.
func RecordExportLatency(latencyMs float64) {
	globalManager.exportLatency.Observe(latencyMs)
}

// RecordCooldownRejected counts a request refused by the cooldown.
func RecordCooldownRejected() {
	globalManager.cooldownRejected.Inc()
}

// UpdateLiveSubscribers sets the number of connected live subscribers.
func UpdateLiveSubscribers(count int) {
	globalManager.liveSubscribers.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository Metrics Functions.

// RecordRepositoryUpdateLatency records repository update operation latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query operation latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordLockWait records how long a caller waited for a tournament lock.
func RecordLockWait(latencyMs float64) {
	globalManager.repositoryLockWait.Observe(latencyMs)
}

// RecordConflict counts a write rejected for a stale revision.
func RecordConflict() {
	globalManager.repositoryConflicts.Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
