// Package metrics provides Prometheus metrics for the glucofeed service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Feed
	feedRequests         prometheus.Counter
	feedRecords          prometheus.Histogram
	feedAssemblyFaults   prometheus.Counter
	feedStoreUnavailable prometheus.Counter
	feedAuxInjected      *prometheus.CounterVec

	// Side-channel commands and internal routes
	commandsDispatched *prometheus.CounterVec
	routeResolutions   *prometheus.CounterVec
	statusUpdates      prometheus.Counter

	// Store
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	storeReadings     prometheus.Gauge

	// Tasker delivery
	taskerQueueSize       prometheus.Gauge
	taskerQueueCapacity   prometheus.Gauge
	taskerEnqueued        prometheus.Counter
	taskerRejected        *prometheus.CounterVec
	taskerDelivered       prometheus.Counter
	taskerDeliveryErrors  prometheus.Counter
	taskerDeliveryLatency prometheus.Histogram
	workerCount           prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByType        *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "glucofeed",
		subsystem:        "sgv",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.feedRequests = m.counter("feed_requests_total", "Total number of sgv feed requests served")
	m.feedRecords = m.histogram("feed_records", "Number of records per sgv feed response",
		[]float64{0, 1, 6, 12, 18, 24})
	m.feedAssemblyFaults = m.counter("feed_assembly_faults_total", "Feed responses truncated by a record serialization fault")
	m.feedStoreUnavailable = m.counter("feed_store_unavailable_total", "Feed requests where the readings store returned no collection")
	m.feedAuxInjected = m.counterVec("feed_aux_injected_total", "Drain-once auxiliary fields injected into a feed response", "field")

	m.commandsDispatched = m.counterVec("commands_dispatched_total", "Side-channel commands dispatched by command and result code", "command", "result_code")
	m.routeResolutions = m.counterVec("route_resolutions_total", "Internal route resolutions by route and result code", "route", "result_code")
	m.statusUpdates = m.counter("status_updates_total", "External status line updates")

	m.storeQueryLatency = m.histogramVec("store_query_latency_milliseconds", "Store operation latency in milliseconds", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation errors", "op")
	m.storeReadings = m.gauge("store_readings", "Number of readings held by the store")

	m.taskerQueueSize = m.gauge("tasker_queue_size", "Current number of queued tasker commands")
	m.taskerQueueCapacity = m.gauge("tasker_queue_capacity", "Maximum tasker queue capacity")
	m.taskerEnqueued = m.counter("tasker_enqueued_total", "Tasker commands accepted into the queue")
	m.taskerRejected = m.counterVec("tasker_rejected_total", "Tasker commands rejected by the queue", "reason")
	m.taskerDelivered = m.counter("tasker_delivered_total", "Tasker commands delivered to the sink")
	m.taskerDeliveryErrors = m.counter("tasker_delivery_errors_total", "Tasker commands the sink failed to deliver")
	m.taskerDeliveryLatency = m.histogram("tasker_delivery_latency_milliseconds", "Tasker delivery latency in milliseconds", m.histogramBuckets)
	m.workerCount = m.gauge("worker_count", "Number of tasker delivery workers")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorsByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordFeedRequest counts one feed response with n records.
func RecordFeedRequest(n int) {
	globalManager.feedRequests.Inc()
	globalManager.feedRecords.Observe(float64(n))
}

// RecordFeedAssemblyFault counts a response cut short by a serialization fault.
func RecordFeedAssemblyFault() {
	globalManager.feedAssemblyFaults.Inc()
}

// RecordFeedStoreUnavailable counts a feed request without a readings collection.
func RecordFeedStoreUnavailable() {
	globalManager.feedStoreUnavailable.Inc()
}

// RecordAuxInjected counts an auxiliary field attached to a feed record.
func RecordAuxInjected(field string) {
	globalManager.feedAuxInjected.WithLabelValues(field).Inc()
}

// RecordCommandDispatched counts a side-channel command and its result code.
func RecordCommandDispatched(command string, code int) {
	globalManager.commandsDispatched.WithLabelValues(command, strconv.Itoa(code)).Inc()
}

// RecordRouteResolution counts an internal route resolution.
func RecordRouteResolution(route string, code int) {
	globalManager.routeResolutions.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// RecordStatusUpdate counts an external status line update.
func RecordStatusUpdate() {
	globalManager.statusUpdates.Inc()
}

// RecordStoreQueryLatency records a store operation latency.
func RecordStoreQueryLatency(op string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// UpdateStoreReadings sets the number of stored readings.
func UpdateStoreReadings(count int) {
	globalManager.storeReadings.Set(float64(count))
}

// UpdateTaskerQueueSize sets the current tasker queue length.
func UpdateTaskerQueueSize(size int) {
	globalManager.taskerQueueSize.Set(float64(size))
}

// UpdateTaskerQueueCapacity sets the tasker queue capacity.
func UpdateTaskerQueueCapacity(capacity int) {
	globalManager.taskerQueueCapacity.Set(float64(capacity))
}

// RecordTaskerEnqueued counts an accepted tasker command.
func RecordTaskerEnqueued() {
	globalManager.taskerEnqueued.Inc()
}

// RecordTaskerRejected counts a tasker command the queue refused.
func RecordTaskerRejected(reason string) {
	globalManager.taskerRejected.WithLabelValues(reason).Inc()
}

// RecordTaskerDelivered counts a delivered tasker command and its latency.
func RecordTaskerDelivered(latencyMs float64) {
	globalManager.taskerDelivered.Inc()
	globalManager.taskerDeliveryLatency.Observe(latencyMs)
}

// RecordTaskerDeliveryError counts a failed tasker delivery.
func RecordTaskerDeliveryError() {
	globalManager.taskerDeliveryErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

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
