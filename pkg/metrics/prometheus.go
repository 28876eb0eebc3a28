// Package metrics provides Prometheus metrics for the SmartInhale adherence service.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion pipeline
	payloadsReceived *prometheus.CounterVec
	decodeFailures   *prometheus.CounterVec
	eventsIngested   *prometheus.CounterVec
	ingestLatency    prometheus.Histogram
	eventsCleared    prometheus.Counter

	// Event store
	storeSize         prometheus.Gauge
	storeCapacity     prometheus.Gauge
	persistErrors     *prometheus.CounterVec
	persistLatency    prometheus.Histogram
	snapshotLastUnix  prometheus.Gauge
	adherencePercent  prometheus.Gauge
	todaysDoses       prometheus.Gauge
	blobBreakerStates *prometheus.GaugeVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueTotal  prometheus.Counter
	queueDequeueTotal  prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker
	workerActive            prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Transport
	connectionStates *prometheus.CounterVec
	wsClients        *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "smartinhale",
		subsystem:        "adherence",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
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

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() {
	m.payloadsReceived = m.counterVec("payloads_received_total",
		"Raw payloads accepted for ingestion by transport source", "source")
	m.decodeFailures = m.counterVec("decode_failures_total",
		"Payloads dropped because neither JSON nor binary decoding succeeded", "reason")
	m.eventsIngested = m.counterVec("events_ingested_total",
		"Events normalized and stored, by payload format", "format")
	m.ingestLatency = m.histogram("ingest_latency_milliseconds",
		"Time from dequeue to stored event in milliseconds")
	m.eventsCleared = m.counter("events_cleared_total",
		"Number of times the event store was cleared")

	m.storeSize = m.gauge("store_events", "Events currently held by the event store")
	m.storeCapacity = m.gauge("store_capacity", "Maximum events retained by the event store")
	m.persistErrors = m.counterVec("persist_errors_total",
		"Failed blob store writes by key", "key")
	m.persistLatency = m.histogram("persist_latency_milliseconds",
		"Blob store snapshot write latency in milliseconds")
	m.snapshotLastUnix = m.gauge("snapshot_last_unix",
		"Unix timestamp of the last published event snapshot")
	m.adherencePercent = m.gauge("adherence_percent", "Adherence percentage for the current day")
	m.todaysDoses = m.gauge("todays_doses", "Inhalation events recorded for the current day")
	m.blobBreakerStates = m.gaugeVec("blob_breaker_state",
		"Blob store circuit breaker state (0 closed, 1 half-open, 2 open)", "name")

	m.queueSize = m.gauge("queue_size", "Current size of the ingestion queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum ingestion queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueueTotal = m.counter("queue_enqueue_total", "Total number of envelopes enqueued")
	m.queueDequeueTotal = m.counter("queue_dequeue_total", "Total number of envelopes dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total",
		"Envelopes rejected because the queue was full or closed")

	m.workerActive = m.gauge("worker_active", "1 while the ingestion worker is running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Worker processing latency per envelope in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Envelopes the worker failed to process")

	m.connectionStates = m.counterVec("connection_state_changes_total",
		"Connection lifecycle transitions reported by the transport", "state")
	m.wsClients = m.gaugeVec("websocket_clients", "Connected websocket clients by endpoint", "endpoint")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total",
		"HTTP errors by endpoint", "endpoint", "method", "error_type")
}

// RecordPayloadReceived counts a raw payload accepted from source.
func RecordPayloadReceived(source string) {
	globalManager.payloadsReceived.WithLabelValues(source).Inc()
}

// RecordDecodeFailure counts a dropped payload.
func RecordDecodeFailure(reason string) {
	globalManager.decodeFailures.WithLabelValues(reason).Inc()
}

// RecordEventIngested counts a stored event by payload format.
func RecordEventIngested(format string) {
	globalManager.eventsIngested.WithLabelValues(format).Inc()
}

// RecordIngestLatency records dequeue-to-store latency.
func RecordIngestLatency(latencyMs float64) {
	globalManager.ingestLatency.Observe(latencyMs)
}

// RecordEventsCleared counts a clear operation.
func RecordEventsCleared() {
	globalManager.eventsCleared.Inc()
}

// UpdateStoreSize sets the number of retained events.
func UpdateStoreSize(size int) {
	globalManager.storeSize.Set(float64(size))
}

// UpdateStoreCapacity sets the event store capacity.
func UpdateStoreCapacity(capacity int) {
	globalManager.storeCapacity.Set(float64(capacity))
}

// RecordPersistError counts a failed blob write for key.
func RecordPersistError(key string) {
	globalManager.persistErrors.WithLabelValues(key).Inc()
}

// RecordPersistLatency records a blob write latency.
func RecordPersistLatency(latencyMs float64) {
	globalManager.persistLatency.Observe(latencyMs)
}

// UpdateSnapshotLastUnix records when the last snapshot was published.
func UpdateSnapshotLastUnix(unix int64) {
	globalManager.snapshotLastUnix.Set(float64(unix))
}

// UpdateAdherence sets today's adherence percentage and dose count.
func UpdateAdherence(percent, doses int) {
	globalManager.adherencePercent.Set(float64(percent))
	globalManager.todaysDoses.Set(float64(doses))
}

// UpdateBreakerState sets a blob breaker state gauge.
func UpdateBreakerState(name string, state int) {
	globalManager.blobBreakerStates.WithLabelValues(name).Set(float64(state))
}

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
	globalManager.queueEnqueueTotal.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueTotal.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerActive marks the ingestion worker as running or stopped.
func UpdateWorkerActive(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	globalManager.workerActive.Set(v)
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordConnectionState counts a lifecycle transition. Error states are
// collapsed into a single "error" label to bound cardinality.
func RecordConnectionState(state string) {
	if strings.HasPrefix(state, "error") {
		state = "error"
	}
	globalManager.connectionStates.WithLabelValues(state).Inc()
}

// AddWebSocketClients adjusts the connected client gauge for endpoint.
func AddWebSocketClients(endpoint string, delta int) {
	globalManager.wsClients.WithLabelValues(endpoint).Add(float64(delta))
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
