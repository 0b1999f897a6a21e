// Package metrics provides Prometheus metrics for the paddock scoring engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the paddock service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Analysis metrics - one analysis is one horse scored end to end.
	analysesStarted   prometheus.Counter
	analysesCompleted prometheus.Counter
	analysisLatency   prometheus.Histogram
	scoresProduced    prometheus.Counter
	signalsDegraded   *prometheus.CounterVec

	// Gateway metrics - outbound calls to external AI collaborators.
	gatewayCalls       *prometheus.CounterVec
	gatewayRetries     *prometheus.CounterVec
	gatewayJobPolls    *prometheus.CounterVec
	gatewayCallLatency *prometheus.HistogramVec
	gatewayInflight    prometheus.Gauge
	permitWaitLatency  prometheus.Histogram
	breakerState       *prometheus.GaugeVec

	// Queue metrics - per-horse task queue.
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDequeues    prometheus.Counter
	queueErrors      prometheus.Counter

	// Worker metrics - per-horse analysis workers.
	workerActiveCount prometheus.Gauge
	workerLatency     prometheus.Histogram
	workerErrors      prometheus.Counter

	// Field metrics.
	fieldHorses prometheus.Gauge

	// Error tracking.
	errorsByComponent *prometheus.CounterVec
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
		namespace:        "paddock",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.analysesStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analyses_started_total",
		Help:      "Total number of per-horse analyses started",
	})

	m.analysesCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analyses_completed_total",
		Help:      "Total number of per-horse analyses completed",
	})

	m.analysisLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analysis_latency_milliseconds",
		Help:      "Histogram of per-horse analysis latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.scoresProduced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "composite_scores_total",
		Help:      "Total number of composite scores produced",
	})

	m.signalsDegraded = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "signals_degraded_total",
			Help:      "Total number of analyses where a signal degraded to its default",
		},
		[]string{"signal"},
	)

	m.gatewayCalls = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "gateway_calls_total",
			Help:      "Total number of gateway calls by service and outcome",
		},
		[]string{"service", "outcome"},
	)

	m.gatewayRetries = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "gateway_retries_total",
			Help:      "Total number of gateway retry attempts by service",
		},
		[]string{"service"},
	)

	m.gatewayJobPolls = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "gateway_job_polls_total",
			Help:      "Total number of asynchronous job status polls by service",
		},
		[]string{"service"},
	)

	m.gatewayCallLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "gateway_call_latency_milliseconds",
			Help:      "Gateway call latency in milliseconds by service",
			Buckets:   m.histogramBuckets,
		},
		[]string{"service"},
	)

	m.gatewayInflight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "gateway_inflight_calls",
		Help:      "Current number of in-flight external calls holding a permit",
	})

	m.permitWaitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "gateway_permit_wait_milliseconds",
		Help:      "Time spent waiting for a concurrency permit in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.breakerState = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "gateway_breaker_state",
			Help:      "Circuit breaker state by service (0 closed, 1 half-open, 2 open)",
		},
		[]string{"service"},
	)

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the horse task queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum horse task queue capacity",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization_ratio",
		Help:      "Queue utilization ratio (current size / capacity)",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total number of horse tasks enqueued",
	})

	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total number of horse tasks dequeued",
	})

	m.queueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_errors_total",
		Help:      "Total number of enqueue failures",
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Number of active analysis workers",
	})

	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Worker task processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of worker processing errors",
	})

	m.fieldHorses = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "field_horses",
		Help:      "Number of horses in the most recent field",
	})

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total errors by component and kind",
		},
		[]string{"component", "kind"},
	)
}

// Handler returns an HTTP handler serving the custom registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}

// Package-level helpers operating on the global manager.

// RecordAnalysisStarted increments the started-analyses counter.
func RecordAnalysisStarted() {
	globalManager.analysesStarted.Inc()
}

// RecordAnalysisCompleted records a completed analysis and its latency.
func RecordAnalysisCompleted(latencyMs float64) {
	globalManager.analysesCompleted.Inc()
	globalManager.analysisLatency.Observe(latencyMs)
}

// RecordScoreProduced increments the composite score counter.
func RecordScoreProduced() {
	globalManager.scoresProduced.Inc()
}

// RecordSignalDegraded records a signal that fell back to its default.
func RecordSignalDegraded(signal string) {
	globalManager.signalsDegraded.WithLabelValues(signal).Inc()
}

// RecordGatewayCall records one finished gateway call.
func RecordGatewayCall(service, outcome string, latencyMs float64) {
	globalManager.gatewayCalls.WithLabelValues(service, outcome).Inc()
	globalManager.gatewayCallLatency.WithLabelValues(service).Observe(latencyMs)
}

// RecordGatewayRetry records one retry attempt.
func RecordGatewayRetry(service string) {
	globalManager.gatewayRetries.WithLabelValues(service).Inc()
}

// RecordGatewayJobPoll records one asynchronous job status poll.
func RecordGatewayJobPoll(service string) {
	globalManager.gatewayJobPolls.WithLabelValues(service).Inc()
}

// UpdateGatewayInflight adjusts the in-flight call gauge by delta.
func UpdateGatewayInflight(delta int) {
	globalManager.gatewayInflight.Add(float64(delta))
}

// RecordPermitWait records time spent waiting for a concurrency permit.
func RecordPermitWait(latencyMs float64) {
	globalManager.permitWaitLatency.Observe(latencyMs)
}

// UpdateBreakerState publishes the circuit breaker state for a service.
func UpdateBreakerState(service string, state int) {
	globalManager.breakerState.WithLabelValues(service).Set(float64(state))
}

// UpdateQueueSize sets the current queue size gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio gauge.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// RecordQueueError increments the enqueue failure counter.
func RecordQueueError() {
	globalManager.queueErrors.Inc()
}

// UpdateWorkerActiveCount sets the active worker gauge.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records per-task worker latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateFieldHorses sets the field size gauge.
func UpdateFieldHorses(count int) {
	globalManager.fieldHorses.Set(float64(count))
}

// RecordErrorByComponent records a component-scoped error.
func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}
