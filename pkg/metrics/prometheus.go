// Package metrics provides Prometheus metrics for the solve analytics
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Ingestion
	solvesIngested   prometheus.Counter
	solvesDuplicate  prometheus.Counter
	ingestionLatency prometheus.Histogram

	// Scoring
	solvesScored   prometheus.Counter
	scoringErrors  prometheus.Counter
	scoringLatency prometheus.Histogram

	// Score queue
	scoreQueueSize     prometheus.Gauge
	scoreQueueCapacity prometheus.Gauge
	scoreQueueDrops    prometheus.Counter

	// Snapshot cache
	snapshotRefreshes     prometheus.Counter
	snapshotStaleDiscards prometheus.Counter
	snapshotRefreshMs     prometheus.Histogram

	// Training jobs
	trainingJobsEnqueued prometheus.Counter
	trainingJobsDone     prometheus.Counter
	trainingJobsFailed   prometheus.Counter
	trainingDurationMs   prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// Registry exposes the custom registry for the /metrics handler.
func Registry() *prometheus.Registry { return customRegistry }

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cubetrics",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
	m.registry.MustRegister(c)
	return c
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
	m.registry.MustRegister(g)
	return g
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
	m.registry.MustRegister(h)
	return h
}

func (m *Manager) initializeMetrics() {
	m.solvesIngested = m.counter("solves_ingested_total", "Solves persisted by the ingestion gateway")
	m.solvesDuplicate = m.counter("solves_duplicate_total", "Submissions resolved through the idempotency table")
	m.ingestionLatency = m.histogram("ingestion_latency_ms", "Create-solve latency, persistence plus rolling recompute")

	m.solvesScored = m.counter("solves_scored_total", "Score records written")
	m.scoringErrors = m.counter("scoring_errors_total", "Scoring attempts that failed")
	m.scoringLatency = m.histogram("scoring_latency_ms", "Score computation latency")

	m.scoreQueueSize = m.gauge("score_queue_size", "Requests waiting in the score queue")
	m.scoreQueueCapacity = m.gauge("score_queue_capacity", "Score queue capacity")
	m.scoreQueueDrops = m.counter("score_queue_drops_total", "Score requests dropped on backpressure")

	m.snapshotRefreshes = m.counter("snapshot_refreshes_total", "Dashboard snapshot refreshes applied")
	m.snapshotStaleDiscards = m.counter("snapshot_stale_discards_total", "Snapshot refreshes discarded as stale")
	m.snapshotRefreshMs = m.histogram("snapshot_refresh_ms", "Snapshot rebuild latency")

	m.trainingJobsEnqueued = m.counter("training_jobs_enqueued_total", "Training jobs created by threshold triggers")
	m.trainingJobsDone = m.counter("training_jobs_done_total", "Training jobs finished successfully")
	m.trainingJobsFailed = m.counter("training_jobs_failed_total", "Training jobs finished in failure")
	m.trainingDurationMs = m.histogram("training_duration_ms", "Training job run time")

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total", Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_request_duration_ms", Help: "HTTP request latency",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method"})
	m.registry.MustRegister(m.httpRequests, m.httpRequestDuration)
}

// Package-level recording helpers on the global manager.

func RecordSolveIngested() {
	if globalManager.enabled {
		globalManager.solvesIngested.Inc()
	}
}

func RecordSolveDuplicate() {
	if globalManager.enabled {
		globalManager.solvesDuplicate.Inc()
	}
}

func RecordIngestionLatency(ms float64) {
	if globalManager.enabled {
		globalManager.ingestionLatency.Observe(ms)
	}
}

func RecordSolveScored() {
	if globalManager.enabled {
		globalManager.solvesScored.Inc()
	}
}

func RecordScoringError() {
	if globalManager.enabled {
		globalManager.scoringErrors.Inc()
	}
}

func RecordScoringLatency(ms float64) {
	if globalManager.enabled {
		globalManager.scoringLatency.Observe(ms)
	}
}

func UpdateScoreQueueSize(n int) {
	if globalManager.enabled {
		globalManager.scoreQueueSize.Set(float64(n))
	}
}

func UpdateScoreQueueCapacity(n int) {
	if globalManager.enabled {
		globalManager.scoreQueueCapacity.Set(float64(n))
	}
}

func RecordScoreQueueDrop() {
	if globalManager.enabled {
		globalManager.scoreQueueDrops.Inc()
	}
}

func RecordSnapshotRefresh(ms float64) {
	if globalManager.enabled {
		globalManager.snapshotRefreshes.Inc()
		globalManager.snapshotRefreshMs.Observe(ms)
	}
}

func RecordSnapshotStaleDiscard() {
	if globalManager.enabled {
		globalManager.snapshotStaleDiscards.Inc()
	}
}

func RecordTrainingJobEnqueued() {
	if globalManager.enabled {
		globalManager.trainingJobsEnqueued.Inc()
	}
}

func RecordTrainingJobDone() {
	if globalManager.enabled {
		globalManager.trainingJobsDone.Inc()
	}
}

func RecordTrainingJobFailed() {
	if globalManager.enabled {
		globalManager.trainingJobsFailed.Inc()
	}
}

func RecordTrainingDuration(ms float64) {
	if globalManager.enabled {
		globalManager.trainingDurationMs.Observe(ms)
	}
}

func RecordHTTPRequest(endpoint, method, status string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	}
}

func RecordHTTPRequestDuration(endpoint, method string, ms float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(ms)
	}
}
