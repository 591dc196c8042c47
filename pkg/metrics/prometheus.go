// Package metrics provides Prometheus metrics for the agon tournament arena.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the agon service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core Tournament Metrics - What really matters for an arena
	competitorsRegistered  prometheus.Counter
	registrationsDuplicate prometheus.Counter
	matchesJudged          *prometheus.CounterVec
	matchesIndeterminate   prometheus.Counter
	roundsCompleted        prometheus.Counter
	roundAnomalies         prometheus.Counter
	roundDuration          prometheus.Histogram
	runsFinished           *prometheus.CounterVec

	// Judge Metrics - External judge call health
	judgeLatency  prometheus.Histogram
	judgeRetries  prometheus.Counter
	judgeFailures *prometheus.CounterVec

	// Rating Metrics - Glicko-2 update tracking
	ratingUpdates        prometheus.Counter
	convergenceFailures  prometheus.Counter
	inactivityInflations prometheus.Counter
	topRating            prometheus.Gauge
	meanDeviation        prometheus.Gauge

	// Operational Health Metrics
	populationSize prometheus.Gauge
	currentRound   prometheus.Gauge
	runActive      prometheus.Gauge

	// Queue Metrics - Match dispatch queue
	queueDepth         prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics - Match execution pool
	workerCount       prometheus.Gauge
	workerActiveCount prometheus.Gauge
	matchLatency      prometheus.Histogram

	// Store Metrics - Rating store and archive
	storeCommitDuration   prometheus.Histogram
	storeQueryLatency     prometheus.Histogram
	storeSnapshotCount    prometheus.Counter
	storeSnapshotLastUnix prometheus.Gauge
	archiveWrites         prometheus.Counter
	archiveErrors         prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
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
		namespace:        "agon",
		subsystem:        "arena",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Core Tournament Metrics
	m.competitorsRegistered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "competitors_registered_total",
		Help:      "Total number of competitors registered",
	})

	m.registrationsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "registrations_duplicate_total",
		Help:      "Total number of duplicate registration attempts",
	})

	m.matchesJudged = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "matches_judged_total",
			Help:      "Total number of judged matches by verdict",
		},
		[]string{"verdict"},
	)

	m.matchesIndeterminate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_indeterminate_total",
		Help:      "Total number of matches abandoned after exhausting retries",
	})

	m.roundsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rounds_completed_total",
		Help:      "Total number of completed tournament rounds",
	})

	m.roundAnomalies = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "round_anomalies_total",
		Help:      "Total number of rounds that produced zero usable outcomes",
	})

	m.roundDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "round_duration_milliseconds",
		Help:      "Histogram of full round duration in milliseconds (pairing to commit)",
		Buckets:   m.histogramBuckets,
	})

	m.runsFinished = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "runs_finished_total",
			Help:      "Total number of tournament runs by final status",
		},
		[]string{"status"},
	)

	// Judge Metrics
	m.judgeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "judge_latency_milliseconds",
		Help:      "Judge call latency in milliseconds (core external dependency)",
		Buckets:   m.histogramBuckets,
	})

	m.judgeRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "judge_retries_total",
		Help:      "Total number of judge call retries",
	})

	m.judgeFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "judge_failures_total",
			Help:      "Total number of judge call failures by reason",
		},
		[]string{"reason"},
	)

	// Rating Metrics
	m.ratingUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_updates_total",
		Help:      "Total number of per-competitor rating updates applied",
	})

	m.convergenceFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "volatility_convergence_failures_total",
		Help:      "Total number of volatility solver non-convergences (prior volatility retained)",
	})

	m.inactivityInflations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inactivity_inflations_total",
		Help:      "Total number of deviation inflations applied to idle competitors",
	})

	m.topRating = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "top_rating",
		Help:      "Rating of the current leaderboard leader",
	})

	m.meanDeviation = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mean_deviation",
		Help:      "Mean rating deviation across the population (certainty indicator)",
	})

	// Operational Health Metrics
	m.populationSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "population_size",
		Help:      "Total number of competitors tracked (business scale)",
	})

	m.currentRound = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "current_round",
		Help:      "Round index of the in-flight tournament run (0 when idle)",
	})

	m.runActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_active",
		Help:      "1 while a tournament run is in flight, 0 otherwise",
	})

	// Queue Metrics
	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_depth",
		Help:      "Current depth of the match dispatch queue (backlog indicator)",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum match queue capacity",
	})

	m.queueEnqueueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total number of pairing tasks enqueued",
	})

	m.queueDequeueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total number of pairing tasks dequeued",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of enqueue errors",
	})

	// Worker Metrics
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Size of the match execution pool (concurrency cap)",
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Number of workers currently executing a match",
	})

	m.matchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_latency_milliseconds",
		Help:      "End-to-end match execution latency including retries in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Store Metrics
	m.storeCommitDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_commit_duration_milliseconds",
		Help:      "Rating store round-batch commit duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Rating store query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeSnapshotCount = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_snapshot_count_total",
		Help:      "Total number of store snapshots published",
	})

	m.storeSnapshotLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_snapshot_last_unix",
		Help:      "Unix timestamp of the last store snapshot publish",
	})

	m.archiveWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "archive_writes_total",
		Help:      "Total number of rows written to the match archive",
	})

	m.archiveErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "archive_errors_total",
		Help:      "Total number of archive write failures",
	})

	// HTTP Performance Metrics - User experience indicators
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds (user experience)",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Enhanced Error Metrics - Detailed error tracking
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of errors by type",
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_latency_milliseconds",
			Help:      "Latency of operations that resulted in errors",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordCompetitorRegistered increments the registered competitors counter.
func RecordCompetitorRegistered() {
	globalManager.competitorsRegistered.Inc()
}

// RecordRegistrationDuplicate increments the duplicate registrations counter.
func RecordRegistrationDuplicate() {
	globalManager.registrationsDuplicate.Inc()
}

// RecordMatchJudged increments the judged matches counter for a verdict.
func RecordMatchJudged(verdict string) {
	globalManager.matchesJudged.WithLabelValues(verdict).Inc()
}

// RecordMatchIndeterminate increments the indeterminate matches counter.
func RecordMatchIndeterminate() {
	globalManager.matchesIndeterminate.Inc()
}

// RecordRoundCompleted increments the completed rounds counter.
func RecordRoundCompleted() {
	globalManager.roundsCompleted.Inc()
}

// RecordRoundAnomaly increments the zero-usable-outcome rounds counter.
func RecordRoundAnomaly() {
	globalManager.roundAnomalies.Inc()
}

// RecordRoundDuration records a full round duration in milliseconds.
func RecordRoundDuration(durationMs float64) {
	globalManager.roundDuration.Observe(durationMs)
}

// RecordRunFinished increments the finished runs counter for a final status.
func RecordRunFinished(status string) {
	globalManager.runsFinished.WithLabelValues(status).Inc()
}

// Judge Metrics Functions.

// RecordJudgeLatency records one judge call latency in milliseconds.
func RecordJudgeLatency(latencyMs float64) {
	globalManager.judgeLatency.Observe(latencyMs)
}

// RecordJudgeRetry increments the judge retries counter.
func RecordJudgeRetry() {
	globalManager.judgeRetries.Inc()
}

// RecordJudgeFailure increments the judge failure counter for a reason.
func RecordJudgeFailure(reason string) {
	globalManager.judgeFailures.WithLabelValues(reason).Inc()
}

// Rating Metrics Functions.

// RecordRatingUpdates adds to the applied rating updates counter.
func RecordRatingUpdates(count int) {
	globalManager.ratingUpdates.Add(float64(count))
}

// RecordConvergenceFailure increments the volatility non-convergence counter.
func RecordConvergenceFailure() {
	globalManager.convergenceFailures.Inc()
}

// RecordInactivityInflations adds to the idle-competitor inflation counter.
func RecordInactivityInflations(count int) {
	globalManager.inactivityInflations.Add(float64(count))
}

// UpdateTopRating sets the leaderboard leader's rating.
func UpdateTopRating(rating float64) {
	globalManager.topRating.Set(rating)
}

// UpdateMeanDeviation sets the population mean deviation.
func UpdateMeanDeviation(deviation float64) {
	globalManager.meanDeviation.Set(deviation)
}

// Operational Health Metrics Functions.

// UpdatePopulationSize sets the tracked competitor count.
func UpdatePopulationSize(count int) {
	globalManager.populationSize.Set(float64(count))
}

// UpdateCurrentRound sets the in-flight round index.
func UpdateCurrentRound(round int) {
	globalManager.currentRound.Set(float64(round))
}

// UpdateRunActive flags whether a tournament run is in flight.
func UpdateRunActive(active bool) {
	if active {
		globalManager.runActive.Set(1)
		return
	}
	globalManager.runActive.Set(0)
}

// Queue Metrics Functions.

// UpdateQueueDepth sets the current match queue depth.
func UpdateQueueDepth(depth int) {
	globalManager.queueDepth.Set(float64(depth))
}

// UpdateQueueCapacity sets the maximum match queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the match pool size.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of workers executing a match.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordMatchLatency records end-to-end match execution latency.
func RecordMatchLatency(latencyMs float64) {
	globalManager.matchLatency.Observe(latencyMs)
}

// Store Metrics Functions.

// RecordStoreCommitDuration records a round-batch commit duration.
func RecordStoreCommitDuration(durationMs float64) {
	globalManager.storeCommitDuration.Observe(durationMs)
}

// RecordStoreQueryLatency records a store query latency.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// RecordStoreSnapshot records a snapshot publish.
func RecordStoreSnapshot() {
	globalManager.storeSnapshotCount.Inc()
	globalManager.storeSnapshotLastUnix.Set(float64(time.Now().Unix()))
}

// RecordArchiveWrite adds to the archive row write counter.
func RecordArchiveWrite(rows int) {
	globalManager.archiveWrites.Add(float64(rows))
}

// RecordArchiveError increments the archive failure counter.
func RecordArchiveError() {
	globalManager.archiveErrors.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Enhanced Error Metrics Functions.

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
