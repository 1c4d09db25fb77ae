package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the ingestion service

var (
	// Feed metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wedgie_feed_calls_total",
			Help: "Total number of schedule and play-by-play feed calls",
		},
		[]string{"endpoint", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wedgie_feed_call_duration_seconds",
			Help:    "Duration of feed calls in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	PlayByPlayFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wedgie_playbyplay_failures_total",
			Help: "Games excluded from aggregation because their play-by-play could not be fetched",
		},
	)

	PlayByPlayBudgetExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wedgie_playbyplay_budget_exceeded_total",
			Help: "Aggregations that stopped early on the wall-clock budget",
		},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wedgie_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wedgie_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wedgie_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wedgie_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wedgie_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wedgie_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wedgie_cache_operation_duration_seconds",
			Help:    "Duration of cache operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Sync metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wedgie_sync_operations_total",
			Help: "Total number of ingestion runs",
		},
		[]string{"type", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wedgie_sync_duration_seconds",
			Help:    "Duration of ingestion runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"type"},
	)

	GamesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wedgie_games_ingested_total",
			Help: "Total number of game rows created",
		},
	)

	LiveGames = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wedgie_live_games",
			Help: "1 when at least one game is in progress",
		},
	)

	// State metrics
	StateWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wedgie_state_writes_total",
			Help: "Total number of global state transactions by write path",
		},
		[]string{"path", "status"},
	)

	TotalWedgies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wedgie_total_wedgies",
			Help: "Cumulative wedgies in the active season",
		},
	)

	PaceForecast = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wedgie_pace_forecast",
			Help: "Latest season-end wedgie forecast by method",
		},
		[]string{"method"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wedgie_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wedgie_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wedgie_last_successful_sync_timestamp",
			Help: "Timestamp of last successful ingestion run",
		},
	)
)

// RecordAPICall records a feed call metric
func RecordAPICall(endpoint, status string, duration float64) {
	APICallsTotal.WithLabelValues(endpoint, status).Inc()
	APICallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordPlayByPlayFailure records a game excluded after a failed fetch
func RecordPlayByPlayFailure() {
	PlayByPlayFailures.Inc()
}

// RecordPlayByPlayBudgetExceeded records an aggregation cut short by its budget
func RecordPlayByPlayBudgetExceeded() {
	PlayByPlayBudgetExceeded.Inc()
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordCacheOperation records a cache operation duration
func RecordCacheOperation(operation string, duration float64) {
	CacheOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordSync records an ingestion run
func RecordSync(syncType, status string, duration float64) {
	SyncOperationsTotal.WithLabelValues(syncType, status).Inc()
	SyncDuration.WithLabelValues(syncType).Observe(duration)

	if status == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// RecordGamesIngested adds newly created game rows
func RecordGamesIngested(n int) {
	GamesIngested.Add(float64(n))
}

// RecordStateWrite records a global state transaction
func RecordStateWrite(path, status string) {
	StateWritesTotal.WithLabelValues(path, status).Inc()
}

// UpdateState publishes the committed totals and forecasts
func UpdateState(wedgies int, live bool, simple, regression, median int) {
	TotalWedgies.Set(float64(wedgies))
	if live {
		LiveGames.Set(1)
	} else {
		LiveGames.Set(0)
	}
	PaceForecast.WithLabelValues("simple").Set(float64(simple))
	PaceForecast.WithLabelValues("regression_mean").Set(float64(regression))
	PaceForecast.WithLabelValues("median").Set(float64(median))
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}

// UpdateUptime sets the uptime gauge from the process start time
func UpdateUptime(started time.Time) {
	SystemUptime.Set(time.Since(started).Seconds())
}
