// Package metrics holds the Prometheus collectors shared by the API and the
// worker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal counts sync runs by outcome: success, aborted, auth_failed, failed.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vespadb_sync_runs_total",
			Help: "Observation sync runs by outcome",
		},
		[]string{"outcome"},
	)

	// SyncObservationsTotal counts staged records by operation: created, updated, skipped, rejected.
	SyncObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vespadb_sync_observations_total",
			Help: "Observations processed by the sync reconciler",
		},
		[]string{"operation"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vespadb_sync_duration_seconds",
			Help:    "Duration of a sync run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	FeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vespadb_feed_requests_total",
			Help: "Requests against the upstream observation feed",
		},
		[]string{"endpoint", "status"},
	)

	// GeoJSONCacheRequestsTotal counts on-demand lookups by result: hit, miss.
	GeoJSONCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vespadb_geojson_cache_requests_total",
			Help: "Dynamic GeoJSON cache lookups",
		},
		[]string{"result"},
	)

	GeoJSONGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vespadb_geojson_generation_seconds",
			Help:    "Time spent generating a GeoJSON payload",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vespadb_cache_invalidations_total",
			Help: "Cache invalidations by outcome",
		},
		[]string{"outcome"},
	)

	RebuildLockContentionTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vespadb_geojson_rebuild_lock_contention_total",
			Help: "Rebuild requests skipped because another rebuild held the lock",
		},
	)

	ReservationsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vespadb_reservations_expired_total",
			Help: "Reservations cleared by the expiry sweep",
		},
	)

	ReservationCountCorrectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vespadb_reservation_count_corrections_total",
			Help: "User reservation counters corrected by the audit",
		},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vespadb_exports_total",
			Help: "Export jobs by outcome",
		},
		[]string{"outcome"},
	)

	TasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vespadb_tasks_processed_total",
			Help: "Background tasks processed by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vespadb_task_duration_seconds",
			Help:    "Background task processing time",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"type"},
	)

	DBPoolAcquiredConns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vespadb_db_pool_acquired_connections",
			Help: "Connections currently acquired from the pool",
		},
	)
)

// ObserveSince records the elapsed time since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
