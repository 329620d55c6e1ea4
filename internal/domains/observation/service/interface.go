package service

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	userModel "github.com/inbo/vespa-db-sub000/internal/domains/user/model"
)

// =====================================================
// SYNC SERVICE INTERFACE
// =====================================================
type SyncService interface {
	// Run pulls every feed record modified inside the window and reconciles it
	// with local storage in one transaction. The summary is always returned,
	// also when the run aborts.
	Run(ctx context.Context, opts model.SyncObservationsPayload) (*model.SyncSummary, error)
}

// =====================================================
// GEOJSON SERVICE INTERFACE
// =====================================================
type GeoJSONService interface {
	// Get serves the map payload for params from cache, generating it on a miss
	Get(ctx context.Context, params map[string][]string) ([]byte, error)

	// Generate builds the payload for params without touching the cache
	Generate(ctx context.Context, params map[string][]string) ([]byte, error)

	// Prewarm regenerates and stores the cache entry of one configuration
	Prewarm(ctx context.Context, name string, params map[string][]string) error

	// Rebuild enqueues a pre-warm task per configuration under the rebuild lock.
	// Returns the number of tasks enqueued; zero when another rebuild holds the lock.
	Rebuild(ctx context.Context, reason string) (int, error)

	CacheInvalidator
}

// CacheInvalidator drops every cached GeoJSON payload after a write.
// Failures are logged and never surface to the writer.
type CacheInvalidator interface {
	InvalidateGeoJSON(ctx context.Context, reason string)
}

// =====================================================
// OBSERVATION SERVICE INTERFACE
// =====================================================
type ObservationService interface {
	GetByID(ctx context.Context, id int64) (*model.Observation, error)

	// Reserve claims an open observation for userID
	Reserve(ctx context.Context, id, userID int64) (*model.ReservationResponse, error)

	// Release clears a reservation. Only the holder or staff may release.
	Release(ctx context.Context, id, userID int64, isStaff bool) (*model.ReservationResponse, error)

	// RecordEradication stores the treatment outcome and ends any reservation
	RecordEradication(ctx context.Context, id, userID int64, req model.EradicationRequest) (*model.Observation, error)

	// UpdateLocation moves the observation and recomputes its derived geo fields
	UpdateLocation(ctx context.Context, id, userID int64, req model.LocationUpdateRequest) (*model.Observation, error)

	// Delete removes an observation (admin)
	Delete(ctx context.Context, id int64) error

	// ExpireReservations clears reservations older than days (configured duration when days <= 0)
	ExpireReservations(ctx context.Context, days int) (int64, error)

	// AuditReservationCounts rewrites every drifted user counter
	AuditReservationCounts(ctx context.Context) ([]userModel.CountCorrection, error)
}

// TaskEnqueuer is the part of *asynq.Client the services need.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
