package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
)

// ObservationRepository defines data access for observations.
// Methods suffixed WithTx run on the caller's transaction.
type ObservationRepository interface {
	// ===== Sync =====

	// LoadSyncIndex reads the snapshot of every feed-sourced observation in one query
	LoadSyncIndex(ctx context.Context) (model.SyncIndex, error)

	// InsertSyncedWithTx bulk-inserts new feed observations attributed to syncUserID.
	// Rows whose (wn_id, source) already exists are ignored.
	InsertSyncedWithTx(ctx context.Context, tx pgx.Tx, obs []*model.Observation, syncUserID int64, now time.Time) (int64, error)

	// UpdateSyncedWithTx bulk-updates feed fields of rows still last modified by
	// syncUserID and actually different from the staged values
	UpdateSyncedWithTx(ctx context.Context, tx pgx.Tx, obs []*model.Observation, syncUserID int64, now time.Time) (int64, error)

	// AssignClusterWithTx sets wn_cluster_id on sync-owned rows among externalIDs
	AssignClusterWithTx(ctx context.Context, tx pgx.Tx, clusterID int64, externalIDs []int64, syncUserID int64) (int64, error)

	ClusterMembersWithTx(ctx context.Context, tx pgx.Tx, clusterIDs []int64) ([]model.ClusterMember, error)

	// SetVisibilityWithTx applies all changes in one statement
	SetVisibilityWithTx(ctx context.Context, tx pgx.Tx, changes []model.VisibilityChange) (int64, error)

	// ===== Single observation =====

	// FindByID returns ErrObservationNotFound when no row matches
	FindByID(ctx context.Context, id int64) (*model.Observation, error)

	// LockByIDWithTx reads the row with FOR UPDATE
	LockByIDWithTx(ctx context.Context, tx pgx.Tx, id int64) (*model.Observation, error)

	// ReserveWithTx sets both reservation fields when the row is unreserved and
	// not eradicated. Reports whether the row was claimed.
	ReserveWithTx(ctx context.Context, tx pgx.Tx, id, userID int64, at time.Time) (bool, error)

	// ClearReservationWithTx clears both reservation fields
	ClearReservationWithTx(ctx context.Context, tx pgx.Tx, id, modifiedBy int64, at time.Time) error

	// RecordEradicationWithTx stores the eradication and clears the reservation
	RecordEradicationWithTx(ctx context.Context, tx pgx.Tx, id int64, e model.EradicationRequest, modifiedBy int64, at time.Time) error

	// UpdateLocationWithTx moves the row and stores the derived geo fields with it
	UpdateLocationWithTx(ctx context.Context, tx pgx.Tx, id int64, p model.Point, g model.GeoFields, modifiedBy int64, at time.Time) error

	DeleteWithTx(ctx context.Context, tx pgx.Tx, id int64) error

	// ===== Reservation sweep =====

	// ExpireReservations clears expired reservations and half-set pairs in one statement
	ExpireReservations(ctx context.Context, cutoff time.Time) (int64, error)

	// ===== Map =====

	ListMapPoints(ctx context.Context, f model.GeoJSONFilter) ([]model.MapPoint, error)
}
