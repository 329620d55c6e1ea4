package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/inbo/vespa-db-sub000/internal/domains/user/model"
)

// UserRepository covers the parts of the users table the observation
// workflows touch: system identities and reservation counters.
type UserRepository interface {
	// FindByID returns ErrUserNotFound when no user matches
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// EnsureSystemUser returns the id of the named system account, creating it on first use
	EnsureSystemUser(ctx context.Context, username string, userType model.UserType) (int64, error)

	// IncrementReservationCountWithTx bumps the counter unless it already reached limit.
	// Reports whether the counter was incremented.
	IncrementReservationCountWithTx(ctx context.Context, tx pgx.Tx, userID int64, limit int) (bool, error)

	// DecrementReservationCountWithTx never goes below zero
	DecrementReservationCountWithTx(ctx context.Context, tx pgx.Tx, userID int64) error

	// StoredReservationCountsWithTx returns every user's denormalized counter
	StoredReservationCountsWithTx(ctx context.Context, tx pgx.Tx) (map[int64]int, error)

	// ActualReservationCountsWithTx counts active, non-eradicated reservations per holder in one aggregate query
	ActualReservationCountsWithTx(ctx context.Context, tx pgx.Tx) (map[int64]int, error)

	// SetReservationCountsWithTx overwrites the given counters in one statement
	SetReservationCountsWithTx(ctx context.Context, tx pgx.Tx, counts []model.CountCorrection) (int64, error)
}
