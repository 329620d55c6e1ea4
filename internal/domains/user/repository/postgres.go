package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inbo/vespa-db-sub000/internal/domains/user/model"
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, username, COALESCE(email, ''), user_type, is_staff, reservation_count, date_joined
		FROM users
		WHERE id = $1
	`
	u := &model.User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.Email, &u.UserType, &u.IsStaff, &u.ReservationCount, &u.DateJoined,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %d: %w", id, err)
	}
	return u, nil
}

func (r *postgresRepository) EnsureSystemUser(ctx context.Context, username string, userType model.UserType) (int64, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO users (username, user_type, is_staff, reservation_count, date_joined)
		VALUES ($1, $2, FALSE, 0, NOW())
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING id
	`
	var id int64
	if err := r.pool.QueryRow(ctx, query, username, userType).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to ensure system user %q: %w", username, err)
	}
	return id, nil
}

func (r *postgresRepository) IncrementReservationCountWithTx(ctx context.Context, tx pgx.Tx, userID int64, limit int) (bool, error) {
	var count int
	err := tx.QueryRow(ctx, `
		UPDATE users
		SET reservation_count = reservation_count + 1
		WHERE id = $1 AND reservation_count < $2
		RETURNING reservation_count
	`, userID, limit).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the user is gone or the limit is reached.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return false, fmt.Errorf("failed to check user %d: %w", userID, err)
		}
		if !exists {
			return false, model.ErrUserNotFound
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to increment reservation count: %w", err)
	}
	return true, nil
}

func (r *postgresRepository) DecrementReservationCountWithTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE users SET reservation_count = GREATEST(reservation_count - 1, 0) WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to decrement reservation count: %w", err)
	}
	return nil
}

func (r *postgresRepository) StoredReservationCountsWithTx(ctx context.Context, tx pgx.Tx) (map[int64]int, error) {
	return collectCounts(ctx, tx, `SELECT id, reservation_count FROM users`)
}

func (r *postgresRepository) ActualReservationCountsWithTx(ctx context.Context, tx pgx.Tx) (map[int64]int, error) {
	return collectCounts(ctx, tx, `
		SELECT reserved_by, COUNT(*)::int
		FROM observations
		WHERE reserved_by IS NOT NULL
		  AND eradication_date IS NULL
		GROUP BY reserved_by
	`)
}

func (r *postgresRepository) SetReservationCountsWithTx(ctx context.Context, tx pgx.Tx, counts []model.CountCorrection) (int64, error) {
	if len(counts) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(counts))
	values := make([]int32, len(counts))
	for i, c := range counts {
		ids[i] = c.UserID
		values[i] = int32(c.After)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users u
		SET reservation_count = v.count
		FROM unnest($1::bigint[], $2::int[]) AS v(id, count)
		WHERE u.id = v.id
	`, ids, values)
	if err != nil {
		return 0, fmt.Errorf("failed to set reservation counts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectCounts(ctx context.Context, tx pgx.Tx, query string) (map[int64]int, error) {
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservation counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan reservation count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
