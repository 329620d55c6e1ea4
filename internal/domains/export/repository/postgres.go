package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inbo/vespa-db-sub000/internal/domains/export/model"
	obsModel "github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	obsRepo "github.com/inbo/vespa-db-sub000/internal/domains/observation/repository"
	"github.com/inbo/vespa-db-sub000/internal/infrastructure/database"
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) ExportRepository {
	return &postgresRepository{pool: pool}
}

const exportColumns = `id, user_id, full_access, filters, format, status, object_key,
	row_count, error_message, created_at, completed_at`

func scanExport(row pgx.Row) (*model.Export, error) {
	e := &model.Export{}
	err := row.Scan(&e.ID, &e.UserID, &e.IsStaff, &e.Filters, &e.Format, &e.Status, &e.ObjectKey,
		&e.RowCount, &e.ErrorMessage, &e.CreatedAt, &e.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrExportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan export: %w", err)
	}
	return e, nil
}

func (r *postgresRepository) Create(ctx context.Context, e *model.Export) error {
	query := `
		INSERT INTO exports (id, user_id, full_access, filters, format, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, e.ID, e.UserID, e.IsStaff, e.Filters, e.Format, e.Status, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}
	return nil
}

func (r *postgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Export, error) {
	query := `SELECT ` + exportColumns + ` FROM exports WHERE id = $1`
	return scanExport(r.pool.QueryRow(ctx, query, id))
}

func (r *postgresRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.updateStatus(ctx, `UPDATE exports SET status = 'processing', error_message = NULL WHERE id = $1`, id)
}

func (r *postgresRepository) MarkCompleted(ctx context.Context, id uuid.UUID, objectKey string, rowCount int) error {
	return r.updateStatus(ctx, `
		UPDATE exports
		SET status = 'completed', object_key = $2, row_count = $3, completed_at = NOW(), error_message = NULL
		WHERE id = $1`, id, objectKey, rowCount)
}

func (r *postgresRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.updateStatus(ctx, `
		UPDATE exports SET status = 'failed', error_message = $2, completed_at = NOW()
		WHERE id = $1`, id, message)
}

func (r *postgresRepository) updateStatus(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update export: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrExportNotFound
	}
	return nil
}

func (r *postgresRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Export, error) {
	query := `SELECT ` + exportColumns + ` FROM exports WHERE created_at < $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	var out []*model.Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *postgresRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM exports WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete exports: %w", err)
	}
	return tag.RowsAffected(), nil
}

// buildRowsQuery selects the export columns for observations matching f.
func buildRowsQuery(f obsModel.GeoJSONFilter) (string, []any) {
	where, args := obsRepo.FilterClause(f)
	query := `
	SELECT o.id, o.created_datetime, o.modified_datetime,
		ST_Y(ST_Transform(o.location, 4326)), ST_X(ST_Transform(o.location, 4326)),
		o.source, COALESCE(o.nest_height, ''), COALESCE(o.nest_size, ''),
		COALESCE(o.nest_location, ''), COALESCE(o.nest_type, ''),
		o.observation_datetime, COALESCE(p.name, ''), o.eradication_date, COALESCE(m.name, ''),
		COALESCE(o.images, '[]'::jsonb), o.anb, COALESCE(o.notes, ''),
		COALESCE(o.eradication_result, ''), o.wn_id, COALESCE(o.wn_validation_status, ''),
		(o.reserved_by IS NOT NULL AND o.reserved_datetime IS NOT NULL)
	FROM observations o
	LEFT JOIN municipalities m ON m.id = o.municipality_id
	LEFT JOIN provinces p ON p.id = o.province_id
	` + where + `
	ORDER BY o.id`
	return query, args
}

func (r *postgresRepository) FetchRows(ctx context.Context, f obsModel.GeoJSONFilter, timeout time.Duration, policy database.RetryPolicy) ([]model.Row, error) {
	query, args := buildRowsQuery(f)

	var out []model.Row
	err := database.WithRecycledConn(ctx, r.pool, policy, func(ctx context.Context, conn *pgxpool.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		// SET LOCAL scope: the timeout ends with the transaction.
		if _, err := tx.Exec(ctx, `SELECT set_config('statement_timeout', $1, true)`,
			fmt.Sprintf("%d", timeout.Milliseconds())); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByPos[model.Row])
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch export rows: %w", err)
	}
	return out, nil
}
