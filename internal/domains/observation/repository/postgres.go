package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
)

// postgresRepository implements ObservationRepository on PostGIS
type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) ObservationRepository {
	return &postgresRepository{pool: pool}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const observationColumns = `
	o.id, o.wn_id, o.source,
	ST_X(o.location), ST_Y(o.location), o.observation_datetime, o.species,
	COALESCE(o.nest_height, ''), COALESCE(o.nest_size, ''), COALESCE(o.nest_location, ''), COALESCE(o.nest_type, ''),
	o.eradication_date, COALESCE(o.eradication_result, ''), COALESCE(o.eradication_product, ''),
	COALESCE(o.eradication_method, ''), COALESCE(o.eradication_problems, ''), COALESCE(o.eradication_aftercare, ''),
	COALESCE(o.eradicator_name, ''),
	o.reserved_by, o.reserved_datetime, o.visible,
	o.municipality_id, o.province_id, o.anb,
	o.created_by, o.modified_by, o.created_datetime, o.modified_datetime,
	o.wn_created_datetime, o.wn_modified_datetime, o.wn_cluster_id, COALESCE(o.wn_validation_status, ''),
	COALESCE(o.notes, ''), COALESCE(o.observer_name, ''), COALESCE(o.observer_email, ''),
	COALESCE(o.observer_phone_number, ''), COALESCE(o.images, '[]'::jsonb)`

func scanObservation(row pgx.Row) (*model.Observation, error) {
	o := &model.Observation{}
	err := row.Scan(
		&o.ID, &o.ExternalID, &o.Source,
		&o.Location.Lon, &o.Location.Lat, &o.ObservationDatetime, &o.Species,
		&o.NestHeight, &o.NestSize, &o.NestLocation, &o.NestType,
		&o.EradicationDate, &o.EradicationResult, &o.EradicationProduct,
		&o.EradicationMethod, &o.EradicationProblems, &o.EradicationAftercare,
		&o.EradicatorName,
		&o.ReservedBy, &o.ReservedDatetime, &o.Visible,
		&o.MunicipalityID, &o.ProvinceID, &o.ANB,
		&o.CreatedBy, &o.ModifiedBy, &o.CreatedDatetime, &o.ModifiedDatetime,
		&o.WNCreatedDatetime, &o.WNModifiedDatetime, &o.WNClusterID, &o.WNValidationStatus,
		&o.Notes, &o.ObserverName, &o.ObserverEmail,
		&o.ObserverPhoneNumber, &o.Images,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrObservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan observation: %w", err)
	}
	return o, nil
}

func findByID(ctx context.Context, q rowQuerier, id int64, forUpdate bool) (*model.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations o WHERE o.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanObservation(q.QueryRow(ctx, query, id))
}

// FindByID implements ObservationRepository.FindByID
func (r *postgresRepository) FindByID(ctx context.Context, id int64) (*model.Observation, error) {
	return findByID(ctx, r.pool, id, false)
}

// LockByIDWithTx implements ObservationRepository.LockByIDWithTx
func (r *postgresRepository) LockByIDWithTx(ctx context.Context, tx pgx.Tx, id int64) (*model.Observation, error) {
	return findByID(ctx, tx, id, true)
}

// ReserveWithTx implements ObservationRepository.ReserveWithTx
func (r *postgresRepository) ReserveWithTx(ctx context.Context, tx pgx.Tx, id, userID int64, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE observations
		SET reserved_by = $2, reserved_datetime = $3, modified_by = $2, modified_datetime = $3
		WHERE id = $1
		  AND reserved_by IS NULL
		  AND reserved_datetime IS NULL
		  AND eradication_date IS NULL
	`, id, userID, at)
	if err != nil {
		return false, fmt.Errorf("failed to reserve observation %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClearReservationWithTx implements ObservationRepository.ClearReservationWithTx
func (r *postgresRepository) ClearReservationWithTx(ctx context.Context, tx pgx.Tx, id, modifiedBy int64, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE observations
		SET reserved_by = NULL, reserved_datetime = NULL, modified_by = $2, modified_datetime = $3
		WHERE id = $1
	`, id, modifiedBy, at)
	if err != nil {
		return fmt.Errorf("failed to release observation %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrObservationNotFound
	}
	return nil
}

// RecordEradicationWithTx implements ObservationRepository.RecordEradicationWithTx
func (r *postgresRepository) RecordEradicationWithTx(ctx context.Context, tx pgx.Tx, id int64, e model.EradicationRequest, modifiedBy int64, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE observations
		SET eradication_date = $2,
		    eradication_result = $3,
		    eradication_product = NULLIF($4, ''),
		    eradication_method = NULLIF($5, ''),
		    eradication_problems = NULLIF($6, ''),
		    eradication_aftercare = NULLIF($7, ''),
		    eradicator_name = NULLIF($8, ''),
		    reserved_by = NULL,
		    reserved_datetime = NULL,
		    modified_by = $9,
		    modified_datetime = $10
		WHERE id = $1
	`, id, e.Date(), e.EradicationResult,
		string(model.LookupEradicationProduct(e.EradicationProduct)),
		string(model.LookupEradicationMethod(e.EradicationMethod)),
		string(model.LookupEradicationProblem(e.EradicationProblems)),
		string(model.LookupEradicationAftercare(e.EradicationAftercare)),
		e.EradicatorName, modifiedBy, at)
	if err != nil {
		return fmt.Errorf("failed to record eradication on %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrObservationNotFound
	}
	return nil
}

// UpdateLocationWithTx implements ObservationRepository.UpdateLocationWithTx
func (r *postgresRepository) UpdateLocationWithTx(ctx context.Context, tx pgx.Tx, id int64, p model.Point, g model.GeoFields, modifiedBy int64, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE observations
		SET location = ST_SetSRID(ST_MakePoint($2, $3), 4326),
		    municipality_id = $4,
		    province_id = $5,
		    anb = $6,
		    modified_by = $7,
		    modified_datetime = $8
		WHERE id = $1
	`, id, p.Lon, p.Lat, g.MunicipalityID, g.ProvinceID, g.ANB, modifiedBy, at)
	if err != nil {
		return fmt.Errorf("failed to move observation %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrObservationNotFound
	}
	return nil
}

// DeleteWithTx implements ObservationRepository.DeleteWithTx
func (r *postgresRepository) DeleteWithTx(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM observations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete observation %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrObservationNotFound
	}
	return nil
}

// ExpireReservations implements ObservationRepository.ExpireReservations
func (r *postgresRepository) ExpireReservations(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE observations
		SET reserved_by = NULL, reserved_datetime = NULL
		WHERE (reserved_by IS NOT NULL AND reserved_datetime <= $1)
		   OR (reserved_by IS NULL AND reserved_datetime IS NOT NULL)
		   OR (reserved_by IS NOT NULL AND reserved_datetime IS NULL)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}
