package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
)

// stagingColumns is the column order of the temporary staging tables fed by CopyFrom.
var stagingColumns = []string{
	"wn_id", "source", "lon", "lat", "observation_datetime", "species",
	"nest_height", "nest_size", "nest_location", "nest_type",
	"eradication_date", "eradication_result", "eradication_product",
	"eradication_method", "eradication_problems", "eradicator_name",
	"visible", "municipality_id", "province_id", "anb",
	"wn_created_datetime", "wn_modified_datetime", "wn_cluster_id", "wn_validation_status",
	"notes", "observer_name", "observer_email", "observer_phone_number", "images",
}

const stagingDDL = `
	CREATE TEMP TABLE IF NOT EXISTS %s (
		wn_id                 bigint NOT NULL,
		source                text NOT NULL,
		lon                   double precision NOT NULL,
		lat                   double precision NOT NULL,
		observation_datetime  timestamptz NOT NULL,
		species               integer,
		nest_height           text,
		nest_size             text,
		nest_location         text,
		nest_type             text,
		eradication_date      date,
		eradication_result    text,
		eradication_product   text,
		eradication_method    text,
		eradication_problems  text,
		eradicator_name       text,
		visible               boolean NOT NULL,
		municipality_id       bigint,
		province_id           bigint,
		anb                   boolean NOT NULL,
		wn_created_datetime   timestamptz,
		wn_modified_datetime  timestamptz,
		wn_cluster_id         bigint,
		wn_validation_status  text,
		notes                 text,
		observer_name         text,
		observer_email        text,
		observer_phone_number text,
		images                text NOT NULL
	) ON COMMIT DROP`

func nullString[T ~string](v T) *string {
	if v == "" {
		return nil
	}
	s := string(v)
	return &s
}

// stageObservations prepares an empty transaction-scoped staging table and
// copies obs into it. Repeated calls within one transaction reuse the table.
func stageObservations(ctx context.Context, tx pgx.Tx, table string, obs []*model.Observation) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf(stagingDDL, table)); err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}
	if _, err := tx.Exec(ctx, "TRUNCATE "+pgx.Identifier{table}.Sanitize()); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", table, err)
	}

	rows := make([][]any, 0, len(obs))
	for _, o := range obs {
		images := o.Images
		if images == nil {
			images = []string{}
		}
		imagesJSON, err := json.Marshal(images)
		if err != nil {
			return fmt.Errorf("failed to encode images: %w", err)
		}
		rows = append(rows, []any{
			o.ExternalID, o.Source, o.Location.Lon, o.Location.Lat, o.ObservationDatetime, o.Species,
			nullString(o.NestHeight), nullString(o.NestSize), nullString(o.NestLocation), nullString(o.NestType),
			o.EradicationDate, nullString(o.EradicationResult), nullString(o.EradicationProduct),
			nullString(o.EradicationMethod), nullString(o.EradicationProblems), nullString(o.EradicatorName),
			o.Visible, o.MunicipalityID, o.ProvinceID, o.ANB,
			o.WNCreatedDatetime, o.WNModifiedDatetime, o.WNClusterID, nullString(o.WNValidationStatus),
			nullString(o.Notes), nullString(o.ObserverName), nullString(o.ObserverEmail),
			nullString(o.ObserverPhoneNumber), string(imagesJSON),
		})
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, stagingColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("failed to copy into %s: %w", table, err)
	}
	return nil
}

// LoadSyncIndex implements ObservationRepository.LoadSyncIndex
func (r *postgresRepository) LoadSyncIndex(ctx context.Context) (model.SyncIndex, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT wn_id, id, modified_by, wn_modified_datetime, eradication_date IS NOT NULL, wn_cluster_id
		FROM observations
		WHERE wn_id IS NOT NULL AND source = $1
	`, model.SourceWaarnemingen)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync index: %w", err)
	}
	defer rows.Close()

	index := make(model.SyncIndex)
	for rows.Next() {
		var wnID int64
		var s model.SyncState
		if err := rows.Scan(&wnID, &s.ID, &s.ModifiedBy, &s.WNModifiedDatetime, &s.HasEradicationDate, &s.WNClusterID); err != nil {
			return nil, fmt.Errorf("failed to scan sync index: %w", err)
		}
		index[wnID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sync index: %w", err)
	}
	return index, nil
}

// InsertSyncedWithTx implements ObservationRepository.InsertSyncedWithTx
func (r *postgresRepository) InsertSyncedWithTx(ctx context.Context, tx pgx.Tx, obs []*model.Observation, syncUserID int64, now time.Time) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	if err := stageObservations(ctx, tx, "sync_create_staging", obs); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO observations (
			wn_id, source, location, observation_datetime, species,
			nest_height, nest_size, nest_location, nest_type,
			eradication_date, eradication_result, eradication_product,
			eradication_method, eradication_problems, eradicator_name,
			visible, municipality_id, province_id, anb,
			wn_created_datetime, wn_modified_datetime, wn_cluster_id, wn_validation_status,
			notes, observer_name, observer_email, observer_phone_number, images,
			created_by, modified_by, created_datetime, modified_datetime
		)
		SELECT
			s.wn_id, s.source, ST_SetSRID(ST_MakePoint(s.lon, s.lat), 4326), s.observation_datetime, s.species,
			s.nest_height, s.nest_size, s.nest_location, s.nest_type,
			s.eradication_date, s.eradication_result, s.eradication_product,
			s.eradication_method, s.eradication_problems, s.eradicator_name,
			s.visible, s.municipality_id, s.province_id, s.anb,
			s.wn_created_datetime, s.wn_modified_datetime, s.wn_cluster_id, s.wn_validation_status,
			s.notes, s.observer_name, s.observer_email, s.observer_phone_number, s.images::jsonb,
			$1, $1, $2, $2
		FROM sync_create_staging s
		ON CONFLICT (wn_id, source) DO NOTHING
	`, syncUserID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert synced observations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateSyncedWithTx implements ObservationRepository.UpdateSyncedWithTx.
// Eradication fields already on the row are kept when the staged record carries none.
func (r *postgresRepository) UpdateSyncedWithTx(ctx context.Context, tx pgx.Tx, obs []*model.Observation, syncUserID int64, now time.Time) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	if err := stageObservations(ctx, tx, "sync_update_staging", obs); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE observations o
		SET location = ST_SetSRID(ST_MakePoint(s.lon, s.lat), 4326),
		    observation_datetime = s.observation_datetime,
		    species = s.species,
		    nest_height = s.nest_height,
		    nest_size = s.nest_size,
		    nest_location = s.nest_location,
		    nest_type = s.nest_type,
		    eradication_date = COALESCE(o.eradication_date, s.eradication_date),
		    eradication_result = COALESCE(o.eradication_result, s.eradication_result),
		    eradication_product = COALESCE(o.eradication_product, s.eradication_product),
		    eradication_method = COALESCE(o.eradication_method, s.eradication_method),
		    eradication_problems = COALESCE(o.eradication_problems, s.eradication_problems),
		    eradicator_name = COALESCE(o.eradicator_name, s.eradicator_name),
		    municipality_id = s.municipality_id,
		    province_id = s.province_id,
		    anb = s.anb,
		    wn_created_datetime = s.wn_created_datetime,
		    wn_modified_datetime = s.wn_modified_datetime,
		    wn_cluster_id = COALESCE(s.wn_cluster_id, o.wn_cluster_id),
		    wn_validation_status = s.wn_validation_status,
		    notes = s.notes,
		    observer_name = s.observer_name,
		    observer_email = s.observer_email,
		    observer_phone_number = s.observer_phone_number,
		    images = s.images::jsonb,
		    modified_datetime = $2
		FROM sync_update_staging s
		WHERE o.wn_id = s.wn_id
		  AND o.source = s.source
		  AND o.modified_by = $1
		  AND (
		    (o.wn_modified_datetime, o.observation_datetime, ST_X(o.location), ST_Y(o.location),
		     o.nest_height, o.nest_size, o.nest_location, o.nest_type,
		     o.wn_validation_status, o.notes, o.images)
		    IS DISTINCT FROM
		    (s.wn_modified_datetime, s.observation_datetime, s.lon, s.lat,
		     s.nest_height, s.nest_size, s.nest_location, s.nest_type,
		     s.wn_validation_status, s.notes, s.images::jsonb)
		    OR (o.eradication_date IS NULL AND s.eradication_date IS NOT NULL)
		  )
	`, syncUserID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to update synced observations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AssignClusterWithTx implements ObservationRepository.AssignClusterWithTx
func (r *postgresRepository) AssignClusterWithTx(ctx context.Context, tx pgx.Tx, clusterID int64, externalIDs []int64, syncUserID int64) (int64, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	tag, err := tx.Exec(ctx, `
		UPDATE observations
		SET wn_cluster_id = $1
		WHERE source = $2
		  AND wn_id = ANY($3)
		  AND modified_by = $4
		  AND wn_cluster_id IS DISTINCT FROM $1
	`, clusterID, model.SourceWaarnemingen, externalIDs, syncUserID)
	if err != nil {
		return 0, fmt.Errorf("failed to assign cluster %d: %w", clusterID, err)
	}
	return tag.RowsAffected(), nil
}

// ClusterMembersWithTx implements ObservationRepository.ClusterMembersWithTx
func (r *postgresRepository) ClusterMembersWithTx(ctx context.Context, tx pgx.Tx, clusterIDs []int64) ([]model.ClusterMember, error) {
	if len(clusterIDs) == 0 {
		return nil, nil
	}
	rows, err := tx.Query(ctx, `
		SELECT id, wn_cluster_id, observation_datetime, visible
		FROM observations
		WHERE wn_cluster_id = ANY($1)
		FOR UPDATE
	`, clusterIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster members: %w", err)
	}

	members, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.ClusterMember])
	if err != nil {
		return nil, fmt.Errorf("failed to scan cluster members: %w", err)
	}
	return members, nil
}

// SetVisibilityWithTx implements ObservationRepository.SetVisibilityWithTx
func (r *postgresRepository) SetVisibilityWithTx(ctx context.Context, tx pgx.Tx, changes []model.VisibilityChange) (int64, error) {
	if len(changes) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(changes))
	flags := make([]bool, len(changes))
	for i, c := range changes {
		ids[i] = c.ID
		flags[i] = c.Visible
	}

	tag, err := tx.Exec(ctx, `
		UPDATE observations o
		SET visible = v.visible
		FROM unnest($1::bigint[], $2::boolean[]) AS v(id, visible)
		WHERE o.id = v.id
	`, ids, flags)
	if err != nil {
		return 0, fmt.Errorf("failed to update visibility: %w", err)
	}
	return tag.RowsAffected(), nil
}
