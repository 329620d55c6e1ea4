package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inbo/vespa-db-sub000/internal/domains/region/model"
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) RepositoryInterface {
	return &postgresRepository{pool: pool}
}

var shapeQueries = map[model.Kind]string{
	model.KindMunicipality: `
		SELECT id, name, province_id, ST_AsGeoJSON(polygon)
		FROM municipalities
		WHERE polygon IS NOT NULL
		ORDER BY id`,
	model.KindProvince: `
		SELECT id, name, NULL::bigint, ST_AsGeoJSON(polygon)
		FROM provinces
		WHERE polygon IS NOT NULL
		ORDER BY id`,
	model.KindANB: `
		SELECT id, domain, NULL::bigint, ST_AsGeoJSON(polygon)
		FROM anb_areas
		WHERE polygon IS NOT NULL
		ORDER BY id`,
}

// ListShapes implements RepositoryInterface.ListShapes
func (r *postgresRepository) ListShapes(ctx context.Context, kind model.Kind) ([]model.Shape, error) {
	query, ok := shapeQueries[kind]
	if !ok {
		return nil, fmt.Errorf("unknown region kind %q", kind)
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s polygons: %w", kind, err)
	}

	shapes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Shape, error) {
		s := model.Shape{Kind: kind}
		var geojson string
		if err := row.Scan(&s.ID, &s.Name, &s.ProvinceID, &geojson); err != nil {
			return s, err
		}
		s.GeoJSON = []byte(geojson)
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s polygons: %w", kind, err)
	}
	return shapes, nil
}

// ListMunicipalities implements RepositoryInterface.ListMunicipalities
func (r *postgresRepository) ListMunicipalities(ctx context.Context) ([]model.Municipality, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(nis_code, ''), province_id
		FROM municipalities
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query municipalities: %w", err)
	}

	munis, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.Municipality])
	if err != nil {
		return nil, fmt.Errorf("failed to scan municipalities: %w", err)
	}
	return munis, nil
}
