package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
)

// statusExpr mirrors model.DeriveStatus.
const statusExpr = `CASE
		WHEN o.eradication_result = 'successful' THEN 'eradicated'
		WHEN o.eradication_result IS NOT NULL THEN 'visited'
		WHEN o.reserved_by IS NOT NULL AND o.reserved_datetime IS NOT NULL THEN 'reserved'
		WHEN o.eradication_date IS NOT NULL THEN 'default'
		ELSE 'open'
	END`

// mapQuery accumulates WHERE clauses with positional arguments.
type mapQuery struct {
	where []string
	args  []any
}

func (q *mapQuery) add(clause string, arg any) {
	q.args = append(q.args, arg)
	q.where = append(q.where, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(q.args))))
}

// FilterClause renders f as a WHERE clause over the observations table
// aliased "o", numbering placeholders from $1. Empty when f selects everything.
func FilterClause(f model.GeoJSONFilter) (string, []any) {
	q := &mapQuery{}

	if len(f.MunicipalityIDs) > 0 {
		q.add("o.municipality_id = ANY(?)", f.MunicipalityIDs)
	}
	if len(f.ProvinceIDs) > 0 {
		q.add("o.province_id = ANY(?)", f.ProvinceIDs)
	}
	if f.MinCreated != nil {
		q.add("o.created_datetime >= ?", *f.MinCreated)
	}
	if f.MaxCreated != nil {
		q.add("o.created_datetime <= ?", *f.MaxCreated)
	}
	if f.MinModified != nil {
		q.add("o.modified_datetime >= ?", *f.MinModified)
	}
	if f.MaxModified != nil {
		q.add("o.modified_datetime <= ?", *f.MaxModified)
	}
	if f.MinObservation != nil {
		q.add("o.observation_datetime >= ?", *f.MinObservation)
	}
	if f.MaxObservation != nil {
		q.add("o.observation_datetime <= ?", *f.MaxObservation)
	}
	if f.ANB != nil {
		q.add("o.anb = ?", *f.ANB)
	}
	if f.Visible != nil {
		q.add("o.visible = ?", *f.Visible)
	}
	if len(f.NestTypes) > 0 {
		q.add("o.nest_type = ANY(?)", f.NestTypes)
	}
	if len(f.NestStatuses) > 0 {
		statuses := make([]string, len(f.NestStatuses))
		for i, s := range f.NestStatuses {
			statuses[i] = string(s)
		}
		q.add("("+statusExpr+") = ANY(?)", statuses)
	}

	if len(q.where) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(q.where, "\n\t  AND "), q.args
}

// buildMapPointsQuery renders the filtered point query for f.
func buildMapPointsQuery(f model.GeoJSONFilter) (string, []any) {
	where, args := FilterClause(f)

	var sb strings.Builder
	sb.WriteString(`SELECT o.id,
		ST_X(ST_Transform(o.location, 4326)),
		ST_Y(ST_Transform(o.location, 4326)),
		COALESCE(o.eradication_result, ''),
		(o.reserved_by IS NOT NULL AND o.reserved_datetime IS NOT NULL),
		(o.eradication_date IS NOT NULL)
	FROM observations o`)
	if where != "" {
		sb.WriteString("\n\t")
		sb.WriteString(where)
	}
	sb.WriteString("\n\tORDER BY o.id")
	return sb.String(), args
}

// ListMapPoints implements ObservationRepository.ListMapPoints
func (r *postgresRepository) ListMapPoints(ctx context.Context, f model.GeoJSONFilter) ([]model.MapPoint, error) {
	query, args := buildMapPointsQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query map points: %w", err)
	}

	points, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.MapPoint])
	if err != nil {
		return nil, fmt.Errorf("failed to scan map points: %w", err)
	}
	return points, nil
}
