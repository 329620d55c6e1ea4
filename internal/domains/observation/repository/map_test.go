package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
)

func TestBuildMapPointsQuery_NoFilter(t *testing.T) {
	query, args := buildMapPointsQuery(model.GeoJSONFilter{})

	assert.NotContains(t, query, "WHERE")
	assert.Contains(t, query, "ORDER BY o.id")
	assert.Empty(t, args)
}

func TestBuildMapPointsQuery_NumbersPlaceholdersInOrder(t *testing.T) {
	visible := true
	since := time.Date(2024, 3, 31, 22, 0, 0, 0, time.UTC)
	query, args := buildMapPointsQuery(model.GeoJSONFilter{
		MunicipalityIDs: []int64{4, 5},
		MinObservation:  &since,
		Visible:         &visible,
		NestStatuses:    []model.Status{model.StatusOpen, model.StatusReserved},
	})

	assert.Contains(t, query, "o.municipality_id = ANY($1)")
	assert.Contains(t, query, "o.observation_datetime >= $2")
	assert.Contains(t, query, "o.visible = $3")
	assert.Contains(t, query, "END) = ANY($4)")
	assert.Equal(t, []any{[]int64{4, 5}, since, true, []string{"open", "reserved"}}, args)
}

func TestBuildMapPointsQuery_NestTypes(t *testing.T) {
	query, args := buildMapPointsQuery(model.GeoJSONFilter{NestTypes: []string{"actief_primair_nest"}})

	assert.Contains(t, query, "o.nest_type = ANY($1)")
	assert.Equal(t, []any{[]string{"actief_primair_nest"}}, args)
}
