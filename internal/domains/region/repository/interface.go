package repository

import (
	"context"

	"github.com/inbo/vespa-db-sub000/internal/domains/region/model"
)

// RepositoryInterface reads the static reference polygons.
type RepositoryInterface interface {
	// ListShapes returns every polygon of the given kind as EPSG:31370 GeoJSON
	ListShapes(ctx context.Context, kind model.Kind) ([]model.Shape, error)

	ListMunicipalities(ctx context.Context) ([]model.Municipality, error)
}
