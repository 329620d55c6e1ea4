package service

import (
	"context"
	"fmt"

	"github.com/inbo/vespa-db-sub000/internal/domains/region/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/region/repository"
	"github.com/inbo/vespa-db-sub000/pkg/geo"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// Area is a region polygon ready for containment tests.
type Area struct {
	ID         int64
	ProvinceID *int64
	Region     *geo.Region
}

// Locator answers point-in-polygon questions against the reference polygons.
// It is read-only after construction and safe for concurrent use.
type Locator struct {
	municipalities []Area
	provinces      []Area
	anb            []Area
}

func NewLocator(municipalities, provinces, anb []Area) *Locator {
	return &Locator{municipalities: municipalities, provinces: provinces, anb: anb}
}

// LoadLocator reads every reference polygon and projects it from EPSG:31370.
// Unusable geometries are skipped with a warning.
func LoadLocator(ctx context.Context, repo repository.RepositoryInterface) (*Locator, error) {
	load := func(kind model.Kind) ([]Area, error) {
		shapes, err := repo.ListShapes(ctx, kind)
		if err != nil {
			return nil, err
		}
		areas := make([]Area, 0, len(shapes))
		for _, s := range shapes {
			rings, err := geo.RingsFromGeoJSON(s.GeoJSON)
			if err == nil {
				var region *geo.Region
				if region, err = geo.NewLambert72Region(rings); err == nil {
					areas = append(areas, Area{ID: s.ID, ProvinceID: s.ProvinceID, Region: region})
					continue
				}
			}
			logger.Warn("Skipping unusable region polygon", map[string]interface{}{
				"kind":  string(kind),
				"id":    s.ID,
				"name":  s.Name,
				"error": err.Error(),
			})
		}
		return areas, nil
	}

	munis, err := load(model.KindMunicipality)
	if err != nil {
		return nil, fmt.Errorf("load municipalities: %w", err)
	}
	provinces, err := load(model.KindProvince)
	if err != nil {
		return nil, fmt.Errorf("load provinces: %w", err)
	}
	anb, err := load(model.KindANB)
	if err != nil {
		return nil, fmt.Errorf("load anb areas: %w", err)
	}
	if len(munis) == 0 && len(provinces) == 0 {
		return nil, model.ErrNoRegions
	}

	logger.Info("Region polygons loaded", map[string]interface{}{
		"municipalities": len(munis),
		"provinces":      len(provinces),
		"anb_areas":      len(anb),
	})
	return NewLocator(munis, provinces, anb), nil
}

// Locate returns the municipality and province containing the point and
// whether it lies in an ANB area. The province comes from the municipality
// when it has one.
func (l *Locator) Locate(lon, lat float64) (municipalityID, provinceID *int64, anb bool) {
	if m := find(l.municipalities, lon, lat); m != nil {
		id := m.ID
		municipalityID = &id
		if m.ProvinceID != nil {
			pid := *m.ProvinceID
			provinceID = &pid
		}
	}
	if provinceID == nil {
		if p := find(l.provinces, lon, lat); p != nil {
			id := p.ID
			provinceID = &id
		}
	}
	anb = find(l.anb, lon, lat) != nil
	return municipalityID, provinceID, anb
}

func find(areas []Area, lon, lat float64) *Area {
	for i := range areas {
		if areas[i].Region.Contains(lon, lat) {
			return &areas[i]
		}
	}
	return nil
}
