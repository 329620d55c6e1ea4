package geo

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/golang/geo/s2"
)

var ErrEmptyGeometry = errors.New("geometry has no usable rings")

// Ring is a closed or open sequence of [x, y] coordinates.
type Ring [][2]float64

// Projection maps a stored coordinate pair to WGS84 longitude/latitude.
type Projection func(x, y float64) (lon, lat float64)

// WGS84 is the identity projection for coordinates already in lon/lat.
func WGS84(x, y float64) (float64, float64) { return x, y }

// Region is a spherical polygon (with holes) supporting point containment.
type Region struct {
	polygon *s2.Polygon
	bound   s2.Rect
}

// NewRegion builds a Region from rings expressed in the given projection.
// Nesting decides which rings are holes.
func NewRegion(rings []Ring, project Projection) (*Region, error) {
	loops := make([]*s2.Loop, 0, len(rings))
	for _, ring := range rings {
		pts := ringPoints(ring, project)
		if len(pts) < 3 {
			continue
		}
		loop := s2.LoopFromPoints(pts)
		loop.Normalize()
		loops = append(loops, loop)
	}
	if len(loops) == 0 {
		return nil, ErrEmptyGeometry
	}

	poly := s2.PolygonFromLoops(loops)
	return &Region{polygon: poly, bound: poly.RectBound()}, nil
}

// NewLambert72Region builds a Region from EPSG:31370 rings.
func NewLambert72Region(rings []Ring) (*Region, error) {
	return NewRegion(rings, FromLambert72)
}

// Contains reports whether the WGS84 point lies inside the region.
func (r *Region) Contains(lon, lat float64) bool {
	ll := s2.LatLngFromDegrees(lat, lon)
	if !r.bound.ContainsLatLng(ll) {
		return false
	}
	return r.polygon.ContainsPoint(s2.PointFromLatLng(ll))
}

func ringPoints(ring Ring, project Projection) []s2.Point {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}
	pts := make([]s2.Point, 0, n)
	for i := 0; i < n; i++ {
		lon, lat := project(ring[i][0], ring[i][1])
		p := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
		if len(pts) > 0 && pts[len(pts)-1] == p {
			continue
		}
		pts = append(pts, p)
	}
	return pts
}

type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// RingsFromGeoJSON flattens a Polygon or MultiPolygon GeoJSON geometry into
// its rings.
func RingsFromGeoJSON(data []byte) ([]Ring, error) {
	var g geoJSONGeometry
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}

	switch g.Type {
	case "Polygon":
		var poly []Ring
		if err := json.Unmarshal(g.Coordinates, &poly); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		return poly, nil
	case "MultiPolygon":
		var multi [][]Ring
		if err := json.Unmarshal(g.Coordinates, &multi); err != nil {
			return nil, fmt.Errorf("decode multipolygon: %w", err)
		}
		var rings []Ring
		for _, poly := range multi {
			rings = append(rings, poly...)
		}
		return rings, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}
