package model

// GeoJSON FeatureCollection as served on the map endpoint. Geometry is WGS84.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string            `json:"type"`
	Properties FeatureProperties `json:"properties"`
	Geometry   *PointGeometry    `json:"geometry"`
}

type FeatureProperties struct {
	ID     int64  `json:"id"`
	Status Status `json:"status"`
}

type PointGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// MapPoint is the projection of an observation needed for one feature.
type MapPoint struct {
	ID         int64
	Lon, Lat   float64
	Result     EradicationResult
	Reserved   bool
	Eradicated bool
}

// NewFeatureCollection derives the status label of every point.
func NewFeatureCollection(points []MapPoint) *FeatureCollection {
	fc := &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(points)),
	}
	for _, p := range points {
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Properties: FeatureProperties{
				ID:     p.ID,
				Status: DeriveStatus(p.Result, p.Reserved, p.Eradicated),
			},
			Geometry: &PointGeometry{
				Type:        "Point",
				Coordinates: [2]float64{p.Lon, p.Lat},
			},
		})
	}
	return fc
}
