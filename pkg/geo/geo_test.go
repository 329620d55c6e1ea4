package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLambert72_Brussels(t *testing.T) {
	x, y := ToLambert72(4.3517, 50.8466)

	assert.InDelta(t, 149000, x, 1500)
	assert.InDelta(t, 170500, y, 1500)
}

func TestLambert72_RoundTrip(t *testing.T) {
	points := [][2]float64{
		{4.3517, 50.8466},
		{3.7174, 51.0543},
		{5.5797, 50.6326},
		{2.9186, 51.2300},
	}

	for _, p := range points {
		x, y := ToLambert72(p[0], p[1])
		lon, lat := FromLambert72(x, y)
		assert.InDelta(t, p[0], lon, 1e-7)
		assert.InDelta(t, p[1], lat, 1e-7)
	}
}

func square(minX, minY, maxX, maxY float64) Ring {
	return Ring{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}
}

func TestRegion_ContainsWithHole(t *testing.T) {
	outer := square(4.0, 50.0, 5.0, 51.0)
	hole := square(4.4, 50.4, 4.6, 50.6)

	region, err := NewRegion([]Ring{outer, hole}, WGS84)
	require.NoError(t, err)

	assert.True(t, region.Contains(4.2, 50.2))
	assert.False(t, region.Contains(4.5, 50.5), "point inside the hole")
	assert.False(t, region.Contains(5.5, 50.5), "point outside the shell")
}

func TestRegion_ClockwiseRingIsNormalized(t *testing.T) {
	cw := Ring{{4.0, 50.0}, {4.0, 51.0}, {5.0, 51.0}, {5.0, 50.0}}

	region, err := NewRegion([]Ring{cw}, WGS84)
	require.NoError(t, err)

	assert.True(t, region.Contains(4.5, 50.5))
	assert.False(t, region.Contains(-70, 10))
}

func TestNewLambert72Region(t *testing.T) {
	x, y := ToLambert72(4.3517, 50.8466)
	region, err := NewLambert72Region([]Ring{square(x-1000, y-1000, x+1000, y+1000)})
	require.NoError(t, err)

	assert.True(t, region.Contains(4.3517, 50.8466))
	assert.False(t, region.Contains(4.5, 50.8466))
}

func TestNewRegion_Empty(t *testing.T) {
	_, err := NewRegion([]Ring{{{1, 1}, {2, 2}}}, WGS84)
	assert.ErrorIs(t, err, ErrEmptyGeometry)
}

func TestRingsFromGeoJSON(t *testing.T) {
	multi := []byte(`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]],[[[2,2],[3,2],[3,3],[2,2]],[[2.1,2.1],[2.2,2.1],[2.2,2.2],[2.1,2.1]]]]}`)

	rings, err := RingsFromGeoJSON(multi)
	require.NoError(t, err)
	assert.Len(t, rings, 3)
	assert.Equal(t, [2]float64{2, 2}, rings[1][0])

	_, err = RingsFromGeoJSON([]byte(`{"type":"Point","coordinates":[1,2]}`))
	assert.Error(t, err)
}
