package mapper

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/feed"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
)

// gridLocator assigns municipality 1 west of 4.5°E and 2 east of it; ANB
// covers everything north of 51°N.
type gridLocator struct{ calls int }

func (g *gridLocator) Locate(lon, lat float64) (*int64, *int64, bool) {
	g.calls++
	muni, prov := int64(1), int64(10)
	if lon >= 4.5 {
		muni, prov = 2, 20
	}
	return &muni, &prov, lat >= 51
}

func newMapper(t *testing.T) (*Mapper, *gridLocator) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Brussels")
	require.NoError(t, err)
	g := &gridLocator{}
	return New(g, loc, []string{"bestreden"}), g
}

func ptr[T any](v T) *T { return &v }

func baseRecord() feed.Record {
	return feed.Record{
		ID:       ptr(int64(1)),
		Date:     "2024-01-01",
		Point:    &feed.Point{Coordinates: []float64{4.4, 51.2}},
		Created:  "2024-01-01T00:00:00Z",
		Modified: "2024-01-01T00:00:00Z",
		Attributes: []feed.Attribute{
			{Attribute: 329, Value: "Hoger dan 4 meter"},
		},
	}
}

func TestMap_HeightAndLocalMidnight(t *testing.T) {
	m, _ := newMapper(t)

	obs, err := m.Map(baseRecord(), false)
	require.NoError(t, err)

	assert.Equal(t, model.NestHeightAbove4m, obs.NestHeight)
	// 2024-01-01 00:00 CET
	assert.Equal(t, time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), obs.ObservationDatetime)
	assert.Equal(t, int64(1), *obs.ExternalID)
	assert.Equal(t, model.SourceWaarnemingen, obs.Source)
	assert.Nil(t, obs.EradicationDate)
	assert.True(t, obs.Visible)
}

func TestMap_TimeInSummerIsCEST(t *testing.T) {
	m, _ := newMapper(t)
	rec := baseRecord()
	rec.Date = "2024-07-01"
	rec.Time = ptr("14:30:00")

	obs, err := m.Map(rec, false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 1, 12, 30, 0, 0, time.UTC), obs.ObservationDatetime)
}

func TestMap_TimestampsNaiveAndOffset(t *testing.T) {
	m, _ := newMapper(t)
	rec := baseRecord()
	rec.Created = "2024-01-01T10:00:00"
	rec.Modified = "2024-02-01T10:00:00+00:00"

	obs, err := m.Map(rec, false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), *obs.WNCreatedDatetime)
	assert.Equal(t, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), *obs.WNModifiedDatetime)
}

func TestMap_RejectsMissingRequiredFields(t *testing.T) {
	m, g := newMapper(t)

	cases := map[string]func(*feed.Record){
		"id":       func(r *feed.Record) { r.ID = nil },
		"date":     func(r *feed.Record) { r.Date = "" },
		"point":    func(r *feed.Record) { r.Point = nil },
		"coords":   func(r *feed.Record) { r.Point = &feed.Point{Coordinates: []float64{4.4}} },
		"created":  func(r *feed.Record) { r.Created = " " },
		"modified": func(r *feed.Record) { r.Modified = "" },
		"bad date": func(r *feed.Record) { r.Date = "01/01/2024" },
		"bad time": func(r *feed.Record) { r.Time = ptr("noon") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rec := baseRecord()
			mutate(&rec)

			obs, err := m.Map(rec, false)
			assert.Nil(t, obs)
			assert.ErrorIs(t, err, model.ErrMappingRejected)

			var rejection *model.MappingRejection
			assert.ErrorAs(t, err, &rejection)
		})
	}
	assert.Zero(t, g.calls)
}

func TestMap_EradicationInferredFromNotes(t *testing.T) {
	m, _ := newMapper(t)
	rec := baseRecord()
	rec.Date = "2024-05-10"
	rec.Notes = "Nest werd gisteren Bestreden door de brandweer"

	obs, err := m.Map(rec, false)
	require.NoError(t, err)

	require.NotNil(t, obs.EradicationDate)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), *obs.EradicationDate)
	assert.Equal(t, model.EradicationSuccessful, obs.EradicationResult)
	assert.Equal(t, model.SentinelEradicatorName, obs.EradicatorName)
}

func TestMap_PriorEradicationSuppressesInference(t *testing.T) {
	m, _ := newMapper(t)
	rec := baseRecord()
	rec.Notes = "BESTREDEN"

	obs, err := m.Map(rec, true)
	require.NoError(t, err)
	assert.Nil(t, obs.EradicationDate)
	assert.Empty(t, obs.EradicationResult)
}

func TestMap_TreatedAttributeTakesPrecedence(t *testing.T) {
	m, _ := newMapper(t)

	rec := baseRecord()
	rec.Notes = "bestreden"
	rec.Attributes = append(rec.Attributes, feed.Attribute{Attribute: AttrTreated, Value: "Nee"})
	obs, err := m.Map(rec, false)
	require.NoError(t, err)
	assert.Nil(t, obs.EradicationDate, "explicit 'not treated' overrides the notes")

	rec = baseRecord()
	rec.Attributes = append(rec.Attributes, feed.Attribute{Name: "Behandeld", Value: "ja"})
	first, err := m.Map(rec, false)
	require.NoError(t, err)
	second, err := m.Map(rec, false)
	require.NoError(t, err)

	require.NotNil(t, first.EradicationDate)
	assert.Equal(t, first.EradicationDate, second.EradicationDate)
	assert.Equal(t, model.EradicationSuccessful, first.EradicationResult)
}

func TestMap_EnumsAndUnknownValues(t *testing.T) {
	m, _ := newMapper(t)
	rec := baseRecord()
	rec.Attributes = []feed.Attribute{
		{Attribute: 330, Value: "reusachtig"},
		{Attribute: 331, Value: "Buiten, natuurlijk overdekt"},
		{Name: "Nesttype", Value: "Actief secundair nest"},
		{Name: "Resultaat", Value: "unsuccessful"},
		{Name: "Product", Value: "Permas-D"},
	}

	obs, err := m.Map(rec, false)
	require.NoError(t, err)
	assert.Empty(t, obs.NestSize)
	assert.Equal(t, model.NestLocationOutsideNaturallyCover, obs.NestLocation)
	assert.Equal(t, model.NestTypeActiveSecondary, obs.NestType)
	assert.Equal(t, model.EradicationUnsuccessful, obs.EradicationResult)
	assert.Equal(t, model.ProductPermasD, obs.EradicationProduct)
}

func TestMap_CarriesObserverClusterAndValidation(t *testing.T) {
	m, _ := newMapper(t)
	rec := baseRecord()
	rec.Nest = &feed.Nest{ID: ptr(int64(77))}
	rec.User = &feed.Observer{Name: "Jan", Email: "jan@example.org", PhoneNumber: "0470"}
	rec.ValidationStatus = "P"
	rec.Species = ptr(8)
	rec.Photos = []string{"https://img.test/1.jpg"}

	obs, err := m.Map(rec, false)
	require.NoError(t, err)
	assert.Equal(t, int64(77), *obs.WNClusterID)
	assert.Equal(t, "Jan", obs.ObserverName)
	assert.Equal(t, "jan@example.org", obs.ObserverEmail)
	assert.Equal(t, "0470", obs.ObserverPhoneNumber)
	assert.Equal(t, model.ValidationApprovedAdmin, obs.WNValidationStatus)
	assert.Equal(t, 8, *obs.Species)
	assert.Equal(t, []string{"https://img.test/1.jpg"}, obs.Images)
}

func TestMap_DerivedGeoFieldsFollowLocation(t *testing.T) {
	m, g := newMapper(t)

	for _, coords := range [][]float64{{4.4, 51.2}, {4.6, 50.9}, {3.7, 51.05}} {
		rec := baseRecord()
		rec.Point = &feed.Point{Coordinates: coords}

		obs, err := m.Map(rec, false)
		require.NoError(t, err)

		muni, prov, anb := g.Locate(obs.Location.Lon, obs.Location.Lat)
		assert.Equal(t, *muni, *obs.MunicipalityID)
		assert.Equal(t, *prov, *obs.ProvinceID)
		assert.Equal(t, anb, obs.ANB)
	}
}
