package model

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRow() Row {
	wnID := int64(987)
	erad := time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)
	return Row{
		ID:                  12,
		CreatedDatetime:     time.Date(2024, 5, 1, 8, 30, 15, 999, time.UTC),
		ModifiedDatetime:    time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
		Lat:                 51.0543210987,
		Lon:                 3.7174243,
		Source:              "waarnemingen.be",
		NestHeight:          "hoger_dan_4_meter",
		ObservationDatetime: time.Date(2024, 4, 30, 22, 0, 0, 0, time.UTC),
		Province:            "Oost-Vlaanderen",
		EradicationDate:     &erad,
		Municipality:        "Gent",
		Images:              []string{"a.jpg", "b.jpg"},
		ANB:                 true,
		Notes:               "achter de schuur",
		EradicationResult:   "successful",
		ExternalID:          &wnID,
	}
}

func column(t *testing.T, values []string, name string) string {
	t.Helper()
	for i, h := range Headers {
		if h == name {
			return values[i]
		}
	}
	require.Failf(t, "unknown column", name)
	return ""
}

func brussels(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Brussels")
	require.NoError(t, err)
	return loc
}

func TestRowValues_Full(t *testing.T) {
	v := sampleRow().Values(true, brussels(t))

	require.Len(t, v, len(Headers))
	assert.Equal(t, "12", column(t, v, "id"))
	assert.Equal(t, "2024-05-01T10:30:15+02:00", column(t, v, "created_datetime"))
	assert.Equal(t, "2024-05-01T00:00:00+02:00", column(t, v, "observation_datetime"))
	assert.Equal(t, "51.054321", column(t, v, "latitude"))
	assert.Equal(t, "3.717424", column(t, v, "longitude"))
	assert.Equal(t, "2024-05-14", column(t, v, "eradication_date"))
	assert.Equal(t, "a.jpg,b.jpg", column(t, v, "images"))
	assert.Equal(t, "true", column(t, v, "anb_domain"))
	assert.Equal(t, "987", column(t, v, "wn_id"))
	assert.Equal(t, "eradicated", column(t, v, "nest_status"))
	assert.Equal(t, "achter de schuur", column(t, v, "notes"))
}

func TestRowValues_PublicBlanksRestrictedColumns(t *testing.T) {
	v := sampleRow().Values(false, brussels(t))

	assert.Equal(t, "12", column(t, v, "id"))
	assert.Equal(t, "Gent", column(t, v, "municipality"))
	assert.Equal(t, "eradicated", column(t, v, "nest_status"))
	assert.Empty(t, column(t, v, "notes"))
	assert.Empty(t, column(t, v, "eradication_result"))
	assert.Empty(t, column(t, v, "modified_datetime"))
	assert.Empty(t, column(t, v, "wn_id"))
}

func TestRowValues_WinterOffsetAndUTCFallback(t *testing.T) {
	r := Row{CreatedDatetime: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}

	assert.Equal(t, "2024-01-15T13:00:00+01:00", column(t, r.Values(false, brussels(t)), "created_datetime"))
	assert.Equal(t, "2024-01-15T12:00:00Z", column(t, r.Values(false, nil), "created_datetime"))
}

func TestRowStatus(t *testing.T) {
	r := Row{Reserved: true}
	assert.Equal(t, "reserved", string(r.Status()))

	r = Row{EradicationResult: "unsuccessful", Reserved: true}
	assert.Equal(t, "visited", string(r.Status()))

	assert.Equal(t, "open", string(Row{}.Status()))
}

func TestExportObjectName(t *testing.T) {
	e := &Export{Format: FormatXLSX, CreatedAt: time.Date(2024, 5, 15, 23, 30, 0, 0, time.FixedZone("CEST", 2*3600))}
	assert.Contains(t, e.ObjectName(), "exports/2024/05/15/")
	assert.Equal(t, "observations_export_20240515_213000.xlsx", e.FileName())
}

func TestCreateExportRequest_Validate(t *testing.T) {
	assert.NoError(t, CreateExportRequest{Format: FormatCSV}.Validate())
	assert.Error(t, CreateExportRequest{Format: "pdf"}.Validate())
	assert.Error(t, CreateExportRequest{}.Validate())
}
