package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	obsModel "github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
)

// Headers are the export columns, in order.
var Headers = []string{
	"id", "created_datetime", "modified_datetime", "latitude", "longitude",
	"source", "nest_height", "nest_size", "nest_location", "nest_type",
	"observation_datetime", "province", "eradication_date", "municipality",
	"images", "anb_domain", "notes", "eradication_result", "wn_id",
	"wn_validation_status", "nest_status",
}

// publicColumns are exported for every user. Staff get every column.
var publicColumns = map[string]bool{
	"id": true, "created_datetime": true, "latitude": true, "longitude": true,
	"source": true, "nest_height": true, "nest_type": true,
	"observation_datetime": true, "province": true, "municipality": true,
	"anb_domain": true, "nest_status": true,
}

// coordinatePlaces is roughly 0.1 m at Belgian latitudes.
const coordinatePlaces = 6

// Row is the flattened observation read by the export query.
type Row struct {
	ID                  int64
	CreatedDatetime     time.Time
	ModifiedDatetime    time.Time
	Lat                 float64
	Lon                 float64
	Source              string
	NestHeight          string
	NestSize            string
	NestLocation        string
	NestType            string
	ObservationDatetime time.Time
	Province            string
	EradicationDate     *time.Time
	Municipality        string
	Images              []string
	ANB                 bool
	Notes               string
	EradicationResult   string
	ExternalID          *int64
	ValidationStatus    string
	Reserved            bool
}

// Status derives nest_status the same way the map does.
func (r Row) Status() obsModel.Status {
	return obsModel.DeriveStatus(obsModel.EradicationResult(r.EradicationResult), r.Reserved, r.EradicationDate != nil)
}

// Values renders r in Headers order with timestamps in loc. Columns outside
// the public set are blanked unless full is set.
func (r Row) Values(full bool, loc *time.Location) []string {
	out := make([]string, len(Headers))
	for i, h := range Headers {
		if !full && !publicColumns[h] {
			continue
		}
		out[i] = r.value(h, loc)
	}
	return out
}

func (r Row) value(column string, loc *time.Location) string {
	switch column {
	case "id":
		return strconv.FormatInt(r.ID, 10)
	case "created_datetime":
		return formatTimestamp(r.CreatedDatetime, loc)
	case "modified_datetime":
		return formatTimestamp(r.ModifiedDatetime, loc)
	case "latitude":
		return decimal.NewFromFloat(r.Lat).StringFixed(coordinatePlaces)
	case "longitude":
		return decimal.NewFromFloat(r.Lon).StringFixed(coordinatePlaces)
	case "source":
		return r.Source
	case "nest_height":
		return r.NestHeight
	case "nest_size":
		return r.NestSize
	case "nest_location":
		return r.NestLocation
	case "nest_type":
		return r.NestType
	case "observation_datetime":
		return formatTimestamp(r.ObservationDatetime, loc)
	case "province":
		return r.Province
	case "eradication_date":
		if r.EradicationDate == nil {
			return ""
		}
		return r.EradicationDate.UTC().Format("2006-01-02")
	case "municipality":
		return r.Municipality
	case "images":
		return strings.Join(r.Images, ",")
	case "anb_domain":
		return strconv.FormatBool(r.ANB)
	case "notes":
		return r.Notes
	case "eradication_result":
		return r.EradicationResult
	case "wn_id":
		if r.ExternalID == nil {
			return ""
		}
		return strconv.FormatInt(*r.ExternalID, 10)
	case "wn_validation_status":
		return r.ValidationStatus
	case "nest_status":
		return string(r.Status())
	}
	return ""
}

// formatTimestamp renders t in loc at second precision, with its UTC offset.
func formatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Truncate(time.Second).Format(time.RFC3339)
}
