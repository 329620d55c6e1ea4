package model

import (
	"time"
)

// Source discriminators for the (external_id, source) identity pair.
const (
	SourceWaarnemingen = "waarnemingen.be"
	SourceManual       = "manual"
)

// SentinelEradicatorName marks eradications synthesized from feed data
// rather than entered by a controller.
const SentinelEradicatorName = "Gemeld als bestreden"

// Point is a WGS84 coordinate pair.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// GeoFields are derived from Location and never set on their own.
type GeoFields struct {
	MunicipalityID *int64 `json:"municipality_id"`
	ProvinceID     *int64 `json:"province_id"`
	ANB            bool   `json:"anb"`
}

// Observation is a single sighting of a nest. Enumerated fields use the empty
// string for "no value".
type Observation struct {
	ID         int64  `json:"id"`
	ExternalID *int64 `json:"wn_id,omitempty"`
	Source     string `json:"source"`

	Location            Point     `json:"location"`
	ObservationDatetime time.Time `json:"observation_datetime"`
	Species             *int      `json:"species,omitempty"`

	NestHeight   NestHeight   `json:"nest_height,omitempty"`
	NestSize     NestSize     `json:"nest_size,omitempty"`
	NestLocation NestLocation `json:"nest_location,omitempty"`
	NestType     NestType     `json:"nest_type,omitempty"`

	EradicationDate      *time.Time           `json:"eradication_date,omitempty"`
	EradicationResult    EradicationResult    `json:"eradication_result,omitempty"`
	EradicationProduct   EradicationProduct   `json:"eradication_product,omitempty"`
	EradicationMethod    EradicationMethod    `json:"eradication_method,omitempty"`
	EradicationProblems  EradicationProblem   `json:"eradication_problems,omitempty"`
	EradicationAftercare EradicationAftercare `json:"eradication_aftercare,omitempty"`
	EradicatorName       string               `json:"eradicator_name,omitempty"`

	ReservedBy       *int64     `json:"reserved_by,omitempty"`
	ReservedDatetime *time.Time `json:"reserved_datetime,omitempty"`

	Visible bool `json:"visible"`
	GeoFields

	CreatedBy          *int64           `json:"created_by,omitempty"`
	ModifiedBy         *int64           `json:"modified_by,omitempty"`
	CreatedDatetime    time.Time        `json:"created_datetime"`
	ModifiedDatetime   time.Time        `json:"modified_datetime"`
	WNCreatedDatetime  *time.Time       `json:"wn_created_datetime,omitempty"`
	WNModifiedDatetime *time.Time       `json:"wn_modified_datetime,omitempty"`
	WNClusterID        *int64           `json:"wn_cluster_id,omitempty"`
	WNValidationStatus ValidationStatus `json:"wn_validation_status,omitempty"`

	Notes               string   `json:"notes,omitempty"`
	ObserverName        string   `json:"observer_name,omitempty"`
	ObserverEmail       string   `json:"observer_email,omitempty"`
	ObserverPhoneNumber string   `json:"observer_phone_number,omitempty"`
	Images              []string `json:"images"`
}

// IsReserved reports whether both reservation fields are set.
func (o *Observation) IsReserved() bool {
	return o.ReservedBy != nil && o.ReservedDatetime != nil
}

// IsEradicated reports whether an eradication has been recorded.
func (o *Observation) IsEradicated() bool {
	return o.EradicationDate != nil
}

// InLocation returns a copy of o with every timestamp expressed in loc.
// Stored values stay UTC; responses use the civil timezone.
// The eradication date is a calendar date and is left as is.
func (o *Observation) InLocation(loc *time.Location) *Observation {
	if loc == nil {
		return o
	}
	out := *o
	out.ObservationDatetime = o.ObservationDatetime.In(loc)
	out.CreatedDatetime = o.CreatedDatetime.In(loc)
	out.ModifiedDatetime = o.ModifiedDatetime.In(loc)
	out.ReservedDatetime = timeIn(o.ReservedDatetime, loc)
	out.WNCreatedDatetime = timeIn(o.WNCreatedDatetime, loc)
	out.WNModifiedDatetime = timeIn(o.WNModifiedDatetime, loc)
	return &out
}

func timeIn(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	v := t.In(loc)
	return &v
}

// ===================================
// STATUS
// ===================================

type Status string

const (
	StatusOpen       Status = "open"
	StatusReserved   Status = "reserved"
	StatusEradicated Status = "eradicated"
	StatusVisited    Status = "visited"
	StatusDefault    Status = "default"
)

// DeriveStatus computes the public status label. A recorded result wins over
// a reservation; an eradication date without a result yields StatusDefault.
func DeriveStatus(result EradicationResult, reserved, eradicated bool) Status {
	switch {
	case result == EradicationSuccessful:
		return StatusEradicated
	case result != "":
		return StatusVisited
	case reserved:
		return StatusReserved
	case eradicated:
		return StatusDefault
	default:
		return StatusOpen
	}
}

// Status is DeriveStatus applied to o.
func (o *Observation) Status() Status {
	return DeriveStatus(o.EradicationResult, o.IsReserved(), o.IsEradicated())
}
