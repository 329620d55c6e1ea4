package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// EradicationRequest records the outcome of a nest treatment.
type EradicationRequest struct {
	EradicationDate      string `json:"eradication_date"`
	EradicationResult    string `json:"eradication_result"`
	EradicationProduct   string `json:"eradication_product"`
	EradicationMethod    string `json:"eradication_method"`
	EradicationProblems  string `json:"eradication_problems"`
	EradicationAftercare string `json:"eradication_aftercare"`
	EradicatorName       string `json:"eradicator_name"`
}

func (r EradicationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EradicationDate, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&r.EradicationResult,
			validation.Required.Error("eradication_result is required"),
			validation.By(func(v interface{}) error {
				if !IsValidEradicationResult(v.(string)) {
					return validation.NewError("validation_invalid_result", "unknown eradication result")
				}
				return nil
			}),
		),
		validation.Field(&r.EradicatorName, validation.Length(0, 255)),
	)
}

// Date parses EradicationDate; call after Validate.
func (r EradicationRequest) Date() time.Time {
	t, _ := time.Parse("2006-01-02", r.EradicationDate)
	return t
}

// LocationUpdateRequest moves an observation. Derived geo fields are
// recomputed by the service.
type LocationUpdateRequest struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

func (r LocationUpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Lon, validation.Min(-180.0), validation.Max(180.0)),
		validation.Field(&r.Lat, validation.Min(-90.0), validation.Max(90.0)),
	)
}

// ReservationResponse is returned by reserve/release.
type ReservationResponse struct {
	ID               int64      `json:"id"`
	ReservedBy       *int64     `json:"reserved_by"`
	ReservedDatetime *time.Time `json:"reserved_datetime"`
	Status           Status     `json:"status"`
}
