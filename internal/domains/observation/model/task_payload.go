package model

// SyncObservationsPayload overrides the default sync window. At most one of
// SinceWeeks and Date (ddMMyyyy) is honoured, Date first.
type SyncObservationsPayload struct {
	SinceWeeks int    `json:"since_weeks,omitempty"`
	Date       string `json:"date,omitempty"`
}

// RebuildGeoJSONPayload requests a full pre-warm fan-out.
type RebuildGeoJSONPayload struct {
	Reason string `json:"reason,omitempty"`
}

// GenerateGeoJSONPayload regenerates the cache entry of one configuration.
type GenerateGeoJSONPayload struct {
	Name   string              `json:"name"`
	Params map[string][]string `json:"params"`
}

// ExpireReservationsPayload overrides the configured reservation duration.
type ExpireReservationsPayload struct {
	Days int `json:"days,omitempty"`
}

type AuditReservationCountsPayload struct{}
