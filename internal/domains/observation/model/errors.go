package model

import (
	"errors"
	"fmt"
)

// ===================================
// DOMAIN ERRORS
// ===================================

var (
	// ErrObservationNotFound is returned when no observation matches the id
	ErrObservationNotFound = errors.New("observation not found")

	// ErrMappingRejected marks a feed record that cannot be mapped. Never aborts a batch.
	ErrMappingRejected = errors.New("feed record rejected")

	// ErrPersistence wraps a failed bulk write. The surrounding transaction is rolled back.
	ErrPersistence = errors.New("persistence failed")

	// ErrAlreadyReserved is returned when another user holds the reservation
	ErrAlreadyReserved = errors.New("observation is already reserved")

	// ErrAlreadyEradicated is returned when reserving an eradicated observation
	ErrAlreadyEradicated = errors.New("observation is already eradicated")

	// ErrReservationLimit is returned when the user reached the maximum number of reservations
	ErrReservationLimit = errors.New("maximum number of reservations reached")

	// ErrNotReserved is returned when releasing an unreserved observation
	ErrNotReserved = errors.New("observation is not reserved")

	// ErrNotReservationHolder is returned when a non-admin releases someone else's reservation
	ErrNotReservationHolder = errors.New("only the reservation holder or an admin can release")

	// ErrInvalidEradication is returned for an eradication without a valid result
	ErrInvalidEradication = errors.New("invalid eradication")

	// ErrInvalidLocation is returned for coordinates outside WGS84 bounds
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidFilter is returned for an unparsable GeoJSON filter parameter
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidSyncWindow is returned for a sync date override not in ddMMyyyy form
	ErrInvalidSyncWindow = errors.New("invalid sync window")
)

// MappingRejection records why one feed record was skipped.
type MappingRejection struct {
	ExternalID any
	Reason     string
}

func (e *MappingRejection) Error() string {
	return fmt.Sprintf("%s: external id %v: %s", ErrMappingRejected, e.ExternalID, e.Reason)
}

func (e *MappingRejection) Unwrap() error { return ErrMappingRejected }

func NewMappingRejection(externalID any, format string, args ...any) *MappingRejection {
	return &MappingRejection{ExternalID: externalID, Reason: fmt.Sprintf(format, args...)}
}

func NewPersistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func NewInvalidFilterError(param, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidFilter, param, value)
}
