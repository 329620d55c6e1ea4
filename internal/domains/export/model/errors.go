package model

import "errors"

var (
	ErrExportNotFound = errors.New("export not found")
	ErrExportNotReady = errors.New("export is not completed yet")
	ErrInvalidExport  = errors.New("invalid export request")

	// ErrExportForbidden is returned when a user reads another user's export
	ErrExportForbidden = errors.New("export belongs to another user")
)
