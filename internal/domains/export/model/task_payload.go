package model

import "github.com/google/uuid"

type GenerateExportPayload struct {
	ExportID uuid.UUID `json:"export_id"`
}

// CleanupExportsPayload removes exports and artifacts older than the window.
type CleanupExportsPayload struct {
	OlderThanDays int `json:"older_than_days"`
}
