package model

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Export is one requested download of a filtered observation set.
type Export struct {
	ID           uuid.UUID           `json:"id"`
	UserID       int64               `json:"user_id"`
	IsStaff      bool                `json:"-"`
	Filters      map[string][]string `json:"filters"`
	Format       Format              `json:"format"`
	Status       Status              `json:"status"`
	ObjectKey    *string             `json:"-"`
	RowCount     int                 `json:"row_count"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// InLocation returns a copy of e with its timestamps expressed in loc.
func (e *Export) InLocation(loc *time.Location) *Export {
	if loc == nil {
		return e
	}
	out := *e
	out.CreatedAt = e.CreatedAt.In(loc)
	if e.CompletedAt != nil {
		completed := e.CompletedAt.In(loc)
		out.CompletedAt = &completed
	}
	return &out
}

// ObjectName is the storage key of the artifact, partitioned by creation day.
func (e *Export) ObjectName() string {
	return fmt.Sprintf("exports/%s/%s.%s", e.CreatedAt.UTC().Format("2006/01/02"), e.ID, e.Format)
}

// FileName is offered to the browser on download.
func (e *Export) FileName() string {
	return fmt.Sprintf("observations_export_%s.%s", e.CreatedAt.UTC().Format("20060102_150405"), e.Format)
}

// CreateExportRequest asks for an export. Filters use the dynamic GeoJSON
// parameter names.
type CreateExportRequest struct {
	Format  Format              `json:"format"`
	Filters map[string][]string `json:"filters"`
}

func (r CreateExportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Format, validation.Required, validation.In(FormatCSV, FormatXLSX)),
	)
}

// ExportResponse adds a presigned download link once the export completed.
type ExportResponse struct {
	*Export
	DownloadURL string `json:"download_url,omitempty"`
}
