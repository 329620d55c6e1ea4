package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/domains/export/model"
)

// =====================================================
// EXPORT SERVICE INTERFACE
// =====================================================
type ExportService interface {
	// Create stores a pending export and queues its generation
	Create(ctx context.Context, userID int64, isStaff bool, req model.CreateExportRequest) (*model.Export, error)

	// Get returns the export with a download link once completed.
	// Users only see their own exports, staff see all.
	Get(ctx context.Context, id uuid.UUID, userID int64, isStaff bool) (*model.ExportResponse, error)

	// Generate renders and uploads the artifact. Completed exports are left alone.
	Generate(ctx context.Context, id uuid.UUID) error

	// Cleanup removes exports and artifacts older than days (configured retention when days <= 0)
	Cleanup(ctx context.Context, olderThanDays int) (int64, error)
}

// ObjectStore is the artifact storage used by exports.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, key, fileName string, expiry time.Duration) (string, error)
	RemoveObjects(ctx context.Context, keys []string) error
}

type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
