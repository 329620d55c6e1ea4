package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/inbo/vespa-db-sub000/internal/domains/export/model"
	obsModel "github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/internal/infrastructure/database"
)

type ExportRepository interface {
	Create(ctx context.Context, e *model.Export) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Export, error)

	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, objectKey string, rowCount int) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error

	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Export, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)

	// FetchRows reads every observation matching f ordered by id. Each attempt
	// runs under timeout on its own connection; attempts that fail with a
	// timeout or connection error are retried per policy on a fresh one.
	FetchRows(ctx context.Context, f obsModel.GeoJSONFilter, timeout time.Duration, policy database.RetryPolicy) ([]model.Row, error)
}
