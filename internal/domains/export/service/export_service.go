package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/config"
	"github.com/inbo/vespa-db-sub000/internal/domains/export/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/export/repository"
	obsModel "github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/internal/infrastructure/database"
	"github.com/inbo/vespa-db-sub000/internal/metrics"
	"github.com/inbo/vespa-db-sub000/internal/shared"
	"github.com/inbo/vespa-db-sub000/internal/shared/utils"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

type exportService struct {
	cfg   config.ExportConfig
	repo  repository.ExportRepository
	store ObjectStore
	queue TaskEnqueuer
	loc   *time.Location
	now   func() time.Time
}

func NewExportService(
	cfg config.ExportConfig,
	repo repository.ExportRepository,
	store ObjectStore,
	queue TaskEnqueuer,
	loc *time.Location,
) ExportService {
	return &exportService{
		cfg:   cfg,
		repo:  repo,
		store: store,
		queue: queue,
		loc:   loc,
		now:   time.Now,
	}
}

func (s *exportService) Create(ctx context.Context, userID int64, isStaff bool, req model.CreateExportRequest) (*model.Export, error) {
	// ==================== STEP 1: VALIDATE ====================
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidExport, err)
	}
	if _, err := obsModel.ParseGeoJSONFilter(req.Filters, s.loc); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidExport, err)
	}

	// ==================== STEP 2: STORE PENDING RECORD ====================
	export := &model.Export{
		ID:        uuid.New(),
		UserID:    userID,
		IsStaff:   isStaff,
		Filters:   req.Filters,
		Format:    req.Format,
		Status:    model.StatusPending,
		CreatedAt: s.now().UTC(),
	}
	if export.Filters == nil {
		export.Filters = map[string][]string{}
	}
	if err := s.repo.Create(ctx, export); err != nil {
		return nil, err
	}

	// ==================== STEP 3: QUEUE GENERATION ====================
	task, err := utils.NewTask(shared.TypeGenerateExport, model.GenerateExportPayload{ExportID: export.ID})
	if err != nil {
		return nil, err
	}
	_, err = s.queue.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueueDefault),
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.TaskID(export.ID.String()),
	)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, export.ID, "could not be queued"); markErr != nil {
			logger.Error("failed to mark unqueued export", markErr)
		}
		return nil, fmt.Errorf("enqueue export: %w", err)
	}

	logger.Info("export requested", map[string]interface{}{
		"export_id": export.ID.String(),
		"user_id":   userID,
		"format":    export.Format,
	})
	return export.InLocation(s.loc), nil
}

func (s *exportService) Get(ctx context.Context, id uuid.UUID, userID int64, isStaff bool) (*model.ExportResponse, error) {
	export, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isStaff && export.UserID != userID {
		return nil, model.ErrExportForbidden
	}

	resp := &model.ExportResponse{Export: export.InLocation(s.loc)}
	if export.Status != model.StatusCompleted || export.ObjectKey == nil {
		return resp, nil
	}

	resp.DownloadURL, err = s.store.PresignedURL(ctx, *export.ObjectKey, export.FileName(), s.cfg.PresignExpiry)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *exportService) Generate(ctx context.Context, id uuid.UUID) error {
	export, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if export.Status == model.StatusCompleted {
		return nil
	}

	if err := s.repo.MarkProcessing(ctx, id); err != nil {
		return err
	}

	n, key, err := s.render(ctx, export)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("failed").Inc()
		if markErr := s.repo.MarkFailed(ctx, id, err.Error()); markErr != nil {
			logger.Error("failed to mark export as failed", markErr)
		}
		return err
	}

	if err := s.repo.MarkCompleted(ctx, id, key, n); err != nil {
		return err
	}

	metrics.ExportsTotal.WithLabelValues("completed").Inc()
	logger.Info("export completed", map[string]interface{}{
		"export_id": id.String(),
		"rows":      n,
		"format":    export.Format,
	})
	return nil
}

// render writes the artifact and uploads it, returning row count and object key.
func (s *exportService) render(ctx context.Context, export *model.Export) (int, string, error) {
	// ==================== STEP 1: READ ROWS ====================
	filter, err := obsModel.ParseGeoJSONFilter(export.Filters, s.loc)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", model.ErrInvalidExport, err)
	}

	policy := database.DefaultRetryPolicy()
	policy.MaxAttempts = s.cfg.MaxAttempts
	rows, err := s.repo.FetchRows(ctx, filter, s.cfg.QueryTimeout, policy)
	if err != nil {
		return 0, "", err
	}

	// ==================== STEP 2: RENDER ====================
	w, err := newRowWriter(export.Format)
	if err != nil {
		return 0, "", err
	}
	if err := w.Write(model.Headers); err != nil {
		return 0, "", err
	}
	for _, row := range rows {
		if err := w.Write(row.Values(export.IsStaff, s.loc)); err != nil {
			return 0, "", fmt.Errorf("write row %d: %w", row.ID, err)
		}
	}
	data, err := w.Bytes()
	if err != nil {
		return 0, "", err
	}

	// ==================== STEP 3: UPLOAD ====================
	key := export.ObjectName()
	if err := s.store.Upload(ctx, key, data, export.Format.ContentType()); err != nil {
		return 0, "", err
	}
	return len(rows), key, nil
}

func (s *exportService) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = s.cfg.RetentionDays
	}
	cutoff := s.now().UTC().AddDate(0, 0, -olderThanDays)

	exports, err := s.repo.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(exports) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(exports))
	var keys []string
	for _, e := range exports {
		ids = append(ids, e.ID)
		if e.ObjectKey != nil {
			keys = append(keys, *e.ObjectKey)
		}
	}

	// Records stay until their objects are gone so a failed run is retried.
	if len(keys) > 0 {
		if err := s.store.RemoveObjects(ctx, keys); err != nil {
			return 0, err
		}
	}

	deleted, err := s.repo.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	logger.Info("old exports removed", map[string]interface{}{
		"deleted": deleted,
		"objects": len(keys),
		"cutoff":  cutoff,
	})
	return deleted, nil
}

// IsPermanent reports whether retrying Generate cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, model.ErrExportNotFound) || errors.Is(err, model.ErrInvalidExport)
}
