package job

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inbo/vespa-db-sub000/internal/domains/export/model"
	"github.com/inbo/vespa-db-sub000/internal/shared"
)

type fakeExports struct {
	generated []uuid.UUID
	days      int
	err       error
}

func (f *fakeExports) Create(context.Context, int64, bool, model.CreateExportRequest) (*model.Export, error) {
	return nil, nil
}

func (f *fakeExports) Get(context.Context, uuid.UUID, int64, bool) (*model.ExportResponse, error) {
	return nil, nil
}

func (f *fakeExports) Generate(_ context.Context, id uuid.UUID) error {
	f.generated = append(f.generated, id)
	return f.err
}

func (f *fakeExports) Cleanup(_ context.Context, days int) (int64, error) {
	f.days = days
	return 3, f.err
}

func TestGenerateExportHandler(t *testing.T) {
	id := uuid.New()
	svc := &fakeExports{}
	h := NewGenerateExportHandler(svc)

	err := h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeGenerateExport, []byte(`{"export_id":"`+id.String()+`"}`)))

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, svc.generated)
}

func TestGenerateExportHandler_RetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		skipRetry bool
	}{
		{name: "missing export is final", err: model.ErrExportNotFound, skipRetry: true},
		{name: "bad filter is final", err: model.ErrInvalidExport, skipRetry: true},
		{name: "storage outage is retried", err: errors.New("minio unavailable")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewGenerateExportHandler(&fakeExports{err: tt.err})

			err := h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeGenerateExport, []byte(`{"export_id":"`+uuid.NewString()+`"}`)))

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestCleanupExportsHandler(t *testing.T) {
	svc := &fakeExports{}
	h := NewCleanupExportsHandler(svc)

	require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeCleanupExports, []byte(`{"older_than_days":3}`))))
	assert.Equal(t, 3, svc.days)
}
