package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/inbo/vespa-db-sub000/internal/config"
	"github.com/inbo/vespa-db-sub000/internal/domains/export/model"
	obsModel "github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/internal/infrastructure/database"
	"github.com/inbo/vespa-db-sub000/internal/shared"
)

var exportNow = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

type memExportRepo struct {
	mu        sync.Mutex
	exports   map[uuid.UUID]*model.Export
	rows      []model.Row
	fetchErr  error
	gotFilter obsModel.GeoJSONFilter
	gotPolicy database.RetryPolicy
}

func newMemExportRepo() *memExportRepo {
	return &memExportRepo{exports: map[uuid.UUID]*model.Export{}}
}

func (r *memExportRepo) Create(_ context.Context, e *model.Export) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.exports[e.ID] = &cp
	return nil
}

func (r *memExportRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Export, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exports[id]
	if !ok {
		return nil, model.ErrExportNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memExportRepo) set(id uuid.UUID, fn func(e *model.Export)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exports[id]
	if !ok {
		return model.ErrExportNotFound
	}
	fn(e)
	return nil
}

func (r *memExportRepo) MarkProcessing(_ context.Context, id uuid.UUID) error {
	return r.set(id, func(e *model.Export) { e.Status = model.StatusProcessing })
}

func (r *memExportRepo) MarkCompleted(_ context.Context, id uuid.UUID, key string, n int) error {
	return r.set(id, func(e *model.Export) {
		e.Status, e.ObjectKey, e.RowCount = model.StatusCompleted, &key, n
	})
}

func (r *memExportRepo) MarkFailed(_ context.Context, id uuid.UUID, msg string) error {
	return r.set(id, func(e *model.Export) { e.Status, e.ErrorMessage = model.StatusFailed, &msg })
}

func (r *memExportRepo) ListOlderThan(_ context.Context, cutoff time.Time) ([]*model.Export, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Export
	for _, e := range r.exports {
		if e.CreatedAt.Before(cutoff) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memExportRepo) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.exports[id]; ok {
			delete(r.exports, id)
			n++
		}
	}
	return n, nil
}

func (r *memExportRepo) FetchRows(_ context.Context, f obsModel.GeoJSONFilter, _ time.Duration, p database.RetryPolicy) ([]model.Row, error) {
	r.gotFilter, r.gotPolicy = f, p
	return r.rows, r.fetchErr
}

type memStore struct {
	objects   map[string][]byte
	uploadErr error
	removeErr error
}

func (s *memStore) Upload(_ context.Context, key string, data []byte, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.objects[key] = data
	return nil
}

func (s *memStore) PresignedURL(_ context.Context, key, fileName string, _ time.Duration) (string, error) {
	return "https://minio.local/" + key + "?name=" + fileName, nil
}

func (s *memStore) RemoveObjects(_ context.Context, keys []string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	for _, k := range keys {
		delete(s.objects, k)
	}
	return nil
}

type stubQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *stubQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type exportFixture struct {
	svc   *exportService
	repo  *memExportRepo
	store *memStore
	queue *stubQueue
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Brussels")
	require.NoError(t, err)

	f := &exportFixture{
		repo:  newMemExportRepo(),
		store: &memStore{objects: map[string][]byte{}},
		queue: &stubQueue{},
	}
	f.svc = NewExportService(config.ExportConfig{
		RetentionDays: 7,
		MaxAttempts:   4,
		QueryTimeout:  time.Minute,
		PresignExpiry: time.Hour,
	}, f.repo, f.store, f.queue, loc).(*exportService)
	f.svc.now = func() time.Time { return exportNow }
	f.repo.rows = []model.Row{
		{ID: 1, Lat: 51.05, Lon: 3.72, Source: "waarnemingen.be", Notes: "secret",
			CreatedDatetime: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
		{ID: 2, Lat: 50.85, Lon: 4.35, Source: "manual", Reserved: true},
	}
	return f
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCreate_QueuesGeneration(t *testing.T) {
	f := newExportFixture(t)

	export, err := f.svc.Create(context.Background(), 7, false, model.CreateExportRequest{
		Format:  model.FormatCSV,
		Filters: map[string][]string{"provinceId": {"2"}},
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, export.Status)
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, shared.TypeGenerateExport, f.queue.tasks[0].Type())
	assert.Contains(t, string(f.queue.tasks[0].Payload()), export.ID.String())
}

func TestCreate_RejectsBadRequests(t *testing.T) {
	f := newExportFixture(t)

	_, err := f.svc.Create(context.Background(), 7, false, model.CreateExportRequest{Format: "pdf"})
	assert.ErrorIs(t, err, model.ErrInvalidExport)

	_, err = f.svc.Create(context.Background(), 7, false, model.CreateExportRequest{
		Format:  model.FormatCSV,
		Filters: map[string][]string{"visible": {"maybe"}},
	})
	assert.ErrorIs(t, err, model.ErrInvalidExport)
	assert.Empty(t, f.queue.tasks)
}

func TestCreate_EnqueueFailureMarksFailed(t *testing.T) {
	f := newExportFixture(t)
	f.queue.err = errors.New("redis down")

	_, err := f.svc.Create(context.Background(), 7, false, model.CreateExportRequest{Format: model.FormatCSV})
	require.Error(t, err)

	require.Len(t, f.repo.exports, 1)
	for _, e := range f.repo.exports {
		assert.Equal(t, model.StatusFailed, e.Status)
	}
}

func TestGenerate_CSV(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	export, err := f.svc.Create(ctx, 7, false, model.CreateExportRequest{Format: model.FormatCSV})
	require.NoError(t, err)

	require.NoError(t, f.svc.Generate(ctx, export.ID))

	stored := f.repo.exports[export.ID]
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.RowCount)
	assert.Equal(t, 4, f.repo.gotPolicy.MaxAttempts)

	records := readCSV(t, f.store.objects[*stored.ObjectKey])
	require.Len(t, records, 3)
	assert.Equal(t, model.Headers, records[0])
	assert.Equal(t, "51.050000", records[1][3])
	assert.Equal(t, "2024-05-01T10:00:00+02:00", records[1][1])
	assert.NotContains(t, records[1], "secret")
	assert.Equal(t, "reserved", records[2][len(model.Headers)-1])
}

func TestGenerate_StaffSeesEveryColumn(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	export, err := f.svc.Create(ctx, 1, true, model.CreateExportRequest{Format: model.FormatCSV})
	require.NoError(t, err)

	require.NoError(t, f.svc.Generate(ctx, export.ID))

	records := readCSV(t, f.store.objects[*f.repo.exports[export.ID].ObjectKey])
	assert.Contains(t, records[1], "secret")
}

func TestGenerate_XLSX(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	export, err := f.svc.Create(ctx, 7, false, model.CreateExportRequest{Format: model.FormatXLSX})
	require.NoError(t, err)

	require.NoError(t, f.svc.Generate(ctx, export.ID))

	book, err := excelize.OpenReader(bytes.NewReader(f.store.objects[*f.repo.exports[export.ID].ObjectKey]))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "2", rows[2][0])
}

func TestGenerate_FailureIsRecorded(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	export, err := f.svc.Create(ctx, 7, false, model.CreateExportRequest{Format: model.FormatCSV})
	require.NoError(t, err)
	f.repo.fetchErr = database.ErrQueryTimeout

	err = f.svc.Generate(ctx, export.ID)

	assert.ErrorIs(t, err, database.ErrQueryTimeout)
	assert.Equal(t, model.StatusFailed, f.repo.exports[export.ID].Status)
	assert.Empty(t, f.store.objects)
	assert.False(t, IsPermanent(err))
}

func TestGenerate_CompletedIsLeftAlone(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	export, err := f.svc.Create(ctx, 7, false, model.CreateExportRequest{Format: model.FormatCSV})
	require.NoError(t, err)
	require.NoError(t, f.svc.Generate(ctx, export.ID))
	f.repo.fetchErr = errors.New("must not be called")

	assert.NoError(t, f.svc.Generate(ctx, export.ID))
}

func TestGenerate_UnknownIsPermanent(t *testing.T) {
	f := newExportFixture(t)

	err := f.svc.Generate(context.Background(), uuid.New())

	assert.True(t, IsPermanent(err))
}

func TestGet_OwnershipAndDownloadLink(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	export, err := f.svc.Create(ctx, 7, false, model.CreateExportRequest{Format: model.FormatCSV})
	require.NoError(t, err)

	pending, err := f.svc.Get(ctx, export.ID, 7, false)
	require.NoError(t, err)
	assert.Empty(t, pending.DownloadURL)
	assert.Equal(t, "2024-05-15T12:00:00+02:00", pending.CreatedAt.Format(time.RFC3339))

	_, err = f.svc.Get(ctx, export.ID, 8, false)
	assert.ErrorIs(t, err, model.ErrExportForbidden)

	require.NoError(t, f.svc.Generate(ctx, export.ID))
	done, err := f.svc.Get(ctx, export.ID, 1, true)
	require.NoError(t, err)
	assert.Contains(t, done.DownloadURL, export.ID.String())
}

func TestCleanup_RemovesOldExportsAndObjects(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	old, err := f.svc.Create(ctx, 7, false, model.CreateExportRequest{Format: model.FormatCSV})
	require.NoError(t, err)
	require.NoError(t, f.svc.Generate(ctx, old.ID))
	oldKey := *f.repo.exports[old.ID].ObjectKey

	f.svc.now = func() time.Time { return exportNow.AddDate(0, 0, 6) }
	recent, err := f.svc.Create(ctx, 7, false, model.CreateExportRequest{Format: model.FormatCSV})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return exportNow.AddDate(0, 0, 8) }
	n, err := f.svc.Cleanup(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(1), n)
	assert.NotContains(t, f.store.objects, oldKey)
	assert.Contains(t, f.repo.exports, recent.ID)
}

func TestCleanup_KeepsRecordsWhenObjectsRemain(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	export, err := f.svc.Create(ctx, 7, false, model.CreateExportRequest{Format: model.FormatCSV})
	require.NoError(t, err)
	require.NoError(t, f.svc.Generate(ctx, export.ID))
	f.store.removeErr = errors.New("minio down")

	f.svc.now = func() time.Time { return exportNow.AddDate(0, 0, 30) }
	_, err = f.svc.Cleanup(ctx, 0)

	require.Error(t, err)
	assert.Contains(t, f.repo.exports, export.ID)
}
