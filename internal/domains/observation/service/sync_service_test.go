package service

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inbo/vespa-db-sub000/internal/config"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/feed"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/mapper"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
)

var syncNow = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

type syncFixture struct {
	svc   *syncService
	repo  *memRepo
	users *memUsers
	feed  *fakeFeed
	inv   *recordingInvalidator
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Brussels")
	require.NoError(t, err)

	f := &syncFixture{
		repo:  newMemRepo(),
		users: newMemUsers(),
		feed:  &fakeFeed{},
		inv:   &recordingInvalidator{},
	}
	f.svc = NewSyncService(
		config.SyncConfig{WindowWeeks: 2, BatchSize: 2, SyncUsername: "sync"},
		f.feed,
		mapper.New(nil, loc, []string{"BESTREDEN"}),
		f.repo,
		f.users,
		&memTx{repo: f.repo, users: f.users},
		f.inv,
	).(*syncService)
	f.svc.now = func() time.Time { return syncNow }
	return f
}

func record(id int64, date, modified string) feed.Record {
	return feed.Record{
		ID:       ptr(id),
		Date:     date,
		Point:    &feed.Point{Coordinates: []float64{4.4, 50.9}},
		Created:  "2024-05-01T08:00:00Z",
		Modified: modified,
	}
}

func page(next bool, recs ...feed.Record) *feed.PageResult {
	p := &feed.PageResult{Count: len(recs), Results: recs}
	if next {
		p.Next = ptr("https://example.org/next")
	}
	return p
}

func mustTime(t *testing.T, s string) *time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return &v
}

func TestSync_CreatesNewRecordsAcrossPages(t *testing.T) {
	f := newSyncFixture(t)
	f.feed.pages = []*feed.PageResult{
		page(true, record(1, "2024-05-10", "2024-05-10T08:00:00Z"), record(2, "2024-05-10", "2024-05-10T08:00:00Z")),
		page(false, record(3, "2024-05-11", "2024-05-11T08:00:00Z")),
	}

	summary, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 3, summary.Created)
	assert.False(t, summary.Aborted)
	assert.Equal(t, []int{0, 2}, f.feed.offsets)
	require.Len(t, f.repo.rows, 3)
	for _, o := range f.repo.rows {
		assert.Equal(t, int64(99), *o.ModifiedBy)
	}
	assert.Equal(t, []string{"sync"}, f.inv.reasons)
}

func TestSync_NeverOverwritesRowsEditedByPeople(t *testing.T) {
	f := newSyncFixture(t)
	f.repo.put(&model.Observation{
		ExternalID:         ptr(int64(1)),
		Source:             model.SourceWaarnemingen,
		ModifiedBy:         ptr(int64(5)),
		WNModifiedDatetime: mustTime(t, "2024-05-01T08:00:00Z"),
		Notes:              "edited by a controller",
	})
	rec := record(1, "2024-05-10", "2024-05-12T08:00:00Z")
	rec.Notes = "upstream text"
	f.feed.pages = []*feed.PageResult{page(false, rec)}

	summary, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Updated)
	assert.Equal(t, "edited by a controller", f.repo.rows[1].Notes)
	assert.Equal(t, int64(5), *f.repo.rows[1].ModifiedBy)
	assert.Empty(t, f.inv.reasons)
}

func TestSync_UpdatesOnlyWhenSourceChanged(t *testing.T) {
	f := newSyncFixture(t)
	f.repo.put(&model.Observation{
		ExternalID:         ptr(int64(1)),
		Source:             model.SourceWaarnemingen,
		ModifiedBy:         ptr(int64(99)),
		WNModifiedDatetime: mustTime(t, "2024-05-10T08:00:00Z"),
	})
	f.repo.put(&model.Observation{
		ExternalID:         ptr(int64(2)),
		Source:             model.SourceWaarnemingen,
		ModifiedBy:         ptr(int64(99)),
		WNModifiedDatetime: mustTime(t, "2024-05-01T08:00:00Z"),
	})
	changed := record(2, "2024-05-10", "2024-05-12T08:00:00Z")
	changed.Notes = "nest grown"
	f.feed.pages = []*feed.PageResult{page(false,
		record(1, "2024-05-10", "2024-05-10T08:00:00Z"),
		changed,
	)}

	summary, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, "nest grown", f.repo.rows[2].Notes)
}

func TestSync_SecondRunIsNoOp(t *testing.T) {
	f := newSyncFixture(t)
	pages := []*feed.PageResult{page(false,
		record(1, "2024-05-10", "2024-05-10T08:00:00Z"),
		record(2, "2024-05-10", "2024-05-10T09:00:00Z"),
		record(3, "2024-05-11", "2024-05-11T08:00:00Z"),
	)}
	f.feed.pages = pages

	_, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})
	require.NoError(t, err)
	before := f.repo.snapshot()

	f.feed.offsets = nil
	f.feed.pages = pages
	summary, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})
	require.NoError(t, err)

	assert.Zero(t, summary.Created)
	assert.Zero(t, summary.Updated)
	assert.Equal(t, 3, summary.Unchanged)
	assert.Equal(t, before, f.repo.snapshot())
	assert.Len(t, f.inv.reasons, 1)
}

func TestSync_AuthFailureAbortsBeforeFetching(t *testing.T) {
	f := newSyncFixture(t)
	f.feed.authErr = &feed.AuthError{StatusCode: 401}

	summary, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})

	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrFatalAuth)
	assert.True(t, summary.Aborted)
	assert.Empty(t, f.feed.offsets)
	assert.Empty(t, f.repo.rows)
}

func TestSync_FetchErrorCommitsNothing(t *testing.T) {
	f := newSyncFixture(t)
	f.feed.pages = []*feed.PageResult{
		page(true, record(1, "2024-05-10", "2024-05-10T08:00:00Z")),
	}
	f.feed.pageErr = map[int]error{1: &feed.FetchError{Endpoint: "observations", StatusCode: 502}}

	summary, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})

	assert.ErrorIs(t, err, feed.ErrTransientFetch)
	assert.True(t, summary.Aborted)
	assert.NotEmpty(t, summary.AbortReason)
	assert.Equal(t, 1, summary.Fetched)
	assert.Empty(t, f.repo.rows)
	assert.Empty(t, f.inv.reasons)
}

func TestSync_PersistenceFailureRollsBack(t *testing.T) {
	f := newSyncFixture(t)
	f.repo.put(&model.Observation{
		ExternalID:         ptr(int64(1)),
		Source:             model.SourceWaarnemingen,
		ModifiedBy:         ptr(int64(99)),
		WNModifiedDatetime: mustTime(t, "2024-05-01T08:00:00Z"),
	})
	f.repo.failOn = "UpdateSyncedWithTx"
	f.feed.pages = []*feed.PageResult{page(false,
		record(1, "2024-05-10", "2024-05-12T08:00:00Z"),
		record(2, "2024-05-10", "2024-05-10T08:00:00Z"),
	)}

	_, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.Len(t, f.repo.rows, 1, "the insert of record 2 must be rolled back")
}

func TestSync_RejectedRecordsDoNotAbort(t *testing.T) {
	f := newSyncFixture(t)
	broken := record(2, "2024-05-10", "2024-05-10T08:00:00Z")
	broken.Point = nil
	f.feed.pages = []*feed.PageResult{page(false, record(1, "2024-05-10", "2024-05-10T08:00:00Z"), broken)}

	summary, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Created)
}

func TestSync_UndecodableRecordsAreRejected(t *testing.T) {
	f := newSyncFixture(t)
	p := page(true, record(1, "2024-05-10", "2024-05-10T08:00:00Z"))
	p.Undecodable = []feed.UndecodableRecord{{ExternalID: "2", Err: errors.New("cannot unmarshal string into point")}}
	f.feed.pages = []*feed.PageResult{p, page(false, record(3, "2024-05-11", "2024-05-11T08:00:00Z"))}

	summary, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})
	require.NoError(t, err)

	assert.False(t, summary.Aborted)
	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, []int{0, 2}, f.feed.offsets)
}

func TestSync_ClusterKeepsOnlyLatestVisible(t *testing.T) {
	f := newSyncFixture(t)
	older := record(1, "2024-05-01", "2024-05-10T08:00:00Z")
	older.Nest = &feed.Nest{ID: ptr(int64(7))}
	newer := record(2, "2024-05-03", "2024-05-10T08:00:00Z")
	newer.Nest = &feed.Nest{ID: ptr(int64(7))}
	f.feed.pages = []*feed.PageResult{page(false, older, newer)}
	f.feed.clusters = map[int64][]int64{7: {1, 2}}

	summary, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ClustersTouched)
	assert.Equal(t, 1, summary.VisibilityChanged)
	visible := 0
	for _, o := range f.repo.rows {
		if o.Visible {
			visible++
			assert.Equal(t, int64(2), *o.ExternalID)
		}
	}
	assert.Equal(t, 1, visible)
}

func TestSync_ClusterLeftByItsVisibleMemberGetsANewOne(t *testing.T) {
	f := newSyncFixture(t)
	moved := f.repo.put(&model.Observation{
		ExternalID:          ptr(int64(1)),
		Source:              model.SourceWaarnemingen,
		ModifiedBy:          ptr(int64(99)),
		WNClusterID:         ptr(int64(7)),
		ObservationDatetime: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		WNModifiedDatetime:  mustTime(t, "2024-05-03T08:00:00Z"),
		Visible:             true,
	})
	stayed := f.repo.put(&model.Observation{
		ExternalID:          ptr(int64(2)),
		Source:              model.SourceWaarnemingen,
		ModifiedBy:          ptr(int64(99)),
		WNClusterID:         ptr(int64(7)),
		ObservationDatetime: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		WNModifiedDatetime:  mustTime(t, "2024-05-01T08:00:00Z"),
		Visible:             false,
	})
	rec := record(1, "2024-05-03", "2024-05-12T08:00:00Z")
	rec.Nest = &feed.Nest{ID: ptr(int64(8))}
	f.feed.pages = []*feed.PageResult{page(false, rec)}
	f.feed.clusters = map[int64][]int64{8: {1}}

	summary, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	rows := f.repo.snapshot()
	assert.Equal(t, int64(8), *rows[moved.ID].WNClusterID)
	assert.True(t, rows[moved.ID].Visible)
	assert.Equal(t, int64(7), *rows[stayed.ID].WNClusterID)
	assert.True(t, rows[stayed.ID].Visible, "cluster 7 must keep one visible member")
}

func TestSync_NotesDoNotReinferEradication(t *testing.T) {
	f := newSyncFixture(t)
	f.repo.put(&model.Observation{
		ExternalID:         ptr(int64(1)),
		Source:             model.SourceWaarnemingen,
		ModifiedBy:         ptr(int64(99)),
		WNModifiedDatetime: mustTime(t, "2024-05-01T08:00:00Z"),
		EradicationDate:    mustTime(t, "2024-04-20T00:00:00Z"),
	})
	rec := record(1, "2024-05-10", "2024-05-12T08:00:00Z")
	rec.Notes = "Nest BESTREDEN"
	f.feed.pages = []*feed.PageResult{page(false, rec)}

	_, err := f.svc.Run(context.Background(), model.SyncObservationsPayload{})
	require.NoError(t, err)

	assert.Equal(t, *mustTime(t, "2024-04-20T00:00:00Z"), *f.repo.rows[1].EradicationDate)
}

func TestSync_WindowStart(t *testing.T) {
	f := newSyncFixture(t)

	tests := []struct {
		name string
		opts model.SyncObservationsPayload
		want time.Time
		err  error
	}{
		{name: "default two weeks", want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{name: "since weeks", opts: model.SyncObservationsPayload{SinceWeeks: 1}, want: time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)},
		{name: "explicit date", opts: model.SyncObservationsPayload{Date: "01032024", SinceWeeks: 1}, want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "bad date", opts: model.SyncObservationsPayload{Date: "2024-03-01"}, err: model.ErrInvalidSyncWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.windowStart(tt.opts, syncNow)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
