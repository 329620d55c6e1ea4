package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"golang.org/x/oauth2"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/feed"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	userModel "github.com/inbo/vespa-db-sub000/internal/domains/user/model"
	"github.com/inbo/vespa-db-sub000/pkg/database"
)

var errFake = errors.New("fake failure")

func ptr[T any](v T) *T { return &v }

// ===== observation repository =====

// memRepo is an in-memory ObservationRepository. WithinTx on memTx snapshots
// it and restores the snapshot when the function fails.
type memRepo struct {
	mu     sync.Mutex
	rows   map[int64]*model.Observation
	nextID int64
	points []model.MapPoint
	calls  map[string]int
	// failOn makes the named method return errFake
	failOn string
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[int64]*model.Observation), nextID: 1, calls: make(map[string]int)}
}

func (r *memRepo) put(o *model.Observation) *model.Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.ID == 0 {
		o.ID = r.nextID
	}
	if o.ID >= r.nextID {
		r.nextID = o.ID + 1
	}
	r.rows[o.ID] = o
	return o
}

func (r *memRepo) byExternal(wnID int64) *model.Observation {
	for _, o := range r.rows {
		if o.ExternalID != nil && *o.ExternalID == wnID && o.Source == model.SourceWaarnemingen {
			return o
		}
	}
	return nil
}

func (r *memRepo) snapshot() map[int64]model.Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := make(map[int64]model.Observation, len(r.rows))
	for id, o := range r.rows {
		snap[id] = *o
	}
	return snap
}

func (r *memRepo) restore(snap map[int64]model.Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = make(map[int64]*model.Observation, len(snap))
	for id, o := range snap {
		o := o
		r.rows[id] = &o
	}
}

func (r *memRepo) hit(name string) error {
	r.calls[name]++
	if r.failOn == name {
		return errFake
	}
	return nil
}

func (r *memRepo) LoadSyncIndex(context.Context) (model.SyncIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.hit("LoadSyncIndex"); err != nil {
		return nil, err
	}
	index := make(model.SyncIndex)
	for _, o := range r.rows {
		if o.ExternalID == nil || o.Source != model.SourceWaarnemingen {
			continue
		}
		index[*o.ExternalID] = model.SyncState{
			ID:                 o.ID,
			ModifiedBy:         o.ModifiedBy,
			WNModifiedDatetime: o.WNModifiedDatetime,
			HasEradicationDate: o.EradicationDate != nil,
			WNClusterID:        o.WNClusterID,
		}
	}
	return index, nil
}

func (r *memRepo) InsertSyncedWithTx(_ context.Context, _ pgx.Tx, obs []*model.Observation, syncUserID int64, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.hit("InsertSyncedWithTx"); err != nil {
		return 0, err
	}
	var n int64
	for _, o := range obs {
		if r.byExternal(*o.ExternalID) != nil {
			continue
		}
		cp := *o
		cp.ID = r.nextID
		r.nextID++
		cp.CreatedBy, cp.ModifiedBy = ptr(syncUserID), ptr(syncUserID)
		cp.CreatedDatetime, cp.ModifiedDatetime = now, now
		r.rows[cp.ID] = &cp
		n++
	}
	return n, nil
}

func (r *memRepo) UpdateSyncedWithTx(_ context.Context, _ pgx.Tx, obs []*model.Observation, syncUserID int64, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.hit("UpdateSyncedWithTx"); err != nil {
		return 0, err
	}
	var n int64
	for _, o := range obs {
		cur := r.byExternal(*o.ExternalID)
		if cur == nil || cur.ModifiedBy == nil || *cur.ModifiedBy != syncUserID {
			continue
		}
		if sameInstant(cur.WNModifiedDatetime, o.WNModifiedDatetime) && cur.Notes == o.Notes {
			continue
		}
		id, created, eradication := cur.ID, cur.CreatedDatetime, cur.EradicationDate
		*cur = *o
		cur.ID, cur.CreatedDatetime = id, created
		if eradication != nil {
			cur.EradicationDate = eradication
		}
		cur.CreatedBy, cur.ModifiedBy = ptr(syncUserID), ptr(syncUserID)
		cur.ModifiedDatetime = now
		n++
	}
	return n, nil
}

func (r *memRepo) AssignClusterWithTx(_ context.Context, _ pgx.Tx, clusterID int64, externalIDs []int64, syncUserID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, wnID := range externalIDs {
		o := r.byExternal(wnID)
		if o == nil || o.ModifiedBy == nil || *o.ModifiedBy != syncUserID {
			continue
		}
		if o.WNClusterID == nil || *o.WNClusterID != clusterID {
			o.WNClusterID = ptr(clusterID)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ClusterMembersWithTx(_ context.Context, _ pgx.Tx, clusterIDs []int64) ([]model.ClusterMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[int64]bool, len(clusterIDs))
	for _, id := range clusterIDs {
		want[id] = true
	}
	var members []model.ClusterMember
	for _, o := range r.rows {
		if o.WNClusterID != nil && want[*o.WNClusterID] {
			members = append(members, model.ClusterMember{
				ID: o.ID, ClusterID: *o.WNClusterID, ObservationDatetime: o.ObservationDatetime, Visible: o.Visible,
			})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (r *memRepo) SetVisibilityWithTx(_ context.Context, _ pgx.Tx, changes []model.VisibilityChange) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range changes {
		r.rows[c.ID].Visible = c.Visible
	}
	return int64(len(changes)), nil
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*model.Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["FindByID"]++
	o, ok := r.rows[id]
	if !ok {
		return nil, model.ErrObservationNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) LockByIDWithTx(ctx context.Context, _ pgx.Tx, id int64) (*model.Observation, error) {
	return r.FindByID(ctx, id)
}

func (r *memRepo) ReserveWithTx(_ context.Context, _ pgx.Tx, id, userID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.rows[id]
	if !ok || o.ReservedBy != nil || o.ReservedDatetime != nil || o.EradicationDate != nil {
		return false, nil
	}
	o.ReservedBy, o.ReservedDatetime = ptr(userID), ptr(at)
	return true, nil
}

func (r *memRepo) ClearReservationWithTx(_ context.Context, _ pgx.Tx, id, modifiedBy int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.rows[id]
	if !ok {
		return model.ErrObservationNotFound
	}
	o.ReservedBy, o.ReservedDatetime = nil, nil
	o.ModifiedBy, o.ModifiedDatetime = ptr(modifiedBy), at
	return nil
}

func (r *memRepo) RecordEradicationWithTx(_ context.Context, _ pgx.Tx, id int64, e model.EradicationRequest, modifiedBy int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.rows[id]
	if !ok {
		return model.ErrObservationNotFound
	}
	o.EradicationDate = ptr(e.Date())
	o.EradicationResult = model.EradicationResult(e.EradicationResult)
	o.EradicatorName = e.EradicatorName
	o.ReservedBy, o.ReservedDatetime = nil, nil
	o.ModifiedBy, o.ModifiedDatetime = ptr(modifiedBy), at
	return nil
}

func (r *memRepo) UpdateLocationWithTx(_ context.Context, _ pgx.Tx, id int64, p model.Point, g model.GeoFields, modifiedBy int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.rows[id]
	if !ok {
		return model.ErrObservationNotFound
	}
	o.Location, o.GeoFields = p, g
	o.ModifiedBy, o.ModifiedDatetime = ptr(modifiedBy), at
	return nil
}

func (r *memRepo) DeleteWithTx(_ context.Context, _ pgx.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return model.ErrObservationNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) ExpireReservations(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.rows {
		expired := o.ReservedBy != nil && o.ReservedDatetime != nil && !o.ReservedDatetime.After(cutoff)
		halfSet := (o.ReservedBy == nil) != (o.ReservedDatetime == nil)
		if expired || halfSet {
			o.ReservedBy, o.ReservedDatetime = nil, nil
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ListMapPoints(ctx context.Context, _ model.GeoJSONFilter) ([]model.MapPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.hit("ListMapPoints"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.points, nil
}

// ===== transactions =====

type memTx struct {
	repo  *memRepo
	users *memUsers
}

var _ database.TxRunner = (*memTx)(nil)

func (t *memTx) WithinTx(_ context.Context, fn database.TxFunc) error {
	snap := t.repo.snapshot()
	var userSnap map[int64]int
	if t.users != nil {
		userSnap = t.users.snapshot()
	}
	if err := fn(nil); err != nil {
		t.repo.restore(snap)
		if t.users != nil {
			t.users.restore(userSnap)
		}
		return err
	}
	return nil
}

// ===== users =====

type memUsers struct {
	mu     sync.Mutex
	counts map[int64]int
	// actual overrides the reservation count derived from the observation repo
	actual   map[int64]int
	syncID   int64
	setCalls int
}

func newMemUsers() *memUsers {
	return &memUsers{counts: make(map[int64]int), syncID: 99}
}

func (u *memUsers) snapshot() map[int64]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	cp := make(map[int64]int, len(u.counts))
	for k, v := range u.counts {
		cp[k] = v
	}
	return cp
}

func (u *memUsers) restore(snap map[int64]int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.counts = snap
}

func (u *memUsers) FindByID(_ context.Context, id int64) (*userModel.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	c, ok := u.counts[id]
	if !ok {
		return nil, userModel.ErrUserNotFound
	}
	return &userModel.User{ID: id, ReservationCount: c}, nil
}

func (u *memUsers) EnsureSystemUser(context.Context, string, userModel.UserType) (int64, error) {
	return u.syncID, nil
}

func (u *memUsers) IncrementReservationCountWithTx(_ context.Context, _ pgx.Tx, userID int64, limit int) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.counts[userID] >= limit {
		return false, nil
	}
	u.counts[userID]++
	return true, nil
}

func (u *memUsers) DecrementReservationCountWithTx(_ context.Context, _ pgx.Tx, userID int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.counts[userID] > 0 {
		u.counts[userID]--
	}
	return nil
}

func (u *memUsers) StoredReservationCountsWithTx(context.Context, pgx.Tx) (map[int64]int, error) {
	return u.snapshot(), nil
}

func (u *memUsers) ActualReservationCountsWithTx(context.Context, pgx.Tx) (map[int64]int, error) {
	return u.actual, nil
}

func (u *memUsers) SetReservationCountsWithTx(_ context.Context, _ pgx.Tx, counts []userModel.CountCorrection) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.setCalls++
	for _, c := range counts {
		u.counts[c.UserID] = c.After
	}
	return int64(len(counts)), nil
}

// ===== feed =====

type fakeFeed struct {
	authErr  error
	pages    []*feed.PageResult
	pageErr  map[int]error // by page index
	clusters map[int64][]int64
	offsets  []int
}

func (f *fakeFeed) Authenticate(context.Context) (*oauth2.Token, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &oauth2.Token{AccessToken: "token", TokenType: "Bearer"}, nil
}

func (f *fakeFeed) FetchPage(_ context.Context, _ *oauth2.Token, _ time.Time, offset int) (*feed.PageResult, error) {
	idx := len(f.offsets)
	f.offsets = append(f.offsets, offset)
	if err := f.pageErr[idx]; err != nil {
		return nil, err
	}
	if idx >= len(f.pages) {
		return &feed.PageResult{}, nil
	}
	return f.pages[idx], nil
}

func (f *fakeFeed) FetchClusterMembers(_ context.Context, _ *oauth2.Token, clusterID int64) ([]int64, error) {
	return f.clusters[clusterID], nil
}

// ===== cache invalidation / queue =====

type recordingInvalidator struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recordingInvalidator) InvalidateGeoJSON(_ context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *recordingInvalidator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	// block, when set, holds every enqueue until closed
	block chan struct{}
	err   error
}

func (e *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.block != nil {
		<-e.block
	}
	if e.err != nil {
		return nil, e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (e *recordingEnqueuer) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.tasks))
	for _, t := range e.tasks {
		out = append(out, t.Type())
	}
	return out
}
