package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/oauth2"

	"github.com/inbo/vespa-db-sub000/internal/config"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/feed"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/mapper"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/repository"
	userModel "github.com/inbo/vespa-db-sub000/internal/domains/user/model"
	userRepo "github.com/inbo/vespa-db-sub000/internal/domains/user/repository"
	"github.com/inbo/vespa-db-sub000/internal/metrics"
	"github.com/inbo/vespa-db-sub000/pkg/database"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

const syncDateLayout = "02012006" // ddMMyyyy

// =====================================================
// SYNC SERVICE IMPLEMENTATION
// =====================================================
type syncService struct {
	cfg         config.SyncConfig
	feed        feed.Client
	mapper      *mapper.Mapper
	repo        repository.ObservationRepository
	userRepo    userRepo.UserRepository
	tx          database.TxRunner
	invalidator CacheInvalidator
	now         func() time.Time
}

func NewSyncService(
	cfg config.SyncConfig,
	feedClient feed.Client,
	m *mapper.Mapper,
	repo repository.ObservationRepository,
	users userRepo.UserRepository,
	tx database.TxRunner,
	invalidator CacheInvalidator,
) SyncService {
	return &syncService{
		cfg:         cfg,
		feed:        feedClient,
		mapper:      m,
		repo:        repo,
		userRepo:    users,
		tx:          tx,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// syncPlan is the classified content of one run, ready to be written.
type syncPlan struct {
	creates  map[int64]*model.Observation
	updates  map[int64]*model.Observation
	clusters map[int64]struct{}

	// vacated holds clusters that rows leave during this run. They get
	// their visibility recomputed without an upstream membership fetch.
	vacated map[int64]struct{}
}

// markMove records the stored cluster of wnID when the run moves it elsewhere.
func (p *syncPlan) markMove(index model.SyncIndex, wnID int64, to *int64) {
	from := index[wnID].WNClusterID
	if from == nil || (to != nil && *to == *from) {
		return
	}
	p.vacated[*from] = struct{}{}
}

func (s *syncService) Run(ctx context.Context, opts model.SyncObservationsPayload) (*model.SyncSummary, error) {
	start := s.now()
	summary := &model.SyncSummary{RunID: uuid.NewString(), StartedAt: start.UTC()}
	defer metrics.ObserveSince(metrics.SyncDuration, start)

	windowStart, err := s.windowStart(opts, start)
	if err != nil {
		return s.fail(summary, "invalid_window", err)
	}
	summary.WindowStart = windowStart

	// ==================== STEP 1: AUTHENTICATE ====================
	token, err := s.feed.Authenticate(ctx)
	if err != nil {
		return s.abort(summary, err)
	}

	// ==================== STEP 2: PRELOAD LOCAL STATE ====================
	syncUserID, err := s.userRepo.EnsureSystemUser(ctx, s.cfg.SyncUsername, userModel.UserTypeSync)
	if err != nil {
		return s.fail(summary, "persistence_failed", model.NewPersistenceError("resolve sync user", err))
	}
	index, err := s.repo.LoadSyncIndex(ctx)
	if err != nil {
		return s.fail(summary, "persistence_failed", model.NewPersistenceError("load sync index", err))
	}

	logger.Info("Observation sync started", map[string]interface{}{
		"run_id":       summary.RunID,
		"window_start": windowStart.Format(time.RFC3339),
		"known":        len(index),
	})

	// ==================== STEP 3: FETCH & CLASSIFY ====================
	plan, err := s.collect(ctx, token, windowStart, index, syncUserID, summary)
	if err != nil {
		return s.abort(summary, err)
	}

	clusterMembers := make(map[int64][]int64, len(plan.clusters))
	for _, clusterID := range sortedKeys(plan.clusters) {
		ids, err := s.feed.FetchClusterMembers(ctx, token, clusterID)
		if err != nil {
			return s.abort(summary, err)
		}
		clusterMembers[clusterID] = ids
		for _, wnID := range ids {
			plan.markMove(index, wnID, &clusterID)
		}
	}
	summary.ClustersTouched = len(clusterMembers)

	// ==================== STEP 4: WRITE IN ONE TRANSACTION ====================
	if err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		return s.persist(ctx, tx, plan, clusterMembers, syncUserID, summary)
	}); err != nil {
		return s.fail(summary, "persistence_failed", err)
	}

	summary.FinishedAt = s.now().UTC()
	metrics.SyncRunsTotal.WithLabelValues("success").Inc()
	metrics.SyncObservationsTotal.WithLabelValues("created").Add(float64(summary.Created))
	metrics.SyncObservationsTotal.WithLabelValues("updated").Add(float64(summary.Updated))
	metrics.SyncObservationsTotal.WithLabelValues("unchanged").Add(float64(summary.Unchanged))
	metrics.SyncObservationsTotal.WithLabelValues("skipped").Add(float64(summary.Skipped))
	metrics.SyncObservationsTotal.WithLabelValues("rejected").Add(float64(summary.Rejected))

	logger.Info("Observation sync finished", map[string]interface{}{
		"run_id":             summary.RunID,
		"fetched":            summary.Fetched,
		"created":            summary.Created,
		"updated":            summary.Updated,
		"unchanged":          summary.Unchanged,
		"skipped":            summary.Skipped,
		"rejected":           summary.Rejected,
		"clusters":           summary.ClustersTouched,
		"visibility_changed": summary.VisibilityChanged,
	})

	// ==================== STEP 5: INVALIDATE MAP CACHE ====================
	if summary.Created+summary.Updated+summary.VisibilityChanged > 0 {
		s.invalidator.InvalidateGeoJSON(ctx, "sync")
	}
	return summary, nil
}

// windowStart resolves the lower bound of the modification window, truncated to midnight UTC.
func (s *syncService) windowStart(opts model.SyncObservationsPayload, now time.Time) (time.Time, error) {
	if opts.Date != "" {
		t, err := time.ParseInLocation(syncDateLayout, opts.Date, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", model.ErrInvalidSyncWindow, opts.Date)
		}
		return t, nil
	}

	weeks := s.cfg.WindowWeeks
	if opts.SinceWeeks > 0 {
		weeks = opts.SinceWeeks
	}
	if weeks <= 0 {
		weeks = 2
	}
	since := now.UTC().AddDate(0, 0, -7*weeks)
	return time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, time.UTC), nil
}

// collect pages through the feed and classifies every mapped record.
func (s *syncService) collect(
	ctx context.Context,
	token *oauth2.Token,
	windowStart time.Time,
	index model.SyncIndex,
	syncUserID int64,
	summary *model.SyncSummary,
) (*syncPlan, error) {
	plan := &syncPlan{
		creates:  make(map[int64]*model.Observation),
		updates:  make(map[int64]*model.Observation),
		clusters: make(map[int64]struct{}),
		vacated:  make(map[int64]struct{}),
	}

	offset := 0
	for {
		page, err := s.feed.FetchPage(ctx, token, windowStart, offset)
		if err != nil {
			return nil, err
		}

		for _, bad := range page.Undecodable {
			summary.Fetched++
			s.reject(summary, model.NewMappingRejection(bad.ExternalID, "undecodable record: %v", bad.Err))
		}

		for _, rec := range page.Results {
			summary.Fetched++

			prior := false
			if rec.ID != nil {
				prior = index[*rec.ID].HasEradicationDate
			}
			obs, err := s.mapper.Map(rec, prior)
			if err != nil {
				var rejection *model.MappingRejection
				if !errors.As(err, &rejection) {
					return nil, err
				}
				s.reject(summary, rejection)
				continue
			}
			s.classify(plan, obs, index, syncUserID, summary)
		}

		offset += page.Len()
		if !page.HasNext() || page.Len() == 0 {
			break
		}
	}
	return plan, nil
}

func (s *syncService) reject(summary *model.SyncSummary, rejection *model.MappingRejection) {
	summary.Rejected++
	logger.Warn("Feed record rejected", map[string]interface{}{
		"run_id":      summary.RunID,
		"external_id": rejection.ExternalID,
		"reason":      rejection.Reason,
	})
}

// classify sorts obs into the create or update set. Rows last modified by a
// person are never overwritten. Repeated records keep the latest version.
func (s *syncService) classify(plan *syncPlan, obs *model.Observation, index model.SyncIndex, syncUserID int64, summary *model.SyncSummary) {
	wnID := *obs.ExternalID
	if obs.WNClusterID != nil {
		plan.clusters[*obs.WNClusterID] = struct{}{}
	}

	state, known := index[wnID]
	switch {
	case !known:
		if prev, dup := plan.creates[wnID]; dup && !newer(obs, prev) {
			return
		}
		plan.creates[wnID] = obs
	case state.ModifiedBy == nil || *state.ModifiedBy != syncUserID:
		summary.Skipped++
	case sameInstant(state.WNModifiedDatetime, obs.WNModifiedDatetime):
		summary.Unchanged++
	default:
		if prev, dup := plan.updates[wnID]; dup && !newer(obs, prev) {
			return
		}
		plan.updates[wnID] = obs
		if obs.WNClusterID != nil {
			plan.markMove(index, wnID, obs.WNClusterID)
		}
	}
}

func (s *syncService) persist(
	ctx context.Context,
	tx pgx.Tx,
	plan *syncPlan,
	clusterMembers map[int64][]int64,
	syncUserID int64,
	summary *model.SyncSummary,
) error {
	now := s.now().UTC()

	for _, batch := range batches(plan.creates, s.cfg.BatchSize) {
		n, err := s.repo.InsertSyncedWithTx(ctx, tx, batch, syncUserID, now)
		if err != nil {
			return model.NewPersistenceError("insert observations", err)
		}
		summary.Created += int(n)
	}

	for _, batch := range batches(plan.updates, s.cfg.BatchSize) {
		n, err := s.repo.UpdateSyncedWithTx(ctx, tx, batch, syncUserID, now)
		if err != nil {
			return model.NewPersistenceError("update observations", err)
		}
		summary.Updated += int(n)
		summary.Unchanged += len(batch) - int(n)
	}

	clusterIDs := sortedKeys(plan.clusters)
	for _, clusterID := range clusterIDs {
		if _, err := s.repo.AssignClusterWithTx(ctx, tx, clusterID, clusterMembers[clusterID], syncUserID); err != nil {
			return model.NewPersistenceError("assign cluster", err)
		}
	}

	recheck := make(map[int64]struct{}, len(plan.clusters)+len(plan.vacated))
	for id := range plan.clusters {
		recheck[id] = struct{}{}
	}
	for id := range plan.vacated {
		recheck[id] = struct{}{}
	}

	members, err := s.repo.ClusterMembersWithTx(ctx, tx, sortedKeys(recheck))
	if err != nil {
		return model.NewPersistenceError("load cluster members", err)
	}
	changed, err := s.repo.SetVisibilityWithTx(ctx, tx, model.ComputeVisibility(members))
	if err != nil {
		return model.NewPersistenceError("update visibility", err)
	}
	summary.VisibilityChanged = int(changed)
	return nil
}

// abort ends a run on a feed failure before anything was written.
func (s *syncService) abort(summary *model.SyncSummary, err error) (*model.SyncSummary, error) {
	summary.Aborted = true
	summary.AbortReason = err.Error()
	outcome := "fetch_failed"
	if errors.Is(err, feed.ErrFatalAuth) {
		outcome = "auth_failed"
	}
	return s.fail(summary, outcome, err)
}

func (s *syncService) fail(summary *model.SyncSummary, outcome string, err error) (*model.SyncSummary, error) {
	summary.FinishedAt = s.now().UTC()
	metrics.SyncRunsTotal.WithLabelValues(outcome).Inc()
	logger.ErrorWithFields("Observation sync failed", err, map[string]interface{}{
		"run_id":  summary.RunID,
		"outcome": outcome,
		"fetched": summary.Fetched,
	})
	return summary, err
}

func newer(a, b *model.Observation) bool {
	if a.WNModifiedDatetime == nil || b.WNModifiedDatetime == nil {
		return true
	}
	return !a.WNModifiedDatetime.Before(*b.WNModifiedDatetime)
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// batches splits m into slices of at most size, ordered by external id.
func batches(m map[int64]*model.Observation, size int) [][]*model.Observation {
	if len(m) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(m)
	}
	var out [][]*model.Observation
	var cur []*model.Observation
	for _, id := range sortedKeys(m) {
		cur = append(cur, m[id])
		if len(cur) == size {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
