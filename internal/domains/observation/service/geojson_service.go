package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/singleflight"

	"github.com/inbo/vespa-db-sub000/internal/config"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/repository"
	"github.com/inbo/vespa-db-sub000/internal/metrics"
	"github.com/inbo/vespa-db-sub000/internal/shared"
	"github.com/inbo/vespa-db-sub000/internal/shared/utils"
	"github.com/inbo/vespa-db-sub000/pkg/cache"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// sharedGenerationTimeout bounds an on-demand generation shared by
// concurrent callers. It runs detached from any single request.
const sharedGenerationTimeout = time.Minute

// =====================================================
// GEOJSON SERVICE IMPLEMENTATION
// =====================================================
type geoJSONService struct {
	cfg      config.CacheConfig
	repo     repository.ObservationRepository
	cache    cache.Cache
	enqueuer TaskEnqueuer
	loc      *time.Location
	group    singleflight.Group
}

// NewGeoJSONService wires the map payload pipeline. enqueuer may be nil, in
// which case invalidation does not schedule a rebuild.
func NewGeoJSONService(
	cfg config.CacheConfig,
	repo repository.ObservationRepository,
	c cache.Cache,
	enqueuer TaskEnqueuer,
	loc *time.Location,
) GeoJSONService {
	return &geoJSONService{
		cfg:      cfg,
		repo:     repo,
		cache:    c,
		enqueuer: enqueuer,
		loc:      loc,
	}
}

func (s *geoJSONService) Get(ctx context.Context, params map[string][]string) ([]byte, error) {
	filter, err := model.ParseGeoJSONFilter(params, s.loc)
	if err != nil {
		return nil, err
	}
	key := model.GeoJSONCacheKey(params, s.loc)

	raw, found, err := s.cache.GetRaw(ctx, key)
	if err != nil {
		// A broken cache degrades to direct generation.
		logger.ErrorWithFields("GeoJSON cache read failed", err, map[string]interface{}{"key": key})
	}
	if found {
		metrics.GeoJSONCacheRequestsTotal.WithLabelValues("hit").Inc()
		return raw, nil
	}
	metrics.GeoJSONCacheRequestsTotal.WithLabelValues("miss").Inc()

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedGenerationTimeout)
		defer cancel()

		payload, err := s.generate(genCtx, filter, "on_demand")
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetRaw(genCtx, key, payload, s.cfg.GeoJSONTTL); err != nil {
			logger.ErrorWithFields("GeoJSON cache write failed", err, map[string]interface{}{"key": key})
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *geoJSONService) Generate(ctx context.Context, params map[string][]string) ([]byte, error) {
	filter, err := model.ParseGeoJSONFilter(params, s.loc)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, filter, "direct")
}

func (s *geoJSONService) generate(ctx context.Context, filter model.GeoJSONFilter, source string) ([]byte, error) {
	start := time.Now()
	points, err := s.repo.ListMapPoints(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list map points: %w", err)
	}
	payload, err := json.Marshal(model.NewFeatureCollection(points))
	if err != nil {
		return nil, fmt.Errorf("encode feature collection: %w", err)
	}
	metrics.ObserveSince(metrics.GeoJSONGenerationDuration.WithLabelValues(source), start)
	return payload, nil
}

func (s *geoJSONService) Prewarm(ctx context.Context, name string, params map[string][]string) error {
	filter, err := model.ParseGeoJSONFilter(params, s.loc)
	if err != nil {
		return fmt.Errorf("prewarm %s: %w", name, err)
	}
	payload, err := s.generate(ctx, filter, "prewarm")
	if err != nil {
		return fmt.Errorf("prewarm %s: %w", name, err)
	}

	key := model.GeoJSONCacheKey(params, s.loc)
	if err := s.cache.SetRaw(ctx, key, payload, s.cfg.GeoJSONTTL); err != nil {
		return fmt.Errorf("prewarm %s: store: %w", name, err)
	}

	logger.Info("GeoJSON cache pre-warmed", map[string]interface{}{
		"config": name,
		"key":    key,
		"bytes":  len(payload),
	})
	return nil
}

func (s *geoJSONService) Rebuild(ctx context.Context, reason string) (int, error) {
	acquired, err := s.cache.SetNX(ctx, model.RebuildLockKey, "locked", s.cfg.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("acquire rebuild lock: %w", err)
	}
	if !acquired {
		metrics.RebuildLockContentionTotal.Inc()
		logger.Info("GeoJSON rebuild already running, skipping", map[string]interface{}{"reason": reason})
		return 0, nil
	}
	defer func() {
		// Release even when the caller's context is already done.
		if err := s.cache.Delete(context.WithoutCancel(ctx), model.RebuildLockKey); err != nil {
			logger.Error("Failed to release GeoJSON rebuild lock", err)
		}
	}()

	if s.enqueuer == nil {
		return 0, errors.New("rebuild: no task enqueuer configured")
	}

	var errs []error
	enqueued := 0
	for _, pc := range model.DefaultPrewarmConfigs(s.cfg.PrewarmMinObserved) {
		task, err := utils.NewTask(shared.TypeGenerateGeoJSON, model.GenerateGeoJSONPayload{
			Name:   pc.Name,
			Params: pc.Params,
		}, asynq.Queue(shared.QueueLow), asynq.MaxRetry(2), asynq.Timeout(2*time.Minute))
		if err == nil {
			_, err = s.enqueuer.EnqueueContext(ctx, task)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", pc.Name, err))
			continue
		}
		enqueued++
	}

	logger.Info("GeoJSON rebuild fanned out", map[string]interface{}{
		"reason":   reason,
		"enqueued": enqueued,
		"failed":   len(errs),
	})
	return enqueued, errors.Join(errs...)
}

func (s *geoJSONService) InvalidateGeoJSON(ctx context.Context, reason string) {
	deleted, err := s.cache.DeletePattern(ctx, model.GeoJSONCachePattern)
	if err != nil {
		metrics.CacheInvalidationsTotal.WithLabelValues("failed").Inc()
		logger.ErrorWithFields("GeoJSON cache invalidation failed", err, map[string]interface{}{"reason": reason})
	} else {
		metrics.CacheInvalidationsTotal.WithLabelValues("success").Inc()
		logger.Debug("GeoJSON cache invalidated", map[string]interface{}{
			"reason":  reason,
			"deleted": deleted,
		})
	}

	if s.enqueuer == nil || !s.cfg.PrewarmEnabled {
		return
	}
	task, err := utils.NewTask(shared.TypeRebuildGeoJSONCaches, model.RebuildGeoJSONPayload{Reason: reason},
		asynq.Queue(shared.QueueLow), asynq.MaxRetry(1), asynq.Unique(time.Minute))
	if err == nil {
		_, err = s.enqueuer.EnqueueContext(ctx, task)
	}
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		logger.ErrorWithFields("Failed to schedule GeoJSON rebuild", err, map[string]interface{}{"reason": reason})
	}
}
