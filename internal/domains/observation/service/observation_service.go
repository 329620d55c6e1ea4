package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/inbo/vespa-db-sub000/internal/config"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/mapper"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/repository"
	userModel "github.com/inbo/vespa-db-sub000/internal/domains/user/model"
	userRepo "github.com/inbo/vespa-db-sub000/internal/domains/user/repository"
	"github.com/inbo/vespa-db-sub000/internal/metrics"
	"github.com/inbo/vespa-db-sub000/pkg/cache"
	"github.com/inbo/vespa-db-sub000/pkg/database"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// =====================================================
// OBSERVATION SERVICE IMPLEMENTATION
// =====================================================
type observationService struct {
	cfg         config.ReservationConfig
	repo        repository.ObservationRepository
	userRepo    userRepo.UserRepository
	tx          database.TxRunner
	locator     mapper.Locator
	invalidator CacheInvalidator
	detail      cache.Cache
	loc         *time.Location
	now         func() time.Time
}

// Detail entries are not touched by sync writes, so they must stay short lived.
const observationDetailTTL = 2 * time.Minute

func NewObservationService(
	cfg config.ReservationConfig,
	repo repository.ObservationRepository,
	users userRepo.UserRepository,
	tx database.TxRunner,
	locator mapper.Locator,
	invalidator CacheInvalidator,
	detail cache.Cache,
	loc *time.Location,
) ObservationService {
	return &observationService{
		cfg:         cfg,
		repo:        repo,
		userRepo:    users,
		tx:          tx,
		locator:     locator,
		invalidator: invalidator,
		detail:      detail,
		loc:         loc,
		now:         time.Now,
	}
}

// GetByID reads through the per-observation detail cache when one is configured.
func (s *observationService) GetByID(ctx context.Context, id int64) (*model.Observation, error) {
	if s.detail == nil {
		return s.find(ctx, id)
	}

	key := model.ObservationCacheKey(id)
	var cached model.Observation
	found, err := s.detail.Get(ctx, key, &cached)
	if err != nil {
		logger.Warn("Observation cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	} else if found {
		return cached.InLocation(s.loc), nil
	}

	obs, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.detail.Set(ctx, key, obs, observationDetailTTL); err != nil {
		logger.Warn("Observation cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return obs.InLocation(s.loc), nil
}

// find loads id for a response, with timestamps in the civil timezone.
func (s *observationService) find(ctx context.Context, id int64) (*model.Observation, error) {
	obs, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return obs.InLocation(s.loc), nil
}

// invalidate drops the detail entry of id and every dynamic GeoJSON payload.
func (s *observationService) invalidate(ctx context.Context, id int64, reason string) {
	if s.detail != nil {
		if err := s.detail.Delete(ctx, model.ObservationCacheKey(id)); err != nil {
			logger.Warn("Observation cache delete failed", map[string]interface{}{"observation_id": id, "error": err.Error()})
		}
	}
	s.invalidator.InvalidateGeoJSON(ctx, reason)
}

// =====================================================
// RESERVATIONS
// =====================================================

func (s *observationService) Reserve(ctx context.Context, id, userID int64) (*model.ReservationResponse, error) {
	now := s.now().UTC()

	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		obs, err := s.repo.LockByIDWithTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if obs.IsEradicated() {
			return model.ErrAlreadyEradicated
		}
		if obs.ReservedBy != nil || obs.ReservedDatetime != nil {
			return model.ErrAlreadyReserved
		}

		claimed, err := s.repo.ReserveWithTx(ctx, tx, id, userID, now)
		if err != nil {
			return err
		}
		if !claimed {
			return model.ErrAlreadyReserved
		}

		ok, err := s.userRepo.IncrementReservationCountWithTx(ctx, tx, userID, s.cfg.MaxPerUser)
		if err != nil {
			return err
		}
		if !ok {
			return model.ErrReservationLimit
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Observation reserved", map[string]interface{}{
		"observation_id": id,
		"user_id":        userID,
	})
	s.invalidate(ctx, id, "reserve")

	reservedAt := now.In(s.loc)
	return &model.ReservationResponse{
		ID:               id,
		ReservedBy:       &userID,
		ReservedDatetime: &reservedAt,
		Status:           model.StatusReserved,
	}, nil
}

func (s *observationService) Release(ctx context.Context, id, userID int64, isStaff bool) (*model.ReservationResponse, error) {
	now := s.now().UTC()
	var status model.Status

	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		obs, err := s.repo.LockByIDWithTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if obs.ReservedBy == nil {
			return model.ErrNotReserved
		}
		holder := *obs.ReservedBy
		if holder != userID && !isStaff {
			return model.ErrNotReservationHolder
		}

		if err := s.repo.ClearReservationWithTx(ctx, tx, id, userID, now); err != nil {
			return err
		}
		if err := s.userRepo.DecrementReservationCountWithTx(ctx, tx, holder); err != nil {
			return err
		}
		status = model.DeriveStatus(obs.EradicationResult, false, obs.IsEradicated())
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Observation reservation released", map[string]interface{}{
		"observation_id": id,
		"user_id":        userID,
	})
	s.invalidate(ctx, id, "release")

	return &model.ReservationResponse{ID: id, Status: status}, nil
}

// =====================================================
// ERADICATION / LOCATION / DELETE
// =====================================================

func (s *observationService) RecordEradication(ctx context.Context, id, userID int64, req model.EradicationRequest) (*model.Observation, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidEradication, err)
	}
	now := s.now().UTC()

	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		obs, err := s.repo.LockByIDWithTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.repo.RecordEradicationWithTx(ctx, tx, id, req, userID, now); err != nil {
			return err
		}
		// The reservation ends with the eradication.
		if obs.ReservedBy != nil {
			return s.userRepo.DecrementReservationCountWithTx(ctx, tx, *obs.ReservedBy)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Eradication recorded", map[string]interface{}{
		"observation_id": id,
		"user_id":        userID,
		"result":         req.EradicationResult,
	})
	s.invalidate(ctx, id, "eradication")
	return s.find(ctx, id)
}

func (s *observationService) UpdateLocation(ctx context.Context, id, userID int64, req model.LocationUpdateRequest) (*model.Observation, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidLocation, err)
	}

	var geo model.GeoFields
	if s.locator != nil {
		geo.MunicipalityID, geo.ProvinceID, geo.ANB = s.locator.Locate(req.Lon, req.Lat)
	}
	point := model.Point{Lon: req.Lon, Lat: req.Lat}

	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.repo.LockByIDWithTx(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.UpdateLocationWithTx(ctx, tx, id, point, geo, userID, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id, "location")
	return s.find(ctx, id)
}

func (s *observationService) Delete(ctx context.Context, id int64) error {
	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		obs, err := s.repo.LockByIDWithTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteWithTx(ctx, tx, id); err != nil {
			return err
		}
		if obs.ReservedBy != nil {
			return s.userRepo.DecrementReservationCountWithTx(ctx, tx, *obs.ReservedBy)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Observation deleted", map[string]interface{}{"observation_id": id})
	s.invalidate(ctx, id, "delete")
	return nil
}

// =====================================================
// MAINTENANCE
// =====================================================

// ExpireReservations clears reservations made before the start of the civil
// day `days` days ago, plus half-set reservation pairs. Counters are left to
// AuditReservationCounts.
func (s *observationService) ExpireReservations(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = s.cfg.DurationDays
	}
	cutoff := s.expiryCutoff(days)

	n, err := s.repo.ExpireReservations(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.ReservationsExpiredTotal.Add(float64(n))

	logger.Info("Expired reservations swept", map[string]interface{}{
		"cutoff":  cutoff.Format(time.RFC3339),
		"cleared": n,
	})
	if n > 0 {
		if s.detail != nil {
			if _, err := s.detail.DeletePattern(ctx, model.ObservationCachePattern); err != nil {
				logger.Warn("Observation cache delete failed", map[string]interface{}{"error": err.Error()})
			}
		}
		s.invalidator.InvalidateGeoJSON(ctx, "reservation_expiry")
	}
	return n, nil
}

func (s *observationService) expiryCutoff(days int) time.Time {
	t := s.now().In(s.loc).AddDate(0, 0, -days)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc).UTC()
}

func (s *observationService) AuditReservationCounts(ctx context.Context) ([]userModel.CountCorrection, error) {
	var corrections []userModel.CountCorrection

	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		stored, err := s.userRepo.StoredReservationCountsWithTx(ctx, tx)
		if err != nil {
			return err
		}
		actual, err := s.userRepo.ActualReservationCountsWithTx(ctx, tx)
		if err != nil {
			return err
		}

		corrections = userModel.ReconcileCounts(stored, actual)
		if len(corrections) == 0 {
			return nil
		}
		_, err = s.userRepo.SetReservationCountsWithTx(ctx, tx, corrections)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.ReservationCountCorrectionsTotal.Add(float64(len(corrections)))
	for _, c := range corrections {
		logger.Warn("Reservation counter corrected", map[string]interface{}{
			"user_id": c.UserID,
			"before":  c.Before,
			"after":   c.After,
		})
	}
	return corrections, nil
}
