package service

import (
	"context"
	"time"

	"github.com/inbo/vespa-db-sub000/internal/config"
	"github.com/inbo/vespa-db-sub000/internal/domains/user/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/user/repository"
)

// UserService exposes the caller's own account.
type UserService interface {
	GetProfile(ctx context.Context, userID int64) (*model.Profile, error)
}

// userService implements UserService
type userService struct {
	repo repository.UserRepository
	cfg  config.ReservationConfig
	loc  *time.Location
}

func NewUserService(repo repository.UserRepository, cfg config.ReservationConfig, loc *time.Location) UserService {
	return &userService{repo: repo, cfg: cfg, loc: loc}
}

// GetProfile returns the account together with its reservation quota.
func (s *userService) GetProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.loc != nil {
		joined := *u
		joined.DateJoined = u.DateJoined.In(s.loc)
		u = &joined
	}

	remaining := s.cfg.MaxPerUser - u.ReservationCount
	if remaining < 0 {
		remaining = 0
	}
	return &model.Profile{
		User:                  u,
		MaxReservations:       s.cfg.MaxPerUser,
		ReservationsRemaining: remaining,
	}, nil
}
