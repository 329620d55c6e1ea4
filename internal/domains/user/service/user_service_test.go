package service

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inbo/vespa-db-sub000/internal/config"
	"github.com/inbo/vespa-db-sub000/internal/domains/user/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/user/repository"
)

type stubUsers struct {
	repository.UserRepository
	users map[int64]*model.User
}

func (s *stubUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return u, nil
}

func TestGetProfile(t *testing.T) {
	repo := &stubUsers{users: map[int64]*model.User{
		7: {ID: 7, Username: "jan", ReservationCount: 3, DateJoined: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)},
		8: {ID: 8, Username: "drift", ReservationCount: 60},
	}}
	loc, err := time.LoadLocation("Europe/Brussels")
	require.NoError(t, err)
	svc := NewUserService(repo, config.ReservationConfig{MaxPerUser: 50}, loc)

	p, err := svc.GetProfile(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "jan", p.Username)
	assert.Equal(t, 50, p.MaxReservations)
	assert.Equal(t, 47, p.ReservationsRemaining)
	assert.Equal(t, "2024-01-10T10:00:00+01:00", p.DateJoined.Format(time.RFC3339))

	p, err = svc.GetProfile(context.Background(), 8)
	require.NoError(t, err)
	assert.Zero(t, p.ReservationsRemaining)

	_, err = svc.GetProfile(context.Background(), 9)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}
