package model

import (
	"errors"
	"sort"
	"time"
)

type UserType string

const (
	UserTypeAdmin   UserType = "admin"
	UserTypeRegular UserType = "regular"
	UserTypeSync    UserType = "sync"
	UserTypeImport  UserType = "import"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	UserType         UserType  `json:"user_type"`
	IsStaff          bool      `json:"is_staff"`
	ReservationCount int       `json:"reservation_count"`
	DateJoined       time.Time `json:"date_joined"`
}

// IsSystem reports whether the account is a non-human writer.
func (u *User) IsSystem() bool {
	return u.UserType == UserTypeSync || u.UserType == UserTypeImport
}

// CountCorrection is one counter the audit overwrites.
type CountCorrection struct {
	UserID int64
	Before int
	After  int
}

// ReconcileCounts compares stored counters against the true counts and
// returns a correction for every user whose counter differs. Users missing
// from actual hold no active reservation. Output is ordered by user id.
func ReconcileCounts(stored, actual map[int64]int) []CountCorrection {
	var out []CountCorrection
	for id, before := range stored {
		if after := actual[id]; after != before {
			out = append(out, CountCorrection{UserID: id, Before: before, After: after})
		}
	}
	for id, after := range actual {
		if _, known := stored[id]; !known && after != 0 {
			// Counter row missing entirely; treat as zero.
			out = append(out, CountCorrection{UserID: id, Before: 0, After: after})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Profile is the authenticated user's own view of their account.
type Profile struct {
	*User
	MaxReservations       int `json:"max_reservations"`
	ReservationsRemaining int `json:"reservations_remaining"`
}
