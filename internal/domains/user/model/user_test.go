package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcileCounts_ConvergesToTruth(t *testing.T) {
	stored := map[int64]int{1: 5, 2: 0, 3: -2, 4: 3, 5: 7}
	actual := map[int64]int{1: 2, 2: 1, 4: 3}

	corrections := ReconcileCounts(stored, actual)

	assert.Equal(t, []CountCorrection{
		{UserID: 1, Before: 5, After: 2},
		{UserID: 2, Before: 0, After: 1},
		{UserID: 3, Before: -2, After: 0},
		{UserID: 5, Before: 7, After: 0},
	}, corrections)

	applied := make(map[int64]int, len(stored))
	for id, n := range stored {
		applied[id] = n
	}
	for _, c := range corrections {
		applied[c.UserID] = c.After
	}
	for id := range stored {
		assert.Equal(t, actual[id], applied[id], "user %d", id)
	}

	assert.Empty(t, ReconcileCounts(applied, actual), "a second pass changes nothing")
}

func TestUser_IsSystem(t *testing.T) {
	assert.True(t, (&User{UserType: UserTypeSync}).IsSystem())
	assert.False(t, (&User{UserType: UserTypeAdmin}).IsSystem())
}
