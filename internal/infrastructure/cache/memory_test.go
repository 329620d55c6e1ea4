package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetNXIsExclusive(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	ok, err := c.SetNX(ctx, "lock", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "lock"))
	ok, err = c.SetNX(ctx, "lock", "3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, 15*time.Minute))

	var got map[string]int
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, got["a"])

	now = now.Add(15 * time.Minute)
	found, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCache_DeletePattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	for _, k := range []string{
		"vespadb::/observations/dynamic-geojson?visible=true",
		"vespadb::/observations/dynamic-geojson?min_observation_datetime=2024-04-01T00:00:00/x",
		"vespadb::observations::12",
	} {
		require.NoError(t, c.SetRaw(ctx, k, []byte("x"), 0))
	}

	n, err := c.DeletePattern(ctx, "vespadb::/observations/dynamic-geojson*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	exists, _ := c.Exists(ctx, "vespadb::observations::12")
	assert.True(t, exists)
}

func TestGlobMatch(t *testing.T) {
	assert.True(t, globMatch("a*", "abc/def"))
	assert.True(t, globMatch("a?c", "abc"))
	assert.False(t, globMatch("a?c", "ac"))
	assert.True(t, globMatch("*", ""))
	assert.False(t, globMatch("abc", "abcd"))
}
