package cache

import (
	"context"
	"time"
)

// Cache is the contract of the shared key/value store used for GeoJSON
// payloads and the rebuild lock.
type Cache interface {
	// Get decodes the value stored under key into dest.
	// found is false on a miss and dest is left untouched.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// GetRaw returns the stored bytes without decoding them.
	GetRaw(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetRaw stores already encoded bytes under key.
	SetRaw(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only when key does not exist yet. The returned
	// bool reports whether this call created the key.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Delete removes keys.
	Delete(ctx context.Context, keys ...string) error

	// DeletePattern removes every key matching a glob pattern and returns
	// how many keys were removed.
	DeletePattern(ctx context.Context, pattern string) (int64, error)

	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
}
