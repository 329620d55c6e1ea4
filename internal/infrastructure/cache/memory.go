package cache

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/inbo/vespa-db-sub000/pkg/cache"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is a process local cache.Cache used by tests and by
// single-process development setups.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ cache.Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCache) lookup(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryCache) store(key string, data []byte, ttl time.Duration) {
	e := memoryEntry{value: data}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
}

func (m *MemoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, found, err := m.GetRaw(ctx, key)
	if err != nil || !found {
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}

func (m *MemoryCache) GetRaw(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return m.SetRaw(ctx, key, data, ttl)
}

func (m *MemoryCache) SetRaw(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *MemoryCache) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := encode(value)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.store(key, data, ttl)
	return true, nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// DeletePattern supports the '*' and '?' wildcards of Redis globs.
func (m *MemoryCache) DeletePattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for k := range m.entries {
		if globMatch(pattern, k) {
			delete(m.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

func globMatch(pattern, s string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for i := len(s); i >= 0; i-- {
				if globMatch(pattern[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
		default:
			if len(s) == 0 || s[0] != pattern[0] {
				return false
			}
		}
		pattern, s = pattern[1:], s[1:]
	}
	return len(s) == 0
}

func (m *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.lookup(key)
	return ok, nil
}

func (m *MemoryCache) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	switch {
	case !ok:
		return -2 * time.Nanosecond, nil
	case e.expiresAt.IsZero():
		return -1 * time.Nanosecond, nil
	default:
		return e.expiresAt.Sub(m.now()), nil
	}
}

func (m *MemoryCache) Ping(context.Context) error { return nil }
