package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/inbo/vespa-db-sub000/pkg/cache"
)

const scanBatch = 500

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(host, password string, db int) *RedisClient {
	return &RedisClient{
		Client: redis.NewClient(&redis.Options{
			Addr:         host,
			Password:     password,
			DB:           db,
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
	}
}

func (r *RedisClient) Connect(ctx context.Context) error {
	log.Info().Msg("[REDIS] Connecting to Redis...")

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info().Msg("[REDIS] Connected successfully")
	return nil
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

func (r *RedisClient) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// RedisCache implements cache.Cache on top of a go-redis client. Values
// that are not already []byte are JSON encoded.
type RedisCache struct {
	*RedisClient
}

var _ cache.Cache = (*RedisCache)(nil)

func NewRedisCache(client *RedisClient) *RedisCache {
	return &RedisCache{RedisClient: client}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, found, err := c.GetRaw(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode cached value %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) GetRaw(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return c.SetRaw(ctx, key, data, ttl)
}

func (c *RedisCache) SetRaw(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.Client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := encode(value)
	if err != nil {
		return false, err
	}
	ok, err := c.Client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.Client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeletePattern walks the keyspace with SCAN and deletes matches in
// batches, so it never blocks the server the way KEYS would.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)

	for {
		keys, next, err := c.Client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis scan %s: %w", pattern, err)
		}

		if len(keys) > 0 {
			n, err := c.Client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("redis del: %w", err)
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.Client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ttl %s: %w", key, err)
	}
	return ttl, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.HealthCheck(ctx)
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode cache value: %w", err)
		}
		return data, nil
	}
}
