package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dotcommander/courtside/internal/logging"
)

// Cache stores encoded tables by key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CachedSource serves tables from a Cache and falls back to another Source.
// Cache failures are logged and never fail the lookup.
type CachedSource struct {
	next  Source
	cache Cache
	ttl   time.Duration
	log   *logging.Logger
}

// NewCachedSource wraps next with cache.
func NewCachedSource(next Source, cache Cache, ttl time.Duration, log *logging.Logger) *CachedSource {
	return &CachedSource{next: next, cache: cache, ttl: ttl, log: logging.OrNop(log)}
}

func cacheKey(k GameKey) string {
	return "courtside:pbp:" + k.String()
}

// PlayByPlay implements Source.
func (c *CachedSource) PlayByPlay(ctx context.Context, key GameKey) (*Table, error) {
	key = key.Normalize()
	ck := cacheKey(key)

	if s, ok, err := c.cache.Get(ctx, ck); err != nil {
		c.log.Warnw("play-by-play cache read failed", "key", ck, "error", err)
	} else if ok {
		if t, err := Decode(s); err == nil {
			c.log.Debugw("play-by-play cache hit", "key", ck)
			return t, nil
		}
		c.log.Warnw("discarding corrupt cache entry", "key", ck)
	}

	t, err := c.next.PlayByPlay(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, ck, Encode(t), c.ttl); err != nil {
		c.log.Warnw("play-by-play cache write failed", "key", ck, "error", err)
	}
	return t, nil
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the Redis server at url and pings it.
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// Get implements Cache.
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements Cache.
func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Close closes the connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
