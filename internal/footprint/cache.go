// Package footprint fetches the dataset footprint collection from the
// remote feature service, with a Redis cache in front of it.
package footprint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/jonjones-gis/lidar-picker/internal/core/observability"
)

const keyPrefix = "footprints:"

type CacheOption func(*redis.Options)

func WithPoolSize(n int) CacheOption {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) CacheOption {
	return func(o *redis.Options) { o.DialTimeout = d }
}

// Cache stores raw footprint-service response bodies keyed by query
// digest. Entries expire by TTL and are dropped in bulk on invalidation
// events.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(ctx context.Context, addr string, ttl time.Duration, opts ...CacheOption) (*Cache, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cache{rdb: rdb, ttl: ttl}, nil
}

func (c *Cache) Close() error { return c.rdb.Close() }

// Key digests a footprint query into a cache key.
func Key(serviceURL, category string) string {
	h := xxhash.New()
	_, _ = h.WriteString(serviceURL)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(category)
	return fmt.Sprintf("%s%016x", keyPrefix, h.Sum64())
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.IncCacheMiss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	observability.IncCacheHit()
	return b, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, body []byte) error {
	if err := c.rdb.Set(ctx, key, body, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate drops every cached footprint document.
func (c *Cache) Invalidate(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
