// Package cache memoizes reference-data queries (school years, awards,
// keywords, authors per batch) in Redis with a short TTL.
//
// A nil *Cache, or one built without a client, passes every lookup straight
// through to the loader. Redis errors are logged and also fall through, so
// the cache can never make a page fail.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dalemusser/scholarhub/internal/app/system/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL applies when New is given a non-positive ttl.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "scholarhub:"

// Reference-data keys.
const (
	KeySchoolYears = "papers:school_years"
	KeyAwards      = "awards:all"
	KeyKeywords    = "keywords:all"
	KeyStrandCount = "papers:strand_counts"
)

// BatchKey names the cached author list for a grade and school year.
func BatchKey(grade int, year string) string {
	if grade == 11 {
		return "authors:batch:g11:" + year
	}
	return "authors:batch:g12:" + year
}

// BatchPattern matches every BatchKey.
const BatchPattern = "authors:batch:*"

type Cache struct {
	rdb     *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger, metrics: m}
}

func (c *Cache) enabled() bool { return c != nil && c.rdb != nil }

// Remember returns the cached value for key, or calls load and caches its
// result. Values are stored as JSON.
func Remember[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	if !c.enabled() {
		return load(ctx)
	}

	raw, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			c.metrics.CacheLookup("hit")
			return v, nil
		}
		c.logger.Warn("cache entry unreadable; reloading", zap.String("key", key))
	case errors.Is(err, redis.Nil):
		c.metrics.CacheLookup("miss")
	default:
		c.metrics.CacheLookup("error")
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if b, jerr := json.Marshal(v); jerr == nil {
		if serr := c.rdb.Set(ctx, keyPrefix+key, b, c.ttl).Err(); serr != nil {
			c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return v, nil
}

// Invalidate drops keys. Missing keys are ignored.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.enabled() || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	if err := c.rdb.Del(ctx, full...).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// InvalidatePattern drops every key matching a glob pattern such as
// BatchPattern.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) {
	if !c.enabled() {
		return
	}
	iter := c.rdb.Scan(ctx, 0, keyPrefix+pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("cache scan failed", zap.String("pattern", pattern), zap.Error(err))
		return
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			c.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

// Ping checks the Redis connection. A disabled cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Enabled reports whether a Redis client is configured.
func (c *Cache) Enabled() bool { return c.enabled() }
