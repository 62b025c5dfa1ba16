package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"daypick/internal/market"
)

// CacheStats receives hit and miss outcomes from the read-through layer.
type CacheStats interface {
	CacheHit()
	CacheMiss()
}

// CachedStore decorates a Store with Redis caching of raw day-file bytes.
// Bytes are cached rather than decoded rows so a cache hit and a disk read
// go through the same codec. A nil client bypasses the cache entirely.
type CachedStore struct {
	inner     *Store
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	stats     CacheStats
}

// NewCachedStore wraps inner with a Redis byte cache. If ttl is 0 it
// defaults to 6 hours; an empty namespace defaults to "daypick".
func NewCachedStore(rdb *redis.Client, ttl time.Duration, inner *Store, namespace string) *CachedStore {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	if namespace == "" {
		namespace = "daypick"
	}
	return &CachedStore{inner: inner, rdb: rdb, ttl: ttl, namespace: namespace}
}

// WithStats reports hits and misses to st. Reads served from the cache
// count as hits; reads that reach the disk count as misses.
func (c *CachedStore) WithStats(st CacheStats) *CachedStore {
	c.stats = st
	return c
}

func (c *CachedStore) recordHit() {
	if c.stats != nil {
		c.stats.CacheHit()
	}
}

func (c *CachedStore) recordMiss() {
	if c.stats != nil {
		c.stats.CacheMiss()
	}
}

func (c *CachedStore) key(date time.Time) string {
	return c.namespace + ":market:" + market.DayOf(date).Format(market.DateFormat)
}

// LoadDay returns the decoded day file, checking the cache first and
// falling back to disk. Cached bytes that no longer decode are dropped.
func (c *CachedStore) LoadDay(ctx context.Context, date time.Time) ([]market.DailyBar, error) {
	if c.rdb == nil {
		return c.inner.LoadDay(date)
	}

	key := c.key(date)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
		bars, err := DecodeDay(raw)
		if err == nil {
			c.recordHit()
			return bars, nil
		}
		log.Warn().Str("key", key).Err(err).Msg("dropping undecodable cache entry")
		_ = c.rdb.Del(ctx, key).Err()
	}

	c.recordMiss()
	raw, err := c.inner.DayBytes(date)
	if err != nil {
		return nil, err
	}
	bars, err := DecodeDay(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(c.inner.DayPath(date)), err)
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("failed to cache day file")
	}
	return bars, nil
}

// LoadHistory mirrors Store.LoadHistory with each day read through the
// cache. The day-file directory is still the source of truth for which
// dates exist.
func (c *CachedStore) LoadHistory(ctx context.Context, end time.Time, historyDays int) (*market.History, []market.StockMeta, error) {
	if c.rdb == nil {
		return c.inner.LoadHistory(end, historyDays)
	}
	dates, err := c.inner.Dates(end, historyDays)
	if err != nil {
		return nil, nil, err
	}
	if len(dates) == 0 {
		return nil, nil, errNoDayFiles(c.inner.Dir(), end)
	}
	return assembleHistory(dates, func(d time.Time) ([]market.DailyBar, error) {
		return c.LoadDay(ctx, d)
	})
}

// WriteDay writes through to disk and drops the stale cache entry.
func (c *CachedStore) WriteDay(ctx context.Context, date time.Time, bars []market.DailyBar) error {
	if err := c.inner.WriteDay(date, bars); err != nil {
		return err
	}
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, c.key(date)).Err(); err != nil {
		log.Warn().Str("key", c.key(date)).Err(err).Msg("failed to invalidate day cache")
	}
	return nil
}
