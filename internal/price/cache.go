package price

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/camuig/sol-tracker/internal/config"
)

// ErrNotCached is returned by a Cache that holds no entry for a key.
var ErrNotCached = errors.New("price not cached")

// Cache stores the last observed price of an asset with its observation time.
type Cache interface {
	Get(ctx context.Context, assetID string) (float64, time.Time, error)
	Set(ctx context.Context, assetID string, price float64, ts time.Time) error
}

func priceKey(assetID string) string {
	return "price:" + assetID
}

// RedisCache keeps prices in Redis hashes "price:{assetID}" with fields
// "price" and "ts" (unix nanoseconds), so several trackers share one feed.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache connects to Redis and pings it.
func NewRedisCache(ctx context.Context, cfg config.RedisConfig) (*RedisCache, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) Set(ctx context.Context, assetID string, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := c.rdb.HSet(ctx, priceKey(assetID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", assetID, err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, assetID string) (float64, time.Time, error) {
	vals, err := c.rdb.HGetAll(ctx, priceKey(assetID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", assetID, err)
	}
	return decodeEntry(assetID, vals)
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func decodeEntry(assetID string, vals map[string]string) (float64, time.Time, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, ErrNotCached
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, ErrNotCached
	}
	p, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", assetID, err)
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", assetID, err)
	}
	return p, time.Unix(0, tsNano), nil
}

// MemoryCache is the in-process Cache used when Redis is disabled.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	price float64
	ts    time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry)}
}

func (c *MemoryCache) Get(_ context.Context, assetID string) (float64, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[assetID]
	if !ok {
		return 0, time.Time{}, ErrNotCached
	}
	return e.price, e.ts, nil
}

func (c *MemoryCache) Set(_ context.Context, assetID string, price float64, ts time.Time) error {
	c.mu.Lock()
	c.entries[assetID] = entry{price: price, ts: ts}
	c.mu.Unlock()
	return nil
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*MemoryCache)(nil)
)
