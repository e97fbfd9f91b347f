// Package cache adds Redis caching in front of market-data lookups.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dyike/QuantDesk/models"
)

// SymbolSource lists tradable symbols.
type SymbolSource interface {
	ListSymbols(ctx context.Context) ([]models.Symbol, error)
}

// CachingSymbolSource decorates a SymbolSource with a Redis cache.
// A nil client bypasses the cache entirely.
type CachingSymbolSource struct {
	inner     SymbolSource
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewCachingSymbolSource defaults ttl to one hour and namespace to "symbols".
func NewCachingSymbolSource(rdb *redis.Client, ttl time.Duration, inner SymbolSource, namespace string) *CachingSymbolSource {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if namespace == "" {
		namespace = "symbols"
	}
	return &CachingSymbolSource{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

func (c *CachingSymbolSource) ListSymbols(ctx context.Context) ([]models.Symbol, error) {
	if c.rdb == nil {
		return c.inner.ListSymbols(ctx)
	}

	key := c.key()
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []models.Symbol
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, nil
}

// Invalidate drops the cached listing.
func (c *CachingSymbolSource) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, c.key()).Err()
}

func (c *CachingSymbolSource) key() string {
	return fmt.Sprintf("%s:list", strings.ReplaceAll(c.namespace, " ", "_"))
}

// NewRedisClient connects and pings. An empty addr returns a nil client,
// which callers treat as "cache disabled".
func NewRedisClient(ctx context.Context, addr, password string, logger *slog.Logger) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		logger.Warn("redis connection failed", "address", addr, "error", err)
		return nil, err
	}
	logger.Debug("redis connection successful", "address", addr)
	return rdb, nil
}
