package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okx-folio/internal/logging"
	"github.com/okx-folio/internal/models"
)

// PriceCache caches normalized historical price series in Redis. Upstream
// kline calls are the most rate-limited part of the system, so ROI requests
// for the same token and period within the TTL never touch the upstream.
// A nil PriceCache is a valid no-op cache.
type PriceCache struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewPriceCache creates a price series cache with the given TTL
func NewPriceCache(cache *RedisCache, ttl time.Duration) *PriceCache {
	return &PriceCache{cache: cache, ttl: ttl}
}

func priceKey(symbol, period string, limit int) string {
	return fmt.Sprintf("prices:%s:%s:%d", symbol, period, limit)
}

// Get returns the cached series, or (nil, false) on a miss. Cache errors
// are logged and treated as misses; the upstream is the source of truth.
func (p *PriceCache) Get(ctx context.Context, symbol, period string, limit int) ([]models.PricePoint, bool) {
	if p == nil || p.cache == nil {
		return nil, false
	}

	raw, err := p.cache.Client().Get(ctx, priceKey(symbol, period, limit)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.WithError(err).Warn("price cache read failed")
		}
		return nil, false
	}

	var points []models.PricePoint
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		logging.WithError(err).Warn("price cache entry corrupt, dropping")
		_ = p.cache.Client().Del(ctx, priceKey(symbol, period, limit)).Err()
		return nil, false
	}

	return points, true
}

// Put stores a series under the configured TTL
func (p *PriceCache) Put(ctx context.Context, symbol, period string, limit int, points []models.PricePoint) {
	if p == nil || p.cache == nil {
		return
	}

	raw, err := json.Marshal(points)
	if err != nil {
		logging.WithError(err).Warn("price cache marshal failed")
		return
	}

	if err := p.cache.Client().Set(ctx, priceKey(symbol, period, limit), raw, p.ttl).Err(); err != nil {
		logging.WithError(err).Warn("price cache write failed")
	}
}
