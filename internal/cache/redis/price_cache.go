package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mindswap/internal/engine"
	"mindswap/internal/model"
)

// ErrNotFound is returned when no price has been published for a pool.
var ErrNotFound = errors.New("redis: price not found")

// PriceCache stores the latest spot price per pool as a hash at
// "price:{poolID}" with fields "price" and "ts" (Unix nanoseconds).
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache. A positive ttl expires idle keys.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.rdb, ttl: ttl}
}

func priceKey(poolID string) string {
	return "price:" + poolID
}

func priceFields(p model.MarketPrice) map[string]interface{} {
	return map[string]interface{}{
		"price": strconv.FormatFloat(p.Price, 'f', -1, 64),
		"ts":    strconv.FormatInt(p.Timestamp.UnixNano(), 10),
	}
}

// PublishPrice stores the latest price for p.PoolKey.
func (pc *PriceCache) PublishPrice(ctx context.Context, p model.MarketPrice) error {
	key := priceKey(p.PoolKey)
	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, priceFields(p))
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", p.PoolKey, err)
	}
	return nil
}

// GetPrice returns the last published price for a pool.
func (pc *PriceCache) GetPrice(ctx context.Context, poolID string) (model.MarketPrice, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(poolID)).Result()
	if err != nil {
		return model.MarketPrice{}, fmt.Errorf("redis: get price %s: %w", poolID, err)
	}
	return parsePrice(poolID, vals)
}

func parsePrice(poolID string, vals map[string]string) (model.MarketPrice, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return model.MarketPrice{}, ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return model.MarketPrice{}, fmt.Errorf("redis: parse price %s: %w", poolID, err)
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return model.MarketPrice{}, ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return model.MarketPrice{}, fmt.Errorf("redis: parse ts %s: %w", poolID, err)
	}
	return model.MarketPrice{PoolKey: poolID, Price: price, Timestamp: time.Unix(0, tsNano).UTC()}, nil
}

// Compile-time interface check.
var _ engine.PriceSink = (*PriceCache)(nil)
