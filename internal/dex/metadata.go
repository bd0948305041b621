package dex

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"mindswap/internal/chain"
	"mindswap/internal/model"
)

// MetadataReader is the subset of the chain client used for coin metadata.
type MetadataReader interface {
	GetCoinMetadata(ctx context.Context, coinType string) (*chain.CoinMetadata, error)
}

// TokenMetaCache caches coin metadata by canonical coin type.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[string]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[string]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(coinType string) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[coinType]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(coinType string, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[coinType] = meta
	c.mu.Unlock()
}

// FetchTokenMeta loads coin metadata via RPC.
func FetchTokenMeta(ctx context.Context, reader MetadataReader, coinType string) (model.TokenMeta, error) {
	meta := model.TokenMeta{
		CoinType: coinType,
		Decimals: model.DefaultDecimals,
		Symbol:   model.SymbolFromCoinType(coinType),
	}
	if reader == nil {
		return meta, fmt.Errorf("metadata reader is nil")
	}

	resp, err := reader.GetCoinMetadata(ctx, coinType)
	if err != nil {
		return meta, err
	}
	if resp == nil {
		return meta, fmt.Errorf("no metadata published for %s", coinType)
	}

	meta.Decimals = resp.Decimals
	meta.Name = resp.Name
	if resp.Symbol != "" {
		meta.Symbol = resp.Symbol
	}
	return meta, nil
}

// ResolveTokenMeta returns cached metadata or fetches it. Lookup failures fall
// back to DefaultDecimals and are not cached, so the next cycle retries.
func ResolveTokenMeta(ctx context.Context, cache *TokenMetaCache, reader MetadataReader, coinType string, logger *zap.Logger) model.TokenMeta {
	if cache != nil {
		if meta, ok := cache.Get(coinType); ok {
			return meta
		}
	}

	meta, err := FetchTokenMeta(ctx, reader, coinType)
	if err != nil {
		if logger != nil {
			logger.Warn("coin metadata unavailable, using default decimals",
				zap.String("coin_type", coinType),
				zap.Uint8("decimals", meta.Decimals),
				zap.Error(err),
			)
		}
		return meta
	}
	if cache != nil {
		cache.Set(coinType, meta)
	}
	return meta
}
