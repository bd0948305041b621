package balance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mindswap/internal/chain"
	"mindswap/internal/dex"
	"mindswap/internal/model"
)

const (
	defaultPageLimit = 50
	defaultMaxPages  = 20

	coinStructType = "0x2::coin::Coin"
)

// ChainReader is the subset of the chain client used for balances.
type ChainReader interface {
	GetOwnedObjects(ctx context.Context, owner string, query chain.OwnedObjectsQuery, cursor *string, limit int) (chain.ObjectPage, error)
	GetCoinMetadata(ctx context.Context, coinType string) (*chain.CoinMetadata, error)
}

// Config controls owned-object paging.
type Config struct {
	PageLimit int
	MaxPages  int
}

// Snapshot is an immutable view of one owner's balances.
type Snapshot struct {
	Generation uint64
	Owner      string
	FetchedAt  time.Time
	Balances   map[string]model.TokenBalance
}

// Tracker keeps the latest balance snapshot for the wallet owner.
type Tracker struct {
	cfg    Config
	chain  ChainReader
	meta   *dex.TokenMetaCache
	logger *zap.Logger
	now    func() time.Time

	nextGen atomic.Uint64
	current atomic.Pointer[Snapshot]
}

func NewTracker(cfg Config, chainReader ChainReader, meta *dex.TokenMetaCache, logger *zap.Logger) (*Tracker, error) {
	if chainReader == nil {
		return nil, fmt.Errorf("chain reader is nil")
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaultPageLimit
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if meta == nil {
		meta = dex.NewTokenMetaCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		cfg:    cfg,
		chain:  chainReader,
		meta:   meta,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Refresh fetches and installs the owner's balances. On failure the previous
// snapshot is kept.
func (t *Tracker) Refresh(ctx context.Context, owner string) (map[string]model.TokenBalance, error) {
	snap, err := t.Fetch(ctx, owner)
	if err != nil {
		return nil, err
	}
	t.Install(snap)
	return t.Balances(), nil
}

// Fetch reads every coin object of owner and sums them per coin type.
func (t *Tracker) Fetch(ctx context.Context, owner string) (*Snapshot, error) {
	gen := t.nextGen.Add(1)

	normalizedOwner, err := model.NormalizeAddress(owner)
	if err != nil {
		return nil, &model.ValidationError{Field: "owner", Reason: err.Error()}
	}

	query := chain.OwnedObjectsQuery{
		Filter:  &chain.ObjectFilter{StructType: coinStructType},
		Options: chain.ObjectOptions{ShowType: true, ShowContent: true},
	}

	merged := make(Merge)
	var cursor *string
	complete := false
	for page := 0; page < t.cfg.MaxPages; page++ {
		resp, err := t.chain.GetOwnedObjects(ctx, normalizedOwner, query, cursor, t.cfg.PageLimit)
		if err != nil {
			return nil, &model.FetchError{Op: "owned coins", Err: err}
		}
		for _, obj := range resp.Data {
			coinType, value, err := dex.ParseCoinObject(obj)
			if err != nil {
				t.logger.Warn("skip malformed coin object", zap.Error(err))
				continue
			}
			if err := merged.Add(coinType, value); err != nil {
				t.logger.Warn("skip coin object", zap.Error(err))
			}
		}
		if !resp.HasNextPage || resp.NextCursor == nil {
			complete = true
			break
		}
		cursor = resp.NextCursor
	}
	if !complete {
		return nil, &model.FetchError{Op: "owned coins", Err: fmt.Errorf("listing exceeds %d pages", t.cfg.MaxPages)}
	}

	stamp := t.now()
	balances := make(map[string]model.TokenBalance, len(merged))
	for coinType, acc := range merged {
		meta := dex.ResolveTokenMeta(ctx, t.meta, t.chain, coinType, t.logger)
		balances[coinType] = model.NewTokenBalance(coinType, acc.Total, meta.Decimals, stamp)
	}

	t.logger.Info("balances fetched",
		zap.Uint64("generation", gen),
		zap.String("owner", normalizedOwner),
		zap.Int("coin_types", len(balances)),
	)
	return &Snapshot{
		Generation: gen,
		Owner:      normalizedOwner,
		FetchedAt:  stamp,
		Balances:   balances,
	}, nil
}

// Install publishes snap if it is newer than the installed snapshot.
func (t *Tracker) Install(snap *Snapshot) bool {
	if snap == nil {
		return false
	}
	for {
		cur := t.current.Load()
		if cur != nil && cur.Generation >= snap.Generation {
			t.logger.Debug("discard stale balance snapshot",
				zap.Uint64("generation", snap.Generation),
				zap.Uint64("installed", cur.Generation),
			)
			return false
		}
		if t.current.CompareAndSwap(cur, snap) {
			return true
		}
	}
}

// Snapshot returns the installed snapshot, or nil before the first refresh.
// Callers must not mutate it.
func (t *Tracker) Snapshot() *Snapshot {
	return t.current.Load()
}

// Generation returns the installed snapshot generation (0 when empty).
func (t *Tracker) Generation() uint64 {
	if snap := t.current.Load(); snap != nil {
		return snap.Generation
	}
	return 0
}

// Balances returns a copy of the installed balances keyed by coin type.
func (t *Tracker) Balances() map[string]model.TokenBalance {
	snap := t.current.Load()
	if snap == nil {
		return map[string]model.TokenBalance{}
	}
	out := make(map[string]model.TokenBalance, len(snap.Balances))
	for k, v := range snap.Balances {
		out[k] = v.Clone()
	}
	return out
}

// Balance returns the balance for coinType, zero when the owner holds none.
func (t *Tracker) Balance(coinType string) model.TokenBalance {
	normalized, err := model.NormalizeCoinType(coinType)
	if err != nil {
		normalized = coinType
	}
	if snap := t.current.Load(); snap != nil {
		if b, ok := snap.Balances[normalized]; ok {
			return b.Clone()
		}
	}
	decimals := model.DefaultDecimals
	if meta, ok := t.meta.Get(normalized); ok {
		decimals = meta.Decimals
	}
	return model.NewTokenBalance(normalized, nil, decimals, time.Time{})
}
