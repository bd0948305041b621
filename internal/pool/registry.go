package pool

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mindswap/internal/chain"
	"mindswap/internal/dex"
	"mindswap/internal/model"
)

const (
	defaultPageLimit   = 50
	defaultMaxPages    = 20
	defaultConcurrency = 8
)

// ChainReader is the subset of the chain client used for pool discovery.
type ChainReader interface {
	QueryEvents(ctx context.Context, filter chain.EventFilter, cursor *chain.EventID, limit int) (chain.EventPage, error)
	GetObject(ctx context.Context, id string) (chain.ObjectResponse, error)
	GetCoinMetadata(ctx context.Context, coinType string) (*chain.CoinMetadata, error)
}

// Config controls pool discovery.
type Config struct {
	PackageID     string
	Module        string
	StaticPoolIDs []string
	PageLimit     int
	MaxPages      int
	Concurrency   int
}

// Snapshot is an immutable view of the discovered pools.
type Snapshot struct {
	Generation uint64
	FetchedAt  time.Time
	Pools      []model.Pool

	index  map[model.PairKey]int
	tokens map[string]model.TokenInfo
}

// Registry discovers pools and serves lookups from the latest snapshot.
type Registry struct {
	cfg     Config
	chain   ChainReader
	decoder *dex.PoolCreatedDecoder
	meta    *dex.TokenMetaCache
	logger  *zap.Logger

	nextGen atomic.Uint64
	current atomic.Pointer[Snapshot]
}

// NewRegistry builds a Registry. meta may be shared with the balance tracker.
func NewRegistry(cfg Config, chainReader ChainReader, meta *dex.TokenMetaCache, logger *zap.Logger) (*Registry, error) {
	if chainReader == nil {
		return nil, fmt.Errorf("chain reader is nil")
	}
	decoder, err := dex.NewPoolCreatedDecoder(cfg.PackageID, cfg.Module)
	if err != nil {
		return nil, err
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaultPageLimit
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if meta == nil {
		meta = dex.NewTokenMetaCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		cfg:     cfg,
		chain:   chainReader,
		decoder: decoder,
		meta:    meta,
		logger:  logger,
	}, nil
}

// Refresh fetches a new pool set and installs it. On failure the previous
// snapshot stays in place and the error is returned.
func (r *Registry) Refresh(ctx context.Context) ([]model.Pool, error) {
	snap, err := r.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	r.Install(snap)
	return r.Pools(), nil
}

// Fetch reads pools from the chain without touching the installed snapshot.
func (r *Registry) Fetch(ctx context.Context) (*Snapshot, error) {
	gen := r.nextGen.Add(1)

	ids, created, err := r.discover(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]*dex.PoolState, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			resp, err := r.chain.GetObject(gctx, id)
			if err != nil {
				return &model.FetchError{Op: "pool object " + id, Err: err}
			}
			state, err := dex.ParsePoolObject(resp)
			if err != nil {
				r.logger.Warn("skip malformed pool", zap.String("pool", id), zap.Error(err))
				return nil
			}
			states[i] = &state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Generation: gen,
		FetchedAt:  time.Now().UTC(),
		Pools:      make([]model.Pool, 0, len(states)),
		index:      make(map[model.PairKey]int),
		tokens:     make(map[string]model.TokenInfo),
	}
	for _, state := range states {
		if state == nil {
			continue
		}
		p, base, quote, err := r.buildPool(ctx, *state, created[state.PoolID])
		if err != nil {
			r.logger.Warn("skip pool with unusable token", zap.String("pool", state.PoolID), zap.Error(err))
			continue
		}
		snap.add(p, base, quote)
	}

	r.logger.Info("pools fetched",
		zap.Uint64("generation", gen),
		zap.Int("discovered", len(ids)),
		zap.Int("pools", len(snap.Pools)),
		zap.Int("tokens", len(snap.tokens)),
	)
	return snap, nil
}

// Install publishes snap if it is newer than the installed snapshot.
func (r *Registry) Install(snap *Snapshot) bool {
	if snap == nil {
		return false
	}
	for {
		cur := r.current.Load()
		if cur != nil && cur.Generation >= snap.Generation {
			r.logger.Debug("discard stale pool snapshot",
				zap.Uint64("generation", snap.Generation),
				zap.Uint64("installed", cur.Generation),
			)
			return false
		}
		if r.current.CompareAndSwap(cur, snap) {
			return true
		}
	}
}

// Snapshot returns the installed snapshot, or nil before the first refresh.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Generation returns the installed snapshot generation (0 when empty).
func (r *Registry) Generation() uint64 {
	if snap := r.current.Load(); snap != nil {
		return snap.Generation
	}
	return 0
}

// Pools returns a copy of the installed pool list.
func (r *Registry) Pools() []model.Pool {
	snap := r.current.Load()
	if snap == nil {
		return nil
	}
	out := make([]model.Pool, len(snap.Pools))
	for i, p := range snap.Pools {
		out[i] = p.Clone()
	}
	return out
}

// FindPool returns the pool trading a against b in either orientation.
func (r *Registry) FindPool(a, b string) (model.Pool, error) {
	snap := r.current.Load()
	if snap != nil {
		if p, ok := snap.Find(a, b); ok {
			return p, nil
		}
	}
	return model.Pool{}, &model.NoLiquidityError{
		Pair:   model.SymbolFromCoinType(a) + "/" + model.SymbolFromCoinType(b),
		Reason: "no liquidity pool found for this pair",
	}
}

// Tokens returns every token that appears in at least one pool, sorted by symbol.
func (r *Registry) Tokens() []model.TokenInfo {
	snap := r.current.Load()
	if snap == nil {
		return nil
	}
	out := make([]model.TokenInfo, 0, len(snap.tokens))
	for _, tok := range snap.tokens {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol() != out[j].Symbol() {
			return out[i].Symbol() < out[j].Symbol()
		}
		return out[i].Address() < out[j].Address()
	})
	return out
}

// Token returns the tradable token for a coin type.
func (r *Registry) Token(coinType string) (model.TokenInfo, bool) {
	snap := r.current.Load()
	if snap == nil {
		return model.TokenInfo{}, false
	}
	normalized, err := model.NormalizeCoinType(coinType)
	if err != nil {
		return model.TokenInfo{}, false
	}
	tok, ok := snap.tokens[normalized]
	return tok, ok
}

// Find looks up a pool by unordered pair.
func (s *Snapshot) Find(a, b string) (model.Pool, bool) {
	if s == nil {
		return model.Pool{}, false
	}
	idx, ok := s.index[model.NewPairKey(a, b)]
	if !ok {
		return model.Pool{}, false
	}
	return s.Pools[idx].Clone(), true
}

func (s *Snapshot) add(p model.Pool, base, quote model.TokenInfo) {
	key := p.Key()
	if _, exists := s.index[key]; !exists {
		s.index[key] = len(s.Pools)
	}
	s.Pools = append(s.Pools, p)
	s.tokens[base.Address()] = base
	s.tokens[quote.Address()] = quote
}

func (r *Registry) discover(ctx context.Context) ([]string, map[string]dex.PoolCreated, error) {
	seen := make(map[string]struct{})
	created := make(map[string]dex.PoolCreated)
	ids := make([]string, 0, len(r.cfg.StaticPoolIDs))

	for _, raw := range r.cfg.StaticPoolIDs {
		id, err := model.NormalizeAddress(raw)
		if err != nil {
			r.logger.Warn("skip invalid configured pool id", zap.String("pool", raw), zap.Error(err))
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	filter := chain.EventFilter{MoveEventType: r.decoder.EventType()}
	var cursor *chain.EventID
	for page := 0; page < r.cfg.MaxPages; page++ {
		resp, err := r.chain.QueryEvents(ctx, filter, cursor, r.cfg.PageLimit)
		if err != nil {
			return nil, nil, &model.FetchError{Op: "pool events", Err: err}
		}

		for _, event := range resp.Data {
			pc, err := r.decoder.Decode(event)
			if err != nil {
				r.logger.Warn("skip malformed pool event", zap.String("tx", event.ID.TxDigest), zap.Error(err))
				continue
			}
			created[pc.PoolID] = pc
			if _, ok := seen[pc.PoolID]; ok {
				continue
			}
			seen[pc.PoolID] = struct{}{}
			ids = append(ids, pc.PoolID)
		}

		if !resp.HasNextPage || resp.NextCursor == nil {
			return ids, created, nil
		}
		cursor = resp.NextCursor
	}

	return nil, nil, &model.FetchError{Op: "pool events", Err: fmt.Errorf("listing exceeds %d pages", r.cfg.MaxPages)}
}

func (r *Registry) buildPool(ctx context.Context, state dex.PoolState, event dex.PoolCreated) (model.Pool, model.TokenInfo, model.TokenInfo, error) {
	baseMeta := dex.ResolveTokenMeta(ctx, r.meta, r.chain, state.BaseAsset, r.logger)
	quoteMeta := dex.ResolveTokenMeta(ctx, r.meta, r.chain, state.QuoteAsset, r.logger)

	p := model.Pool{
		PoolID:       state.PoolID,
		BaseAsset:    state.BaseAsset,
		QuoteAsset:   state.QuoteAsset,
		TickSize:     orDefault(state.TickSize, event.TickSize),
		LotSize:      orDefault(state.LotSize, event.LotSize),
		MinSize:      orDefault(state.MinSize, event.MinSize),
		BaseScale:    baseMeta.Decimals,
		QuoteScale:   quoteMeta.Decimals,
		BaseBalance:  state.BaseBalance,
		QuoteBalance: state.QuoteBalance,
	}

	base, err := model.TokenFromMeta(baseMeta)
	if err != nil {
		return model.Pool{}, model.TokenInfo{}, model.TokenInfo{}, fmt.Errorf("base token: %w", err)
	}
	quote, err := model.TokenFromMeta(quoteMeta)
	if err != nil {
		return model.Pool{}, model.TokenInfo{}, model.TokenInfo{}, fmt.Errorf("quote token: %w", err)
	}
	return p, base, quote, nil
}

func orDefault(v, fallback uint64) uint64 {
	if v != 0 {
		return v
	}
	return fallback
}
