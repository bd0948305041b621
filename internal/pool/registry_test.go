package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindswap/internal/chain"
	"mindswap/internal/dex"
	"mindswap/internal/model"
)

const (
	suiType  = "0x0000000000000000000000000000000000000000000000000000000000000002::sui::SUI"
	usdcType = "0x0000000000000000000000000000000000000000000000000000000000000005::usdc::USDC"
	wethType = "0x0000000000000000000000000000000000000000000000000000000000000006::weth::WETH"
)

type fakeChain struct {
	mu        sync.Mutex
	pages     []chain.EventPage
	objects   map[string]chain.ObjectResponse
	meta      map[string]*chain.CoinMetadata
	eventsErr error
	objectErr error
	cursors   []*chain.EventID
}

func (f *fakeChain) QueryEvents(_ context.Context, filter chain.EventFilter, cursor *chain.EventID, limit int) (chain.EventPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventsErr != nil {
		return chain.EventPage{}, f.eventsErr
	}
	f.cursors = append(f.cursors, cursor)
	idx := 0
	if cursor != nil {
		fmt.Sscanf(cursor.EventSeq, "%d", &idx)
	}
	if idx >= len(f.pages) {
		return chain.EventPage{}, nil
	}
	return f.pages[idx], nil
}

func (f *fakeChain) GetObject(_ context.Context, id string) (chain.ObjectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objectErr != nil {
		return chain.ObjectResponse{}, f.objectErr
	}
	resp, ok := f.objects[id]
	if !ok {
		return chain.ObjectResponse{Error: &chain.ObjectError{Code: "notExists", ObjectID: id}}, nil
	}
	return resp, nil
}

func (f *fakeChain) GetCoinMetadata(_ context.Context, coinType string) (*chain.CoinMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta[coinType], nil
}

func poolID(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

func createdEvent(t *testing.T, id int, base, quote string) chain.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"pool_id":     poolID(id),
		"base_asset":  map[string]string{"name": base},
		"quote_asset": map[string]string{"name": quote},
		"tick_size":   "10",
		"lot_size":    "1000",
		"min_size":    "5000",
	})
	require.NoError(t, err)
	return chain.Event{
		ID:         chain.EventID{TxDigest: fmt.Sprintf("tx%d", id), EventSeq: "0"},
		Type:       "0xdee9::clob_v2::PoolCreated",
		ParsedJSON: raw,
	}
}

func poolObject(t *testing.T, id int, base, quote, baseBal, quoteBal string) chain.ObjectResponse {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"base_balance": baseBal, "quote_balance": quoteBal})
	require.NoError(t, err)
	objectType := fmt.Sprintf("0xdee9::clob_v2::Pool<%s, %s>", base, quote)
	return chain.ObjectResponse{Data: &chain.ObjectData{
		ObjectID: poolID(id),
		Type:     objectType,
		Content:  &chain.ObjectContent{DataType: "moveObject", Type: objectType, Fields: raw},
	}}
}

func newFixture(t *testing.T) *fakeChain {
	t.Helper()
	return &fakeChain{
		pages: []chain.EventPage{
			{
				Data:        []chain.Event{createdEvent(t, 1, suiType, usdcType)},
				NextCursor:  &chain.EventID{TxDigest: "tx1", EventSeq: "1"},
				HasNextPage: true,
			},
			{
				Data: []chain.Event{createdEvent(t, 2, wethType, usdcType)},
			},
		},
		objects: map[string]chain.ObjectResponse{
			poolID(1): poolObject(t, 1, suiType, usdcType, "1000000000000", "2000000000"),
			poolID(2): poolObject(t, 2, wethType, usdcType, "500000000", "1500000000000"),
		},
		meta: map[string]*chain.CoinMetadata{
			suiType:  {Decimals: 9, Symbol: "SUI"},
			usdcType: {Decimals: 6, Symbol: "USDC"},
			wethType: {Decimals: 8, Symbol: "WETH"},
		},
	}
}

func newTestRegistry(t *testing.T, fc *fakeChain, cfg Config) *Registry {
	t.Helper()
	if cfg.PackageID == "" {
		cfg.PackageID = "0xdee9"
		cfg.Module = "clob_v2"
	}
	r, err := NewRegistry(cfg, fc, nil, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRegistryRefreshDiscoversPools(t *testing.T) {
	fc := newFixture(t)
	r := newTestRegistry(t, fc, Config{})

	pools, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Len(t, fc.cursors, 2)

	p := pools[0]
	assert.Equal(t, poolID(1), p.PoolID)
	assert.Equal(t, uint8(9), p.BaseScale)
	assert.Equal(t, uint8(6), p.QuoteScale)
	assert.Equal(t, uint64(10), p.TickSize)
	assert.Equal(t, uint64(1000), p.LotSize)
	assert.Equal(t, uint64(5000), p.MinSize)
	assert.Equal(t, "1000000000000", p.BaseBalance.String())

	tokens := r.Tokens()
	require.Len(t, tokens, 3)
	assert.Equal(t, "SUI", tokens[0].Symbol())
	assert.Equal(t, "USDC", tokens[1].Symbol())

	tok, ok := r.Token("0x5::usdc::USDC")
	require.True(t, ok)
	assert.Equal(t, uint8(6), tok.Decimals())
	assert.Equal(t, uint64(1), r.Generation())
}

func TestFindPoolUnordered(t *testing.T) {
	r := newTestRegistry(t, newFixture(t), Config{})
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	pairs := [][2]string{{suiType, usdcType}, {wethType, usdcType}}
	for _, pair := range pairs {
		ab, err := r.FindPool(pair[0], pair[1])
		require.NoError(t, err)
		ba, err := r.FindPool(pair[1], pair[0])
		require.NoError(t, err)
		assert.Equal(t, ab.PoolID, ba.PoolID)
	}

	_, err = r.FindPool(suiType, wethType)
	var liqErr *model.NoLiquidityError
	require.ErrorAs(t, err, &liqErr)
	assert.Equal(t, "SUI/WETH", liqErr.Pair)
}

func TestFindPoolBeforeRefresh(t *testing.T) {
	r := newTestRegistry(t, newFixture(t), Config{})
	_, err := r.FindPool(suiType, usdcType)
	var liqErr *model.NoLiquidityError
	assert.ErrorAs(t, err, &liqErr)
	assert.Nil(t, r.Pools())
}

func TestRegistryFailureKeepsPreviousSnapshot(t *testing.T) {
	fc := newFixture(t)
	r := newTestRegistry(t, fc, Config{})
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	fc.eventsErr = errors.New("connection refused")
	_, err = r.Refresh(context.Background())
	var fetchErr *model.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Len(t, r.Pools(), 2)
	assert.Equal(t, uint64(1), r.Generation())

	fc.eventsErr = nil
	fc.objectErr = errors.New("timeout")
	_, err = r.Refresh(context.Background())
	require.ErrorAs(t, err, &fetchErr)
	assert.Len(t, r.Pools(), 2)
}

func TestRegistrySkipsMalformedRecords(t *testing.T) {
	fc := newFixture(t)
	bad := createdEvent(t, 3, suiType, wethType)
	bad.ParsedJSON = json.RawMessage(`{"pool_id": 12}`)
	fc.pages[1].Data = append(fc.pages[1].Data, bad, createdEvent(t, 4, suiType, wethType))
	fc.objects[poolID(4)] = chain.ObjectResponse{Data: &chain.ObjectData{
		ObjectID: poolID(4),
		Content:  &chain.ObjectContent{Fields: json.RawMessage(`{"base_balance":"1"}`)},
	}}

	r := newTestRegistry(t, fc, Config{})
	pools, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, pools, 2)
}

func TestRegistryStaticPoolIDs(t *testing.T) {
	fc := newFixture(t)
	fc.pages = nil
	r := newTestRegistry(t, fc, Config{StaticPoolIDs: []string{poolID(2), "not-an-id", poolID(2)}})

	pools, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, poolID(2), pools[0].PoolID)
}

func TestRegistryInstallRejectsStaleGeneration(t *testing.T) {
	fc := newFixture(t)
	r := newTestRegistry(t, fc, Config{})

	older, err := r.Fetch(context.Background())
	require.NoError(t, err)
	newer, err := r.Fetch(context.Background())
	require.NoError(t, err)
	require.Greater(t, newer.Generation, older.Generation)

	assert.True(t, r.Install(newer))
	assert.False(t, r.Install(older))
	assert.Equal(t, newer.Generation, r.Generation())
	assert.False(t, r.Install(nil))
}

func TestRegistryPoolsReturnsCopies(t *testing.T) {
	r := newTestRegistry(t, newFixture(t), Config{})
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	pools := r.Pools()
	pools[0].BaseBalance.SetInt64(0)
	assert.Equal(t, "1000000000000", r.Pools()[0].BaseBalance.String())
}

func TestRegistryDiscoveryBeyondPageCapKeepsPreviousSnapshot(t *testing.T) {
	fc := newFixture(t)
	r := newTestRegistry(t, fc, Config{MaxPages: 2})
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	fc.pages[1].NextCursor = &chain.EventID{TxDigest: "tx2", EventSeq: "2"}
	fc.pages[1].HasNextPage = true
	fc.pages = append(fc.pages, chain.EventPage{Data: []chain.Event{createdEvent(t, 5, suiType, wethType)}})

	_, err = r.Refresh(context.Background())
	var fetchErr *model.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "pool events", fetchErr.Op)
	assert.Len(t, r.Pools(), 2)
	assert.Equal(t, uint64(1), r.Generation())
}

func TestRegistrySkipsPoolWithUnusableToken(t *testing.T) {
	fc := newFixture(t)
	meta := dex.NewTokenMetaCache()
	meta.Set(wethType, model.TokenMeta{CoinType: "weth", Decimals: 8, Symbol: "WETH"})
	r, err := NewRegistry(Config{PackageID: "0xdee9", Module: "clob_v2"}, fc, meta, zap.NewNop())
	require.NoError(t, err)

	pools, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, poolID(1), pools[0].PoolID)

	for _, tok := range r.Tokens() {
		assert.NotEmpty(t, tok.Address())
	}
	assert.Len(t, r.Tokens(), 2)
}
