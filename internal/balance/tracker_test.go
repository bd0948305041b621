package balance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindswap/internal/amount"
	"mindswap/internal/chain"
	"mindswap/internal/model"
)

const (
	owner    = "0xabc"
	suiType  = "0x0000000000000000000000000000000000000000000000000000000000000002::sui::SUI"
	usdcType = "0x0000000000000000000000000000000000000000000000000000000000000005::usdc::USDC"
	ethType  = "0x0000000000000000000000000000000000000000000000000000000000000007::eth::ETH"
)

type fakeChain struct {
	pages  [][]chain.ObjectResponse
	meta   map[string]*chain.CoinMetadata
	err    error
	owners []string
	calls  int
}

func (f *fakeChain) GetOwnedObjects(_ context.Context, owner string, query chain.OwnedObjectsQuery, cursor *string, _ int) (chain.ObjectPage, error) {
	f.calls++
	f.owners = append(f.owners, owner)
	if f.err != nil {
		return chain.ObjectPage{}, f.err
	}
	if query.Filter == nil || query.Filter.StructType != coinStructType {
		return chain.ObjectPage{}, fmt.Errorf("unexpected filter")
	}
	idx := 0
	if cursor != nil {
		idx, _ = strconv.Atoi(*cursor)
	}
	if idx >= len(f.pages) {
		return chain.ObjectPage{}, nil
	}
	page := chain.ObjectPage{Data: f.pages[idx]}
	if idx+1 < len(f.pages) {
		next := strconv.Itoa(idx + 1)
		page.NextCursor = &next
		page.HasNextPage = true
	}
	return page, nil
}

func (f *fakeChain) GetCoinMetadata(_ context.Context, coinType string) (*chain.CoinMetadata, error) {
	if m, ok := f.meta[coinType]; ok {
		return m, nil
	}
	return nil, errors.New("metadata unavailable")
}

func coin(t *testing.T, coinType, balance string) chain.ObjectResponse {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"balance": balance})
	require.NoError(t, err)
	objectType := "0x2::coin::Coin<" + coinType + ">"
	return chain.ObjectResponse{Data: &chain.ObjectData{
		ObjectID: "0x99",
		Type:     objectType,
		Content:  &chain.ObjectContent{DataType: "moveObject", Type: objectType, Fields: raw},
	}}
}

func newTestTracker(t *testing.T, fc *fakeChain) *Tracker {
	t.Helper()
	tr, err := NewTracker(Config{}, fc, nil, zap.NewNop())
	require.NoError(t, err)
	tr.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return tr
}

func TestTrackerMergesCoinsAcrossPages(t *testing.T) {
	fc := &fakeChain{
		pages: [][]chain.ObjectResponse{
			{coin(t, "0x2::sui::SUI", "1500000000"), coin(t, usdcType, "2500000")},
			{coin(t, suiType, "500000000"), coin(t, usdcType, "1")},
		},
		meta: map[string]*chain.CoinMetadata{
			suiType:  {Decimals: 9, Symbol: "SUI"},
			usdcType: {Decimals: 6, Symbol: "USDC"},
		},
	}
	tr := newTestTracker(t, fc)

	balances, err := tr.Refresh(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, 2, fc.calls)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000abc", fc.owners[0])

	sui := balances[suiType]
	assert.Equal(t, "2000000000", sui.Raw.String())
	assert.Equal(t, "2.000000000", sui.Formatted)
	assert.Equal(t, 2024, sui.LastUpdated.Year())

	usdc := tr.Balance("0x5::usdc::USDC")
	assert.Equal(t, "2500001", usdc.Raw.String())
	assert.Equal(t, "2.500001", usdc.Formatted)
	assert.Equal(t, uint64(1), tr.Generation())
}

func TestTrackerExactSumAtEighteenDecimals(t *testing.T) {
	values := []string{
		"123456789012345678901234567",
		"1",
		"999999999999999999",
		"340282366920938463463374607431768211455",
	}
	objects := make([]chain.ObjectResponse, 0, len(values))
	want := new(big.Int)
	for _, v := range values {
		objects = append(objects, coin(t, ethType, v))
		n, ok := new(big.Int).SetString(v, 10)
		require.True(t, ok)
		want.Add(want, n)
	}
	fc := &fakeChain{
		pages: [][]chain.ObjectResponse{objects},
		meta:  map[string]*chain.CoinMetadata{ethType: {Decimals: 18, Symbol: "ETH"}},
	}
	tr := newTestTracker(t, fc)

	_, err := tr.Refresh(context.Background(), owner)
	require.NoError(t, err)

	got := tr.Balance(ethType)
	assert.Zero(t, want.Cmp(got.Raw))
	back, err := amount.ParseUnits(got.Formatted, 18)
	require.NoError(t, err)
	assert.Zero(t, want.Cmp(back))
}

func TestTrackerMissingBalanceIsZero(t *testing.T) {
	tr := newTestTracker(t, &fakeChain{})
	b := tr.Balance(usdcType)
	assert.Equal(t, "0", b.Raw.String())
	assert.Equal(t, "0.000000000", b.Formatted)

	_, err := tr.Refresh(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, tr.Balances())
	assert.Equal(t, "0", tr.Balance(usdcType).Raw.String())
}

func TestTrackerFailureKeepsPreviousBalances(t *testing.T) {
	fc := &fakeChain{
		pages: [][]chain.ObjectResponse{{coin(t, suiType, "42")}},
	}
	tr := newTestTracker(t, fc)
	_, err := tr.Refresh(context.Background(), owner)
	require.NoError(t, err)

	fc.err = errors.New("dial tcp: connection refused")
	_, err = tr.Refresh(context.Background(), owner)
	var fetchErr *model.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "42", tr.Balance(suiType).Raw.String())
	assert.Equal(t, uint64(1), tr.Generation())
}

func TestTrackerMetadataFallback(t *testing.T) {
	fc := &fakeChain{pages: [][]chain.ObjectResponse{{coin(t, usdcType, "1000000000")}}}
	tr := newTestTracker(t, fc)

	_, err := tr.Refresh(context.Background(), owner)
	require.NoError(t, err)
	b := tr.Balance(usdcType)
	assert.Equal(t, model.DefaultDecimals, b.Decimals)
	assert.Equal(t, "1.000000000", b.Formatted)
}

func TestTrackerSkipsMalformedCoins(t *testing.T) {
	notCoin := coin(t, suiType, "5")
	notCoin.Data.Type = "0x2::kiosk::Kiosk"
	notCoin.Data.Content.Type = "0x2::kiosk::Kiosk"
	fc := &fakeChain{pages: [][]chain.ObjectResponse{{notCoin, coin(t, suiType, "abc"), coin(t, suiType, "7")}}}
	tr := newTestTracker(t, fc)

	_, err := tr.Refresh(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, "7", tr.Balance(suiType).Raw.String())
}

func TestTrackerInstallRejectsStale(t *testing.T) {
	fc := &fakeChain{pages: [][]chain.ObjectResponse{{coin(t, suiType, "1")}}}
	tr := newTestTracker(t, fc)

	older, err := tr.Fetch(context.Background(), owner)
	require.NoError(t, err)
	newer, err := tr.Fetch(context.Background(), owner)
	require.NoError(t, err)

	assert.True(t, tr.Install(newer))
	assert.False(t, tr.Install(older))
	assert.Equal(t, newer.Generation, tr.Snapshot().Generation)
}

func TestTrackerRejectsBadOwner(t *testing.T) {
	tr := newTestTracker(t, &fakeChain{})
	_, err := tr.Refresh(context.Background(), "wallet")
	var valErr *model.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "owner", valErr.Field)
}

func TestBalancesReturnsCopies(t *testing.T) {
	fc := &fakeChain{pages: [][]chain.ObjectResponse{{coin(t, suiType, "10")}}}
	tr := newTestTracker(t, fc)
	_, err := tr.Refresh(context.Background(), owner)
	require.NoError(t, err)

	tr.Balances()[suiType].Raw.SetInt64(0)
	assert.Equal(t, "10", tr.Balance(suiType).Raw.String())
}

func TestAccumulatorRejectsNegative(t *testing.T) {
	acc := NewAccumulator(suiType)
	require.NoError(t, acc.Add(big.NewInt(3)))
	assert.Error(t, acc.Add(big.NewInt(-1)))
	assert.Error(t, acc.Add(nil))
	assert.Equal(t, "3", acc.Total.String())
	assert.Equal(t, 1, acc.Objects)
}

func TestTrackerListingBeyondPageCapKeepsPreviousBalances(t *testing.T) {
	fc := &fakeChain{
		pages: [][]chain.ObjectResponse{{coin(t, suiType, "1000000000")}},
		meta:  map[string]*chain.CoinMetadata{suiType: {Decimals: 9, Symbol: "SUI"}},
	}
	tr, err := NewTracker(Config{MaxPages: 2}, fc, nil, zap.NewNop())
	require.NoError(t, err)
	_, err = tr.Refresh(context.Background(), owner)
	require.NoError(t, err)

	fc.pages = [][]chain.ObjectResponse{
		{coin(t, suiType, "1000000000")},
		{coin(t, suiType, "1000000000")},
		{coin(t, suiType, "1000000000")},
	}
	_, err = tr.Refresh(context.Background(), owner)
	var fetchErr *model.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "owned coins", fetchErr.Op)
	assert.Equal(t, "1000000000", tr.Balance(suiType).Raw.String())
	assert.Equal(t, uint64(1), tr.Generation())

	tr, err = NewTracker(Config{MaxPages: 3}, fc, nil, zap.NewNop())
	require.NoError(t, err)
	_, err = tr.Refresh(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, "3000000000", tr.Balance(suiType).Raw.String())
}
