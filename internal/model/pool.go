package model

import (
	"math/big"
)

// Pool is one tradable pair with its reserves.
type Pool struct {
	PoolID       string   `json:"pool_id"`
	BaseAsset    string   `json:"base_asset"`
	QuoteAsset   string   `json:"quote_asset"`
	TickSize     uint64   `json:"tick_size"`
	LotSize      uint64   `json:"lot_size"`
	MinSize      uint64   `json:"min_size"`
	BaseScale    uint8    `json:"base_scale"`
	QuoteScale   uint8    `json:"quote_scale"`
	BaseBalance  *big.Int `json:"base_balance"`
	QuoteBalance *big.Int `json:"quote_balance"`
}

// PairKey is an order-independent key for a token pair.
type PairKey struct {
	A string
	B string
}

// NewPairKey orders a and b canonically.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

func (k PairKey) String() string { return k.A + "/" + k.B }

// Key returns the unordered pair key of the pool.
func (p Pool) Key() PairKey { return NewPairKey(p.BaseAsset, p.QuoteAsset) }

// Matches reports whether the pool trades a against b in either orientation.
func (p Pool) Matches(a, b string) bool {
	return (p.BaseAsset == a && p.QuoteAsset == b) || (p.BaseAsset == b && p.QuoteAsset == a)
}

// Clone deep-copies reserve balances.
func (p Pool) Clone() Pool {
	out := p
	if p.BaseBalance != nil {
		out.BaseBalance = new(big.Int).Set(p.BaseBalance)
	}
	if p.QuoteBalance != nil {
		out.QuoteBalance = new(big.Int).Set(p.QuoteBalance)
	}
	return out
}
