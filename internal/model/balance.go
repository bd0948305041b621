package model

import (
	"math/big"
	"time"

	"mindswap/internal/amount"
)

// TokenBalance is the aggregated wallet holding of one coin type.
type TokenBalance struct {
	Address     string    `json:"address"`
	Raw         *big.Int  `json:"raw_balance"`
	Decimals    uint8     `json:"decimals"`
	Formatted   string    `json:"formatted_balance"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewTokenBalance derives Formatted from raw and decimals.
func NewTokenBalance(address string, raw *big.Int, decimals uint8, updated time.Time) TokenBalance {
	if raw == nil {
		raw = new(big.Int)
	}
	return TokenBalance{
		Address:     address,
		Raw:         new(big.Int).Set(raw),
		Decimals:    decimals,
		Formatted:   amount.FormatUnits(raw, decimals),
		LastUpdated: updated,
	}
}

// Clone returns a deep copy so callers cannot mutate tracker state.
func (b TokenBalance) Clone() TokenBalance {
	out := b
	if b.Raw != nil {
		out.Raw = new(big.Int).Set(b.Raw)
	} else {
		out.Raw = new(big.Int)
	}
	return out
}
