package model

import (
	"encoding/json"
	"strings"
)

// DefaultDecimals is assumed for coins whose metadata cannot be read.
const DefaultDecimals uint8 = 9

// TokenInfo identifies a tradable token. Values are immutable; use NewTokenInfo.
type TokenInfo struct {
	symbol   string
	address  string
	decimals uint8
}

// NewTokenInfo builds a TokenInfo from a coin type. An empty symbol falls back
// to the struct name of the coin type.
func NewTokenInfo(coinType, symbol string, decimals uint8) (TokenInfo, error) {
	address, err := NormalizeCoinType(coinType)
	if err != nil {
		return TokenInfo{}, &ValidationError{Field: "token", Reason: err.Error()}
	}
	if strings.TrimSpace(symbol) == "" {
		symbol = SymbolFromCoinType(address)
	}
	return TokenInfo{symbol: symbol, address: address, decimals: decimals}, nil
}

// TokenFromMeta builds a TokenInfo from coin metadata.
func TokenFromMeta(meta TokenMeta) (TokenInfo, error) {
	return NewTokenInfo(meta.CoinType, meta.Symbol, meta.Decimals)
}

func (t TokenInfo) Symbol() string  { return t.symbol }
func (t TokenInfo) Address() string { return t.address }
func (t TokenInfo) Decimals() uint8 { return t.decimals }

// IsZero reports whether the token was never selected.
func (t TokenInfo) IsZero() bool { return t.address == "" }

// Equal compares canonical addresses only.
func (t TokenInfo) Equal(other TokenInfo) bool { return t.address == other.address }

func (t TokenInfo) String() string { return t.symbol }

type tokenInfoJSON struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

func (t TokenInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenInfoJSON{Symbol: t.symbol, Address: t.address, Decimals: t.decimals})
}

// SymbolFromCoinType returns the trailing struct name of a coin type.
func SymbolFromCoinType(coinType string) string {
	if idx := strings.Index(coinType, "<"); idx >= 0 {
		coinType = coinType[:idx]
	}
	parts := strings.Split(coinType, "::")
	return parts[len(parts)-1]
}
