package model

// TokenMeta captures on-chain coin metadata.
type TokenMeta struct {
	CoinType string `json:"coin_type"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}
