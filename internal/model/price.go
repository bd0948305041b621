package model

import (
	"math/big"
	"time"

	"mindswap/internal/amount"
)

// MarketPrice is a derived session-only price snapshot for a pool.
type MarketPrice struct {
	PoolKey   string    `json:"pool_key"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Quote is the estimated result of swapping AmountIn of From into To.
type Quote struct {
	PoolID          string    `json:"pool_id"`
	From            TokenInfo `json:"from"`
	To              TokenInfo `json:"to"`
	AmountIn        *big.Int  `json:"amount_in"`
	Price           float64   `json:"price"`
	EstimatedOutput *big.Int  `json:"estimated_output"`
	Timestamp       time.Time `json:"timestamp"`
}

// FormattedOutput renders EstimatedOutput in To units.
func (q Quote) FormattedOutput() string {
	return amount.FormatUnits(q.EstimatedOutput, q.To.Decimals())
}

// MarketPrice returns the price snapshot carried by the quote.
func (q Quote) MarketPrice() MarketPrice {
	return MarketPrice{PoolKey: q.PoolID, Price: q.Price, Timestamp: q.Timestamp}
}
