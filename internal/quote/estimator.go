package quote

import (
	"fmt"
	"math/big"
	"time"

	"mindswap/internal/amount"
	"mindswap/internal/model"
)

// Estimator derives spot prices and output estimates from pool reserves.
// It never reads the order book; estimates ignore depth and fees.
type Estimator struct {
	now func() time.Time
}

func NewEstimator() *Estimator {
	return &Estimator{now: func() time.Time { return time.Now().UTC() }}
}

// SpotPrice returns the exact price of one whole `from` token in `to` tokens.
func SpotPrice(pool model.Pool, from, to string) (*big.Rat, error) {
	if !pool.Matches(from, to) || from == to {
		return nil, &model.ValidationError{
			Field:  "pool",
			Reason: fmt.Sprintf("pool %s does not trade %s for %s", pool.PoolID, model.SymbolFromCoinType(from), model.SymbolFromCoinType(to)),
		}
	}
	pair := model.SymbolFromCoinType(pool.BaseAsset) + "/" + model.SymbolFromCoinType(pool.QuoteAsset)
	if pool.BaseBalance == nil || pool.BaseBalance.Sign() <= 0 {
		return nil, &model.NoLiquidityError{Pair: pair, Reason: "base reserve is empty"}
	}
	if pool.QuoteBalance == nil {
		return nil, &model.NoLiquidityError{Pair: pair, Reason: "quote reserve is unknown"}
	}

	// quote per base, both sides in whole units
	price := new(big.Rat).Quo(
		amount.ToRat(pool.QuoteBalance, pool.QuoteScale),
		amount.ToRat(pool.BaseBalance, pool.BaseScale),
	)
	if from == pool.BaseAsset {
		return price, nil
	}
	if price.Sign() == 0 {
		return nil, &model.NoLiquidityError{Pair: pair, Reason: "quote reserve is empty"}
	}
	return price.Inv(price), nil
}

// MarketPrice returns the spot price of from in to units.
func (e *Estimator) MarketPrice(pool model.Pool, from, to model.TokenInfo) (model.MarketPrice, error) {
	price, err := SpotPrice(pool, from.Address(), to.Address())
	if err != nil {
		return model.MarketPrice{}, err
	}
	f, _ := price.Float64()
	return model.MarketPrice{
		PoolKey:   pool.PoolID,
		Price:     f,
		Timestamp: e.now(),
	}, nil
}

// EstimateOutput converts amountIn raw units of from into raw units of to at
// the spot price, truncated to the destination token's decimals.
func (e *Estimator) EstimateOutput(pool model.Pool, amountIn *big.Int, from, to model.TokenInfo) (model.Quote, error) {
	if amountIn == nil || amountIn.Sign() < 0 {
		return model.Quote{}, &model.ValidationError{Field: "amount", Reason: "amount must not be negative"}
	}
	price, err := SpotPrice(pool, from.Address(), to.Address())
	if err != nil {
		return model.Quote{}, err
	}

	out := new(big.Rat).Mul(amount.ToRat(amountIn, from.Decimals()), price)
	out.Mul(out, new(big.Rat).SetInt(amount.Pow10(to.Decimals())))

	f, _ := price.Float64()
	return model.Quote{
		PoolID:          pool.PoolID,
		From:            from,
		To:              to,
		AmountIn:        new(big.Int).Set(amountIn),
		Price:           f,
		EstimatedOutput: amount.FloorRat(out),
		Timestamp:       e.now(),
	}, nil
}
