package balance

import (
	"fmt"
	"math/big"
)

// Accumulator sums coin object balances for one coin type.
type Accumulator struct {
	CoinType string
	Total    *big.Int
	Objects  int
}

func NewAccumulator(coinType string) *Accumulator {
	return &Accumulator{
		CoinType: coinType,
		Total:    big.NewInt(0),
	}
}

// Add merges one coin object's balance.
func (a *Accumulator) Add(value *big.Int) error {
	if value == nil {
		return fmt.Errorf("coin %s: nil balance", a.CoinType)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("coin %s: negative balance %s", a.CoinType, value)
	}
	a.Total.Add(a.Total, value)
	a.Objects++
	return nil
}

// Merge folds coin objects into per-type accumulators keyed by coin type.
type Merge map[string]*Accumulator

func (m Merge) Add(coinType string, value *big.Int) error {
	acc, ok := m[coinType]
	if !ok {
		acc = NewAccumulator(coinType)
		m[coinType] = acc
	}
	return acc.Add(value)
}
