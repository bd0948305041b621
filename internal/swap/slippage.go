package swap

import (
	"math/big"

	"mindswap/internal/amount"
	"mindswap/internal/model"
)

// MinOutput returns floor(estimate * (1 - slippage)). The slippage factor is
// taken from the shortest decimal form of the float, so 0.01 is exactly 1/100.
func MinOutput(estimate *big.Int, slippage float64) (*big.Int, error) {
	if err := model.ValidateSlippage(slippage); err != nil {
		return nil, err
	}
	if estimate == nil || estimate.Sign() <= 0 {
		return new(big.Int), nil
	}
	keep := new(big.Rat).Sub(big.NewRat(1, 1), amount.FloatRat(slippage))
	out := new(big.Rat).Mul(new(big.Rat).SetInt(estimate), keep)
	return amount.FloorRat(out), nil
}
