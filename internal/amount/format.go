package amount

import (
	"math/big"
)

// Pow10 returns 10^decimals as a new big.Int.
func Pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// FormatUnits renders a raw integer amount as value / 10^decimals with exactly
// decimals fractional digits. The conversion is integer quotient + remainder,
// so no precision is lost.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		value = new(big.Int)
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	quo, rem := new(big.Int).QuoRem(abs, Pow10(decimals), new(big.Int))

	frac := rem.String()
	if pad := int(decimals) - len(frac); pad > 0 {
		frac = zeros(pad) + frac
	}

	text := quo.String() + "." + frac
	if sign < 0 {
		return "-" + text
	}
	return text
}

// FloorRat truncates a non-negative rational toward zero.
func FloorRat(r *big.Rat) *big.Int {
	if r == nil {
		return new(big.Int)
	}
	return new(big.Int).Quo(r.Num(), r.Denom())
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
