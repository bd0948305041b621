package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmpty is returned for blank amount strings.
	ErrEmpty = errors.New("amount is empty")
	// ErrNegative is returned for amounts below zero.
	ErrNegative = errors.New("amount is negative")
	// ErrTooPrecise is returned when an amount has more fractional digits than the token supports.
	ErrTooPrecise = errors.New("amount has more fractional digits than token decimals")
)

// ParseUnits converts a decimal string (e.g. "1.25") into raw units for a
// token with the given decimals. It rejects values that cannot be represented
// exactly instead of rounding them.
func ParseUnits(input string, decimals uint8) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmpty
	}

	d, err := decimal.NewFromString(input)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", input, err)
	}
	if d.Sign() < 0 {
		return nil, ErrNegative
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %q (decimals %d)", ErrTooPrecise, input, decimals)
	}
	return shifted.BigInt(), nil
}

// ToRat converts a raw amount with decimals into an exact rational.
func ToRat(raw *big.Int, decimals uint8) *big.Rat {
	if raw == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(raw, Pow10(decimals))
}

// FloatRat converts a float into the rational of its shortest decimal
// representation, so 0.01 becomes exactly 1/100.
func FloatRat(f float64) *big.Rat {
	return decimal.NewFromFloat(f).Rat()
}
