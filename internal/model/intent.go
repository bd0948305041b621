package model

import (
	"fmt"
	"math/big"

	"mindswap/internal/amount"
)

const (
	// MinSlippage is the smallest accepted slippage tolerance (0.1%).
	MinSlippage = 0.001
	// MaxSlippage is the largest accepted slippage tolerance (100%).
	MaxSlippage = 1.0
	// DefaultSlippage is used when the caller does not pick one (1%).
	DefaultSlippage = 0.01
)

// SwapIntent is a validated request to swap Amount of From into To.
type SwapIntent struct {
	From      TokenInfo
	To        TokenInfo
	Amount    string
	AmountRaw *big.Int
	Slippage  float64
}

// NewSwapIntent validates all swap inputs and converts the amount to raw units.
func NewSwapIntent(from, to TokenInfo, amountText string, slippage float64) (SwapIntent, error) {
	if from.IsZero() {
		return SwapIntent{}, &ValidationError{Field: "from", Reason: "token not selected"}
	}
	if to.IsZero() {
		return SwapIntent{}, &ValidationError{Field: "to", Reason: "token not selected"}
	}
	if from.Equal(to) {
		return SwapIntent{}, &ValidationError{Field: "to", Reason: "must differ from input token"}
	}
	if err := ValidateSlippage(slippage); err != nil {
		return SwapIntent{}, err
	}

	raw, err := amount.ParseUnits(amountText, from.Decimals())
	if err != nil {
		return SwapIntent{}, &ValidationError{Field: "amount", Reason: err.Error()}
	}
	if raw.Sign() == 0 {
		return SwapIntent{}, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	return SwapIntent{
		From:      from,
		To:        to,
		Amount:    amountText,
		AmountRaw: raw,
		Slippage:  slippage,
	}, nil
}

// ValidateSlippage rejects tolerances outside [MinSlippage, MaxSlippage].
func ValidateSlippage(slippage float64) error {
	if slippage != slippage || slippage < MinSlippage || slippage > MaxSlippage {
		return &ValidationError{
			Field:  "slippage",
			Reason: fmt.Sprintf("%v outside [%v, %v]", slippage, MinSlippage, MaxSlippage),
		}
	}
	return nil
}

// Pair returns a readable pair label.
func (i SwapIntent) Pair() string {
	return i.From.Symbol() + "/" + i.To.Symbol()
}
