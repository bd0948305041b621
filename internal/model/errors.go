package model

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a swap is requested while another is being submitted.
var ErrBusy = errors.New("swap already in progress")

// FetchError reports a failed or malformed collaborator read. Callers keep
// their previous cache and retry on the next cycle.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NoLiquidityError reports a missing pool or an empty reserve.
type NoLiquidityError struct {
	Pair   string
	Reason string
}

func (e *NoLiquidityError) Error() string {
	return fmt.Sprintf("no liquidity for %s: %s", e.Pair, e.Reason)
}

// ValidationError reports bad user input; it is raised before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionError carries the signer's failure or rejection message.
// Rejected is set when the wallet declined to sign.
type SubmissionError struct {
	Message  string
	Rejected bool
	Err      error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submit swap: %s: %v", e.Message, e.Err)
	}
	return "submit swap: " + e.Message
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// StatusMessage maps an error to the user-facing status line for its class.
func StatusMessage(err error) string {
	var (
		fetchErr  *FetchError
		liqErr    *NoLiquidityError
		valErr    *ValidationError
		submitErr *SubmissionError
	)
	switch {
	case err == nil:
		return "Swap successful"
	case errors.Is(err, ErrBusy):
		return "A swap is already being submitted"
	case errors.As(err, &valErr):
		return "Invalid swap request: " + valErr.Reason
	case errors.As(err, &liqErr):
		return "No liquidity pool available for this pair"
	case errors.As(err, &fetchErr):
		return "Failed to load chain data, please retry"
	case errors.As(err, &submitErr):
		return "Swap failed: " + submitErr.Message
	default:
		return "Swap failed"
	}
}
