package model

import (
	"math/big"
	"time"
)

// TransactionRequest is an unsigned Move call handed to the wallet signer.
type TransactionRequest struct {
	ID              string    `json:"id"`
	Sender          string    `json:"sender"`
	PoolID          string    `json:"pool_id"`
	Target          string    `json:"target"`
	TypeArguments   []string  `json:"type_arguments"`
	Arguments       []string  `json:"arguments"`
	AmountIn        *big.Int  `json:"amount_in"`
	MinOutput       *big.Int  `json:"min_output"`
	EstimatedOutput *big.Int  `json:"estimated_output"`
	Slippage        float64   `json:"slippage"`
	CreatedAt       time.Time `json:"created_at"`
}

// SubmitResult is what the signer returns for an executed transaction.
type SubmitResult struct {
	Digest string `json:"digest"`
}

// SwapStatus classifies a swap outcome.
type SwapStatus string

const (
	SwapSucceeded SwapStatus = "success"
	SwapFailed    SwapStatus = "failed"
	SwapRejected  SwapStatus = "rejected"
)

// SwapResult is the typed outcome of ExecuteSwap.
type SwapResult struct {
	Status    SwapStatus `json:"status"`
	Digest    string     `json:"digest,omitempty"`
	Message   string     `json:"message"`
	RequestID string     `json:"request_id,omitempty"`
}

// OK reports whether the swap was submitted successfully.
func (r SwapResult) OK() bool { return r.Status == SwapSucceeded }
