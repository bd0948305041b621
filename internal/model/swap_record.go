package model

import "time"

// SwapRecord is the journal entry written after a swap submission.
type SwapRecord struct {
	RequestID       string     `json:"request_id"`
	Sender          string     `json:"sender"`
	PoolID          string     `json:"pool_id"`
	Target          string     `json:"target"`
	FromToken       string     `json:"from_token"`
	ToToken         string     `json:"to_token"`
	AmountIn        string     `json:"amount_in"`
	MinOutput       string     `json:"min_output"`
	EstimatedOutput string     `json:"estimated_output"`
	Slippage        float64    `json:"slippage"`
	Status          SwapStatus `json:"status"`
	Digest          string     `json:"digest,omitempty"`
	Message         string     `json:"message"`
	CreatedAt       time.Time  `json:"created_at"`
	FinishedAt      time.Time  `json:"finished_at"`
}

// NewSwapRecord combines a submitted request with its outcome.
func NewSwapRecord(req TransactionRequest, intent SwapIntent, result SwapResult, finished time.Time) SwapRecord {
	rec := SwapRecord{
		RequestID:  req.ID,
		Sender:     req.Sender,
		PoolID:     req.PoolID,
		Target:     req.Target,
		FromToken:  intent.From.Address(),
		ToToken:    intent.To.Address(),
		Slippage:   req.Slippage,
		Status:     result.Status,
		Digest:     result.Digest,
		Message:    result.Message,
		CreatedAt:  req.CreatedAt,
		FinishedAt: finished,
	}
	if req.AmountIn != nil {
		rec.AmountIn = req.AmountIn.String()
	}
	if req.MinOutput != nil {
		rec.MinOutput = req.MinOutput.String()
	}
	if req.EstimatedOutput != nil {
		rec.EstimatedOutput = req.EstimatedOutput.String()
	}
	return rec
}
