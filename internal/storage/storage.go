package storage

import (
	"context"

	"mindswap/internal/model"
)

// Journal records submitted swaps.
type Journal interface {
	RecordSwap(ctx context.Context, rec model.SwapRecord) error
}

// History lists recorded swaps, newest first.
type History interface {
	RecentSwaps(ctx context.Context, limit int) ([]model.SwapRecord, error)
}

// Multi fans a record out to every journal and returns the first error.
type Multi []Journal

func (m Multi) RecordSwap(ctx context.Context, rec model.SwapRecord) error {
	var first error
	for _, j := range m {
		if j == nil {
			continue
		}
		if err := j.RecordSwap(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
