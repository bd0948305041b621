package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindswap/internal/model"
	"mindswap/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS swaps (
	request_id       TEXT PRIMARY KEY,
	sender           TEXT NOT NULL,
	pool_id          TEXT NOT NULL,
	target           TEXT NOT NULL,
	from_token       TEXT NOT NULL,
	to_token         TEXT NOT NULL,
	amount_in        NUMERIC NOT NULL,
	min_output       NUMERIC NOT NULL,
	estimated_output NUMERIC NOT NULL,
	slippage         DOUBLE PRECISION NOT NULL,
	status           TEXT NOT NULL,
	digest           TEXT,
	message          TEXT,
	created_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ NOT NULL
)`

// Store journals swaps into Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the swaps table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// RecordSwap writes a single swap record.
func (s *Store) RecordSwap(ctx context.Context, rec model.SwapRecord) error {
	return s.RecordSwaps(ctx, []model.SwapRecord{rec})
}

// RecordSwaps inserts or updates swap records in one batch.
func (s *Store) RecordSwaps(ctx context.Context, recs []model.SwapRecord) error {
	if len(recs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(`
			INSERT INTO swaps (
				request_id, sender, pool_id, target, from_token, to_token,
				amount_in, min_output, estimated_output, slippage,
				status, digest, message, created_at, finished_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7::text::numeric,$8::text::numeric,$9::text::numeric,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (request_id)
			DO UPDATE SET
				status = EXCLUDED.status,
				digest = EXCLUDED.digest,
				message = EXCLUDED.message,
				finished_at = EXCLUDED.finished_at
		`,
			rec.RequestID,
			rec.Sender,
			rec.PoolID,
			rec.Target,
			rec.FromToken,
			rec.ToToken,
			orZero(rec.AmountIn),
			orZero(rec.MinOutput),
			orZero(rec.EstimatedOutput),
			rec.Slippage,
			string(rec.Status),
			rec.Digest,
			rec.Message,
			rec.CreatedAt,
			rec.FinishedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range recs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RecentSwaps returns the latest swaps, newest first.
func (s *Store) RecentSwaps(ctx context.Context, limit int) ([]model.SwapRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT request_id, sender, pool_id, target, from_token, to_token,
			amount_in::text, min_output::text, estimated_output::text, slippage,
			status, COALESCE(digest, ''), COALESCE(message, ''), created_at, finished_at
		FROM swaps
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SwapRecord
	for rows.Next() {
		var (
			rec    model.SwapRecord
			status string
		)
		if err := rows.Scan(
			&rec.RequestID, &rec.Sender, &rec.PoolID, &rec.Target, &rec.FromToken, &rec.ToToken,
			&rec.AmountIn, &rec.MinOutput, &rec.EstimatedOutput, &rec.Slippage,
			&status, &rec.Digest, &rec.Message, &rec.CreatedAt, &rec.FinishedAt,
		); err != nil {
			return nil, err
		}
		rec.Status = model.SwapStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func orZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

var (
	_ storage.Journal = (*Store)(nil)
	_ storage.History = (*Store)(nil)
)
