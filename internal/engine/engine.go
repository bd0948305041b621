package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mindswap/internal/model"
	"mindswap/internal/quote"
	"mindswap/internal/storage"
	"mindswap/internal/swap"
	"mindswap/internal/wallet"
)

// PoolCatalog is the read side of the pool registry.
type PoolCatalog interface {
	Pools() []model.Pool
	FindPool(a, b string) (model.Pool, error)
	Tokens() []model.TokenInfo
	Token(coinType string) (model.TokenInfo, bool)
}

// BalanceBook is the read side of the balance tracker.
type BalanceBook interface {
	Balances() map[string]model.TokenBalance
	Balance(coinType string) model.TokenBalance
}

// Refresher reconciles collections on demand.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// PriceSink receives every quoted market price.
type PriceSink interface {
	PublishPrice(ctx context.Context, p model.MarketPrice) error
}

// Options wires the engine's collaborators. Journal, Prices and Refresher are
// optional.
type Options struct {
	Pools     PoolCatalog
	Balances  BalanceBook
	Estimator *quote.Estimator
	Builder   *swap.Builder
	Signer    wallet.Signer
	Refresher Refresher
	Journal   storage.Journal
	Prices    PriceSink
	Metrics   *Metrics
	Logger    *zap.Logger
}

// Engine is the surface the presentation layer talks to.
type Engine struct {
	pools     PoolCatalog
	balances  BalanceBook
	estimator *quote.Estimator
	builder   *swap.Builder
	signer    wallet.Signer
	refresher Refresher
	journal   storage.Journal
	prices    PriceSink
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time

	busy atomic.Bool

	mu        sync.RWMutex
	lastQuote *model.Quote
	lastPrice *model.MarketPrice
}

func New(opts Options) (*Engine, error) {
	if opts.Pools == nil {
		return nil, fmt.Errorf("pool catalog is nil")
	}
	if opts.Balances == nil {
		return nil, fmt.Errorf("balance book is nil")
	}
	if opts.Builder == nil {
		return nil, fmt.Errorf("swap builder is nil")
	}
	if opts.Estimator == nil {
		opts.Estimator = quote.NewEstimator()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		pools:     opts.Pools,
		balances:  opts.Balances,
		estimator: opts.Estimator,
		builder:   opts.Builder,
		signer:    opts.Signer,
		refresher: opts.Refresher,
		journal:   opts.Journal,
		prices:    opts.Prices,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (e *Engine) Pools() []model.Pool { return e.pools.Pools() }

func (e *Engine) Balances() map[string]model.TokenBalance { return e.balances.Balances() }

// Tokens returns the tradable token set.
func (e *Engine) Tokens() []model.TokenInfo { return e.pools.Tokens() }

// SelectToken resolves a coin type to a tradable token.
func (e *Engine) SelectToken(coinType string) (model.TokenInfo, error) {
	tok, ok := e.pools.Token(coinType)
	if !ok {
		return model.TokenInfo{}, &model.ValidationError{Field: "token", Reason: coinType + " is not traded by any pool"}
	}
	return tok, nil
}

// MaxAmount returns the whole tracked balance of token, formatted.
func (e *Engine) MaxAmount(token model.TokenInfo) string {
	return e.balances.Balance(token.Address()).Formatted
}

// LastQuote returns the most recent quote, if any.
func (e *Engine) LastQuote() (model.Quote, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastQuote == nil {
		return model.Quote{}, false
	}
	return *e.lastQuote, true
}

// LastPrice returns the price of the most recent quote, if any.
func (e *Engine) LastPrice() (model.MarketPrice, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastPrice == nil {
		return model.MarketPrice{}, false
	}
	return *e.lastPrice, true
}

// Quote estimates the output of intent against the current pool snapshot.
func (e *Engine) Quote(ctx context.Context, intent model.SwapIntent) (model.Quote, error) {
	p, err := e.pools.FindPool(intent.From.Address(), intent.To.Address())
	if err != nil {
		return model.Quote{}, err
	}
	q, err := e.estimator.EstimateOutput(p, intent.AmountRaw, intent.From, intent.To)
	if err != nil {
		return model.Quote{}, err
	}

	price := q.MarketPrice()
	e.mu.Lock()
	e.lastQuote = &q
	e.lastPrice = &price
	e.mu.Unlock()

	if e.prices != nil {
		if err := e.prices.PublishPrice(ctx, price); err != nil {
			e.logger.Warn("publish price failed", zap.String("pool", price.PoolKey), zap.Error(err))
		}
	}
	return q, nil
}

// ExecuteSwap builds and submits one swap. Concurrent calls are rejected
// with ErrBusy while a submission is in progress. The signer is called at
// most once per invocation.
func (e *Engine) ExecuteSwap(ctx context.Context, intent model.SwapIntent) (model.SwapResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return e.failed(model.ErrBusy), model.ErrBusy
	}
	defer e.busy.Store(false)

	if e.signer == nil {
		err := &model.SubmissionError{Message: "no signer configured"}
		return e.failed(err), err
	}

	p, err := e.pools.FindPool(intent.From.Address(), intent.To.Address())
	if err != nil {
		return e.failed(err), err
	}
	req, err := e.builder.BuildSwap(intent, &p)
	if err != nil {
		return e.failed(err), err
	}

	e.logger.Info("submitting swap",
		zap.String("request", req.ID),
		zap.String("pair", intent.Pair()),
		zap.String("amount", intent.Amount),
		zap.String("min_output", req.MinOutput.String()),
	)
	submitted, submitErr := e.signer.SignAndSubmit(ctx, req)

	result := model.SwapResult{
		Status:    model.SwapSucceeded,
		Digest:    submitted.Digest,
		Message:   model.StatusMessage(submitErr),
		RequestID: req.ID,
	}
	if submitErr != nil {
		result.Status = model.SwapFailed
		var subErr *model.SubmissionError
		if errors.As(submitErr, &subErr) && subErr.Rejected {
			result.Status = model.SwapRejected
		}
	}
	e.metrics.SwapsTotal.WithLabelValues(string(result.Status)).Inc()
	e.record(ctx, req, intent, result)

	if submitErr != nil {
		e.logger.Warn("swap failed", zap.String("request", req.ID), zap.String("status", string(result.Status)), zap.Error(submitErr))
		return result, submitErr
	}

	e.logger.Info("swap submitted", zap.String("request", req.ID), zap.String("digest", result.Digest))
	e.mu.Lock()
	e.lastQuote = nil
	e.mu.Unlock()

	if e.refresher != nil {
		if err := e.refresher.Refresh(ctx); err != nil {
			e.logger.Warn("post-swap refresh failed", zap.Error(err))
		}
	}
	return result, nil
}

func (e *Engine) failed(err error) model.SwapResult {
	if !errors.Is(err, model.ErrBusy) {
		e.metrics.SwapsTotal.WithLabelValues(string(model.SwapFailed)).Inc()
	}
	return model.SwapResult{
		Status:  model.SwapFailed,
		Message: model.StatusMessage(err),
	}
}

func (e *Engine) record(ctx context.Context, req model.TransactionRequest, intent model.SwapIntent, result model.SwapResult) {
	if e.journal == nil {
		return
	}
	rec := model.NewSwapRecord(req, intent, result, e.now())
	if err := e.journal.RecordSwap(ctx, rec); err != nil {
		e.logger.Warn("journal swap failed", zap.String("request", req.ID), zap.Error(err))
	}
}
