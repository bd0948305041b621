package swap

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mindswap/internal/model"
	"mindswap/internal/quote"
)

const (
	// DefaultPackageID is the DeepBook package on mainnet.
	DefaultPackageID = "0xdee9"
	// DefaultModule is the order-book module name.
	DefaultModule = "clob_v2"
	// ClockObjectID is the shared clock object.
	ClockObjectID = "0x6"

	funcBaseForQuote = "swap_exact_base_for_quote"
	funcQuoteForBase = "swap_exact_quote_for_base"
)

// BalanceReader returns the tracked balance for a coin type.
type BalanceReader interface {
	Balance(coinType string) model.TokenBalance
}

// Config identifies the swap package and the sending wallet.
type Config struct {
	PackageID string
	Module    string
	Sender    string
}

// Builder turns a validated intent into an unsigned swap call.
type Builder struct {
	packageID string
	module    string
	sender    string
	estimator *quote.Estimator
	balances  BalanceReader
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewBuilder(cfg Config, estimator *quote.Estimator, balances BalanceReader, logger *zap.Logger) (*Builder, error) {
	if cfg.PackageID == "" {
		cfg.PackageID = DefaultPackageID
	}
	if cfg.Module == "" {
		cfg.Module = DefaultModule
	}
	packageID, err := model.NormalizeAddress(cfg.PackageID)
	if err != nil {
		return nil, fmt.Errorf("package id: %w", err)
	}
	sender := cfg.Sender
	if sender != "" {
		if sender, err = model.NormalizeAddress(sender); err != nil {
			return nil, fmt.Errorf("sender: %w", err)
		}
	}
	if estimator == nil {
		estimator = quote.NewEstimator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		packageID: packageID,
		module:    cfg.Module,
		sender:    sender,
		estimator: estimator,
		balances:  balances,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.NewString() },
	}, nil
}

// BuildSwap validates intent against pool and the tracked balance and
// returns the Move call to sign. A nil pool means no pool trades the pair.
func (b *Builder) BuildSwap(intent model.SwapIntent, pool *model.Pool) (model.TransactionRequest, error) {
	if err := model.ValidateSlippage(intent.Slippage); err != nil {
		return model.TransactionRequest{}, err
	}
	if intent.AmountRaw == nil || intent.AmountRaw.Sign() <= 0 {
		return model.TransactionRequest{}, &model.ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if pool == nil {
		return model.TransactionRequest{}, &model.ValidationError{Field: "pool", Reason: "no pool for " + intent.Pair()}
	}
	from, to := intent.From.Address(), intent.To.Address()
	if from == to || !pool.Matches(from, to) {
		return model.TransactionRequest{}, &model.ValidationError{
			Field:  "pool",
			Reason: fmt.Sprintf("pool %s does not trade %s", pool.PoolID, intent.Pair()),
		}
	}

	if b.balances != nil {
		held := b.balances.Balance(from)
		if held.Raw == nil || intent.AmountRaw.Cmp(held.Raw) > 0 {
			return model.TransactionRequest{}, &model.ValidationError{
				Field:  "amount",
				Reason: fmt.Sprintf("%s %s exceeds balance %s", intent.Amount, intent.From.Symbol(), held.Formatted),
			}
		}
	}

	q, err := b.estimator.EstimateOutput(*pool, intent.AmountRaw, intent.From, intent.To)
	if err != nil {
		return model.TransactionRequest{}, err
	}
	minOut, err := MinOutput(q.EstimatedOutput, intent.Slippage)
	if err != nil {
		return model.TransactionRequest{}, err
	}

	function := funcQuoteForBase
	if from == pool.BaseAsset {
		function = funcBaseForQuote
	}

	req := model.TransactionRequest{
		ID:              b.newID(),
		Sender:          b.sender,
		PoolID:          pool.PoolID,
		Target:          b.packageID + "::" + b.module + "::" + function,
		TypeArguments:   []string{pool.BaseAsset, pool.QuoteAsset},
		Arguments:       []string{pool.PoolID, intent.AmountRaw.String(), minOut.String(), ClockObjectID},
		AmountIn:        new(big.Int).Set(intent.AmountRaw),
		MinOutput:       minOut,
		EstimatedOutput: q.EstimatedOutput,
		Slippage:        intent.Slippage,
		CreatedAt:       b.now(),
	}
	b.logger.Debug("swap built",
		zap.String("request", req.ID),
		zap.String("pool", req.PoolID),
		zap.String("target", req.Target),
		zap.String("amount_in", req.AmountIn.String()),
		zap.String("min_output", req.MinOutput.String()),
	)
	return req, nil
}
