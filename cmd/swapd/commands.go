package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mindswap/internal/api"
	"mindswap/internal/config"
	"mindswap/internal/model"
)

// setup loads config, builds the logger and wires the app.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, *app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		stop()
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	cancel := func() {
		a.Close()
		stop()
		_ = logger.Sync()
	}
	return ctx, cancel, a, nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	ctx, cancel, a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if err := a.scheduler.Start(ctx, a.cfg.Owner); err != nil {
		return err
	}

	if a.cfg.Listen == "" {
		a.logger.Info("api disabled, polling only")
		<-ctx.Done()
		return nil
	}

	var opts []api.Option
	if a.history != nil {
		opts = append(opts, api.WithHistory(a.history))
	}
	if a.prices != nil {
		opts = append(opts, api.WithPriceReader(a.prices))
	}
	srv := api.NewServer(a.engine, a.registry, a.cfg.DefaultSlippage, a.logger, opts...)
	return srv.Run(ctx, a.cfg.Listen)
}

func runPools(cmd *cobra.Command, _ []string) error {
	ctx, cancel, a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if err := a.sync(ctx); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), a.engine.Pools())
}

func runBalances(cmd *cobra.Command, _ []string) error {
	ctx, cancel, a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if a.cfg.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if err := a.sync(ctx); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), a.engine.Balances())
}

func runQuote(cmd *cobra.Command, _ []string) error {
	ctx, cancel, a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if err := a.sync(ctx); err != nil {
		return err
	}
	intent, err := intentFromFlags(cmd, a)
	if err != nil {
		return errors.New(model.StatusMessage(err))
	}
	q, err := a.engine.Quote(ctx, intent)
	if err != nil {
		return errors.New(model.StatusMessage(err))
	}

	a.logger.Info("quote",
		zap.String("pair", intent.Pair()),
		zap.String("amount", intent.Amount),
		zap.Float64("price", q.Price),
		zap.String("output", q.FormattedOutput()),
	)
	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"pool_id":          q.PoolID,
		"from":             q.From,
		"to":               q.To,
		"amount_in":        intent.Amount,
		"price":            q.Price,
		"estimated_output": q.FormattedOutput(),
	})
}

func runSwap(cmd *cobra.Command, _ []string) error {
	ctx, cancel, a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if a.cfg.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if a.cfg.SignerURL == "" {
		return fmt.Errorf("signer-rpc is required")
	}
	if err := a.sync(ctx); err != nil {
		return err
	}
	intent, err := intentFromFlags(cmd, a)
	if err != nil {
		return errors.New(model.StatusMessage(err))
	}

	res, err := a.engine.ExecuteSwap(ctx, intent)
	if printErr := printJSON(cmd.OutOrStdout(), res); printErr != nil {
		return printErr
	}
	if err != nil {
		return errors.New(res.Message)
	}
	return nil
}

// runSwaps lists journaled swaps without connecting to the chain.
func runSwaps(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()
	_, history, err := openJournals(ctx, cfg, &closers)
	if err != nil {
		return err
	}
	if history == nil {
		return fmt.Errorf("journal or pg-dsn is required")
	}
	recs, err := history.RecentSwaps(ctx, limit)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []model.SwapRecord{}
	}
	return printJSON(cmd.OutOrStdout(), recs)
}

func intentFromFlags(cmd *cobra.Command, a *app) (model.SwapIntent, error) {
	fromText, _ := cmd.Flags().GetString("from")
	toText, _ := cmd.Flags().GetString("to")
	amountText, _ := cmd.Flags().GetString("amount")
	slippage, _ := cmd.Flags().GetFloat64("slippage")
	if slippage == 0 {
		slippage = a.cfg.DefaultSlippage
	}

	from, err := a.engine.SelectToken(fromText)
	if err != nil {
		return model.SwapIntent{}, err
	}
	to, err := a.engine.SelectToken(toText)
	if err != nil {
		return model.SwapIntent{}, err
	}
	if amountText == "max" {
		amountText = a.engine.MaxAmount(from)
	}
	return model.NewSwapIntent(from, to, amountText, slippage)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
