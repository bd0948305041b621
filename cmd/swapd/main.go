package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "swapd",
		Short:        "Token swap quoting and execution engine",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("rpc", "", "full node JSON-RPC URL")
	pf.String("signer-rpc", "", "wallet signer JSON-RPC URL")
	pf.String("owner", "", "wallet address whose balances are tracked")
	pf.String("package-id", "0xdee9", "order book package id")
	pf.String("module", "clob_v2", "order book module name")
	pf.StringSlice("pool-ids", nil, "extra pool object ids (comma-separated)")
	pf.Duration("refresh-interval", 0, "pool and balance polling period (default 30s)")
	pf.Duration("rpc-timeout", 0, "timeout of a single RPC call (default 15s)")
	pf.Int("fetch-concurrency", 0, "parallel pool object reads (default 8)")
	pf.Float64("default-slippage", 0.01, "slippage tolerance used when none is given")
	pf.String("journal", "", "append submitted swaps to this JSONL file")
	pf.String("pg-dsn", "", "Postgres DSN for the swap journal")
	pf.String("redis-addr", "", "Redis address for published prices")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll pools and balances and serve the HTTP API",
		RunE:  runDaemon,
	}
	runCmd.Flags().String("listen", "", "HTTP listen address, empty disables the API")
	root.AddCommand(runCmd)

	root.AddCommand(&cobra.Command{
		Use:   "pools",
		Short: "List discovered pools",
		RunE:  runPools,
	})
	root.AddCommand(&cobra.Command{
		Use:   "balances",
		Short: "Show the owner's token balances",
		RunE:  runBalances,
	})

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Estimate the output of a swap",
		RunE:  runQuote,
	}
	addSwapFlags(quoteCmd)
	root.AddCommand(quoteCmd)

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Build, sign and submit a swap",
		RunE:  runSwap,
	}
	addSwapFlags(swapCmd)
	root.AddCommand(swapCmd)

	swapsCmd := &cobra.Command{
		Use:   "swaps",
		Short: "List journaled swaps, newest first",
		RunE:  runSwaps,
	}
	swapsCmd.Flags().Int("limit", 20, "maximum number of swaps to list")
	root.AddCommand(swapsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSwapFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "input coin type")
	cmd.Flags().String("to", "", "output coin type")
	cmd.Flags().String("amount", "", "input amount in whole tokens, or \"max\"")
	cmd.Flags().Float64("slippage", 0, "slippage tolerance (0.001 - 1.0), 0 uses default-slippage")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
