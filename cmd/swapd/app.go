package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"mindswap/internal/balance"
	"mindswap/internal/cache/redis"
	"mindswap/internal/chain"
	"mindswap/internal/config"
	"mindswap/internal/dex"
	"mindswap/internal/engine"
	"mindswap/internal/pool"
	"mindswap/internal/quote"
	"mindswap/internal/storage"
	"mindswap/internal/storage/postgres"
	"mindswap/internal/swap"
	"mindswap/internal/wallet"
)

// app holds every wired component of one process.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	scheduler *engine.Scheduler
	engine    *engine.Engine
	history   storage.History
	prices    *redis.PriceCache
	closers   []func()
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	chainID, err := client.WaitReady(ctx, cfg.ReadyTimeout)
	if err != nil {
		return nil, fmt.Errorf("rpc not ready: %w", err)
	}
	logger.Info("connected", zap.String("rpc", cfg.RPCURL), zap.String("chain", chainID))

	meta := dex.NewTokenMetaCache()
	registry, err := pool.NewRegistry(pool.Config{
		PackageID:     cfg.PackageID,
		Module:        cfg.Module,
		StaticPoolIDs: cfg.PoolIDs,
		PageLimit:     cfg.PageLimit,
		MaxPages:      cfg.MaxPages,
		Concurrency:   cfg.FetchConcurrency,
	}, client, meta, logger)
	if err != nil {
		return nil, err
	}
	tracker, err := balance.NewTracker(balance.Config{
		PageLimit: cfg.PageLimit,
		MaxPages:  cfg.MaxPages,
	}, client, meta, logger)
	if err != nil {
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(a.registry)
	a.scheduler = engine.NewScheduler(registry, tracker, cfg.RefreshInterval, metrics, logger)

	estimator := quote.NewEstimator()
	builder, err := swap.NewBuilder(swap.Config{
		PackageID: cfg.PackageID,
		Module:    cfg.Module,
		Sender:    cfg.Owner,
	}, estimator, tracker, logger)
	if err != nil {
		return nil, err
	}

	opts := engine.Options{
		Pools:     registry,
		Balances:  tracker,
		Estimator: estimator,
		Builder:   builder,
		Refresher: a.scheduler,
		Metrics:   metrics,
		Logger:    logger,
	}

	if cfg.SignerURL != "" {
		signer, err := wallet.DialRemoteSigner(ctx, cfg.SignerURL, 0, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, signer.Close)
		opts.Signer = signer
	}

	journals, history, err := openJournals(ctx, cfg, &a.closers)
	if err != nil {
		return nil, err
	}
	if len(journals) > 0 {
		opts.Journal = journals
	}
	a.history = history

	if cfg.RedisAddr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		a.prices = redis.NewPriceCache(rc, cfg.PriceTTL)
		opts.Prices = a.prices
	}

	a.engine, err = engine.New(opts)
	if err != nil {
		return nil, err
	}
	ready = true
	return a, nil
}

// openJournals opens the configured swap journals. History reads from
// Postgres when it is configured and from the JSONL file otherwise.
func openJournals(ctx context.Context, cfg config.Config, closers *[]func()) (storage.Multi, storage.History, error) {
	var (
		journals storage.Multi
		history  storage.History
	)
	if cfg.Journal != "" {
		j := storage.NewJsonlJournal(cfg.Journal)
		journals = append(journals, j)
		history = j
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		*closers = append(*closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		journals = append(journals, store)
		history = store
	}
	return journals, history, nil
}

// sync starts the scheduler and waits for the first refresh of both collections.
func (a *app) sync(ctx context.Context) error {
	if err := a.scheduler.Start(ctx, a.cfg.Owner); err != nil {
		return err
	}
	return a.scheduler.Refresh(ctx)
}

// Close stops polling and releases connections in reverse order.
func (a *app) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
