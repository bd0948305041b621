package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mindswap/internal/balance"
	"mindswap/internal/pool"
)

// DefaultRefreshInterval is the polling period of the scheduler.
const DefaultRefreshInterval = 30 * time.Second

const (
	collectionPools    = "pools"
	collectionBalances = "balances"
)

// ErrNotRunning is returned by Refresh when the scheduler is not polling.
var ErrNotRunning = errors.New("scheduler is not running")

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// PoolSource fetches and installs pool snapshots.
type PoolSource interface {
	Fetch(ctx context.Context) (*pool.Snapshot, error)
	Install(snap *pool.Snapshot) bool
}

// BalanceSource fetches and installs balance snapshots.
type BalanceSource interface {
	Fetch(ctx context.Context, owner string) (*balance.Snapshot, error)
	Install(snap *balance.Snapshot) bool
}

// Scheduler refreshes pools and balances periodically and on demand. At most
// one fetch per collection is in flight; overlapping requests share it.
type Scheduler struct {
	pools    PoolSource
	balances BalanceSource
	interval time.Duration
	metrics  *Metrics
	logger   *zap.Logger

	group singleflight.Group

	mu      sync.Mutex
	state   State
	epoch   uint64
	started map[string]uint64
	owner   string
	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(pools PoolSource, balances BalanceSource, interval time.Duration, metrics *Metrics, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		pools:    pools,
		balances: balances,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		started:  make(map[string]uint64),
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start refreshes immediately and then every interval until Stop or ctx ends.
// An empty owner polls pools only.
func (s *Scheduler) Start(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePolling {
		return fmt.Errorf("scheduler already running")
	}
	if s.pools == nil {
		return fmt.Errorf("pool source is nil")
	}
	if owner != "" && s.balances == nil {
		return fmt.Errorf("balance source is nil")
	}

	s.epoch++
	s.state = StatePolling
	s.owner = owner
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	s.logger.Info("scheduler started",
		zap.Duration("interval", s.interval),
		zap.String("owner", owner),
		zap.Uint64("epoch", s.epoch),
	)
	go s.loop(s.runCtx, s.done)
	return nil
}

// Stop cancels the ticker and discards any result still in flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != StatePolling {
		s.state = StateStopped
		s.mu.Unlock()
		return
	}
	s.epoch++
	s.state = StateStopped
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("scheduler stopped")
}

// Refresh fetches both collections now and waits for the outcome. Every
// collection is read from the chain after the call began: a fetch that was
// already in flight is awaited and followed by a new one.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StatePolling {
		s.mu.Unlock()
		return ErrNotRunning
	}
	runCtx, epoch, owner := s.runCtx, s.epoch, s.owner
	waits := []*freshWait{{
		start:  func() <-chan singleflight.Result { return s.refreshPools(runCtx, epoch) },
		before: s.started[collectionPools],
	}}
	if owner != "" {
		waits = append(waits, &freshWait{
			start:  func() <-chan singleflight.Result { return s.refreshBalances(runCtx, epoch, owner) },
			before: s.started[collectionBalances],
		})
	}
	s.mu.Unlock()

	for _, w := range waits {
		w.ch = w.start()
	}

	var errs []error
	for _, w := range waits {
		if err := w.wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// freshWait tracks one collection of a Refresh call. before is the number of
// fetches of that collection started before the call.
type freshWait struct {
	start  func() <-chan singleflight.Result
	before uint64
	ch     <-chan singleflight.Result
}

func (w *freshWait) wait(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-w.ch:
			if seq, ok := res.Val.(uint64); ok && seq <= w.before {
				// joined a fetch that predates the call
				w.ch = w.start()
				continue
			}
			return res.Err
		}
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick starts a refresh of each collection without waiting. A collection
// whose previous fetch is still running is skipped.
func (s *Scheduler) tick() {
	s.mu.Lock()
	if s.state != StatePolling {
		s.mu.Unlock()
		return
	}
	runCtx, epoch, owner := s.runCtx, s.epoch, s.owner
	s.mu.Unlock()

	s.refreshPools(runCtx, epoch)
	if owner != "" {
		s.refreshBalances(runCtx, epoch, owner)
	}
}

// begin numbers a fetch of collection. Calls of one run share a key, so a new
// run never joins a fetch left over from a previous one.
func (s *Scheduler) begin(collection string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started[collection]++
	return s.started[collection]
}

func flightKey(collection string, epoch uint64) string {
	return fmt.Sprintf("%s/%d", collection, epoch)
}

func (s *Scheduler) refreshPools(ctx context.Context, epoch uint64) <-chan singleflight.Result {
	return s.group.DoChan(flightKey(collectionPools, epoch), func() (interface{}, error) {
		seq := s.begin(collectionPools)
		start := time.Now()
		snap, err := s.pools.Fetch(ctx)
		s.metrics.RefreshDuration.WithLabelValues(collectionPools).Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.RefreshTotal.WithLabelValues(collectionPools, "error").Inc()
			s.logger.Warn("pool refresh failed, keeping previous snapshot", zap.Error(err))
			return seq, err
		}
		s.metrics.RefreshTotal.WithLabelValues(collectionPools, "ok").Inc()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.state != StatePolling {
			s.metrics.StaleDiscarded.WithLabelValues(collectionPools).Inc()
			s.logger.Debug("discard pool result from previous run", zap.Uint64("epoch", epoch))
			return seq, nil
		}
		if s.pools.Install(snap) {
			s.metrics.PoolsTracked.Set(float64(len(snap.Pools)))
		}
		return seq, nil
	})
}

func (s *Scheduler) refreshBalances(ctx context.Context, epoch uint64, owner string) <-chan singleflight.Result {
	return s.group.DoChan(flightKey(collectionBalances, epoch), func() (interface{}, error) {
		seq := s.begin(collectionBalances)
		start := time.Now()
		snap, err := s.balances.Fetch(ctx, owner)
		s.metrics.RefreshDuration.WithLabelValues(collectionBalances).Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.RefreshTotal.WithLabelValues(collectionBalances, "error").Inc()
			s.logger.Warn("balance refresh failed, keeping previous snapshot", zap.Error(err))
			return seq, err
		}
		s.metrics.RefreshTotal.WithLabelValues(collectionBalances, "ok").Inc()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.state != StatePolling {
			s.metrics.StaleDiscarded.WithLabelValues(collectionBalances).Inc()
			s.logger.Debug("discard balance result from previous run", zap.Uint64("epoch", epoch))
			return seq, nil
		}
		if s.balances.Install(snap) {
			s.metrics.CoinTypesHeld.Set(float64(len(snap.Balances)))
		}
		return seq, nil
	})
}
