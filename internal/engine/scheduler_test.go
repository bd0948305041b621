package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindswap/internal/balance"
	"mindswap/internal/model"
	"mindswap/internal/pool"
)

type fakePools struct {
	calls    atomic.Int32
	installs atomic.Int32
	gen      atomic.Uint64
	started  chan struct{}
	release  chan struct{}

	mu  sync.Mutex
	err error
}

func newFakePools(blocking bool) *fakePools {
	f := &fakePools{started: make(chan struct{}, 16)}
	if blocking {
		f.release = make(chan struct{})
	}
	return f
}

func (f *fakePools) Fetch(context.Context) (*pool.Snapshot, error) {
	f.calls.Add(1)
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &pool.Snapshot{Generation: f.gen.Add(1), Pools: []model.Pool{{PoolID: "0x1"}}}, nil
}

func (f *fakePools) Install(*pool.Snapshot) bool {
	f.installs.Add(1)
	return true
}

type fakeBalances struct {
	calls    atomic.Int32
	installs atomic.Int32

	mu     sync.Mutex
	owners []string
}

func (f *fakeBalances) Fetch(_ context.Context, owner string) (*balance.Snapshot, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.owners = append(f.owners, owner)
	f.mu.Unlock()
	return &balance.Snapshot{Generation: uint64(f.calls.Load()), Owner: owner}, nil
}

func (f *fakeBalances) Install(*balance.Snapshot) bool {
	f.installs.Add(1)
	return true
}

func waitStarted(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not start")
	}
}

func TestSchedulerTicksDoNotQueue(t *testing.T) {
	fp := newFakePools(true)
	s := NewScheduler(fp, nil, time.Hour, NewMetrics(nil), nil)
	require.NoError(t, s.Start(context.Background(), ""))
	defer s.Stop()

	waitStarted(t, fp.started)
	s.tick()
	s.tick()
	close(fp.release)

	require.Eventually(t, func() bool { return fp.installs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), fp.calls.Load())
}

func TestSchedulerRefreshFetchesAfterInFlightFetch(t *testing.T) {
	fp := newFakePools(true)
	s := NewScheduler(fp, nil, time.Hour, nil, nil)
	require.NoError(t, s.Start(context.Background(), ""))
	defer s.Stop()

	waitStarted(t, fp.started)
	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fp.calls.Load())
	close(fp.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not return")
	}
	assert.Equal(t, int32(2), fp.calls.Load())
	assert.Equal(t, int32(2), fp.installs.Load())
}

func TestSchedulerConcurrentRefreshesShareFetch(t *testing.T) {
	fp := newFakePools(false)
	s := NewScheduler(fp, nil, time.Hour, nil, nil)
	require.NoError(t, s.Start(context.Background(), ""))
	defer s.Stop()
	require.NoError(t, s.Refresh(context.Background()))

	for len(fp.started) > 0 {
		<-fp.started
	}
	fp.release = make(chan struct{})
	before := fp.calls.Load()
	errs := make(chan error, 2)
	go func() { errs <- s.Refresh(context.Background()) }()
	waitStarted(t, fp.started)
	go func() { errs <- s.Refresh(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(fp.release)

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("refresh did not return")
		}
	}
	assert.LessOrEqual(t, fp.calls.Load()-before, int32(2))
}

func TestSchedulerRefreshAfterRestartIgnoresPreviousRun(t *testing.T) {
	fp := newFakePools(true)
	metrics := NewMetrics(nil)
	s := NewScheduler(fp, nil, time.Hour, metrics, nil)
	require.NoError(t, s.Start(context.Background(), ""))
	waitStarted(t, fp.started)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(fp.release)
	}()
	s.Stop()
	require.NoError(t, s.Start(context.Background(), ""))
	defer s.Stop()

	require.NoError(t, s.Refresh(context.Background()))
	assert.GreaterOrEqual(t, fp.installs.Load(), int32(1))
	assert.GreaterOrEqual(t, fp.calls.Load(), int32(2))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.StaleDiscarded.WithLabelValues(collectionPools)) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSchedulerStopDiscardsLateResult(t *testing.T) {
	fp := newFakePools(true)
	metrics := NewMetrics(nil)
	s := NewScheduler(fp, nil, time.Hour, metrics, nil)
	require.NoError(t, s.Start(context.Background(), ""))

	waitStarted(t, fp.started)
	s.Stop()
	assert.Equal(t, StateStopped, s.State())
	close(fp.release)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.StaleDiscarded.WithLabelValues(collectionPools)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), fp.installs.Load())
}

func TestSchedulerLifecycle(t *testing.T) {
	fp := newFakePools(false)
	s := NewScheduler(fp, nil, time.Hour, nil, nil)
	assert.Equal(t, StateIdle, s.State())
	assert.ErrorIs(t, s.Refresh(context.Background()), ErrNotRunning)

	require.NoError(t, s.Start(context.Background(), ""))
	assert.Equal(t, StatePolling, s.State())
	assert.Error(t, s.Start(context.Background(), ""))
	require.NoError(t, s.Refresh(context.Background()))

	s.Stop()
	assert.Equal(t, StateStopped, s.State())
	assert.ErrorIs(t, s.Refresh(context.Background()), ErrNotRunning)
	s.Stop()

	require.NoError(t, s.Start(context.Background(), ""))
	require.NoError(t, s.Refresh(context.Background()))
	s.Stop()
	assert.GreaterOrEqual(t, fp.installs.Load(), int32(2))
}

func TestSchedulerRefreshesBalancesForOwner(t *testing.T) {
	fp := newFakePools(false)
	fb := &fakeBalances{}
	s := NewScheduler(fp, fb, time.Hour, nil, nil)
	require.NoError(t, s.Start(context.Background(), "0xabc"))
	defer s.Stop()

	require.NoError(t, s.Refresh(context.Background()))
	assert.GreaterOrEqual(t, fb.installs.Load(), int32(1))
	fb.mu.Lock()
	assert.Equal(t, "0xabc", fb.owners[0])
	fb.mu.Unlock()
}

func TestSchedulerRefreshReportsFailure(t *testing.T) {
	fp := newFakePools(false)
	boom := &model.FetchError{Op: "pool events", Err: errors.New("connection refused")}
	fp.err = boom
	metrics := NewMetrics(nil)
	s := NewScheduler(fp, nil, time.Hour, metrics, nil)
	require.NoError(t, s.Start(context.Background(), ""))
	defer s.Stop()

	err := s.Refresh(context.Background())
	var fetchErr *model.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, int32(0), fp.installs.Load())
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.RefreshTotal.WithLabelValues(collectionPools, "error")), 1.0)
}

func TestSchedulerStartRequiresBalanceSourceForOwner(t *testing.T) {
	s := NewScheduler(newFakePools(false), nil, time.Hour, nil, nil)
	assert.Error(t, s.Start(context.Background(), "0xabc"))
	assert.Equal(t, StateIdle, s.State())
}

func TestSchedulerPeriodicTicks(t *testing.T) {
	fp := newFakePools(false)
	s := NewScheduler(fp, nil, 10*time.Millisecond, nil, nil)
	require.NoError(t, s.Start(context.Background(), ""))
	require.Eventually(t, func() bool { return fp.installs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	time.Sleep(20 * time.Millisecond)
	after := fp.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, fp.calls.Load())
}

func TestExecuteSwapReconcilesWithFreshFetch(t *testing.T) {
	fp := newFakePools(true)
	s := NewScheduler(fp, nil, time.Hour, nil, nil)
	require.NoError(t, s.Start(context.Background(), ""))
	defer s.Stop()
	waitStarted(t, fp.started)

	h := newHarnessWith(t, s)
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(fp.release)
	}()
	res, err := h.engine.ExecuteSwap(context.Background(), h.intent(t, h.sui, h.usdc, "10"))
	require.NoError(t, err)
	require.True(t, res.OK())

	assert.Equal(t, int32(1), h.signer.calls.Load())
	assert.Equal(t, int32(2), fp.calls.Load())
	assert.Equal(t, int32(2), fp.installs.Load())
}
