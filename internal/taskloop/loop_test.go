package taskloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingyu42/farm-game-sub000/internal/concurrency"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/kv"
	"github.com/xingyu42/farm-game-sub000/internal/testing/gamecfg"
)

func newLoop(t *testing.T, clock clockwork.Clock) (*Loop, kv.Store) {
	t.Helper()
	store := kv.NewMemory()
	locks := concurrency.NewLockManager(store, clockwork.NewRealClock())
	return New(locks, gamecfg.NewRegistry(t), clock), store
}

func TestRunJobSuccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l, _ := newLoop(t, clock)

	calls := 0
	j := &job{name: "dispatch", run: func(context.Context) error {
		calls++
		return nil
	}}
	cfg, ok := l.registry.Snapshot().Tasks.For("dispatch")
	require.True(t, ok)

	require.NoError(t, l.runJob(context.Background(), j, cfg))
	assert.Equal(t, 1, calls)
}

func TestRunJobTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l, _ := newLoop(t, clock)

	released := make(chan struct{})
	j := &job{name: "dispatch", run: func(ctx context.Context) error {
		<-ctx.Done()
		close(released)
		return ctx.Err()
	}}
	cfg, _ := l.registry.Snapshot().Tasks.For("dispatch")

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.runJob(context.Background(), j, cfg)
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Duration(cfg.Timeout) * time.Millisecond)

	err := <-errCh
	require.ErrorIs(t, err, domain.ErrTaskTimeout)
	<-released // body saw the cancellation
}

func TestRunJobRetries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l, _ := newLoop(t, clock)

	calls := 0
	j := &job{name: "cleanup", run: func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}}
	cfg, _ := l.registry.Snapshot().Tasks.For("cleanup")
	require.Equal(t, 1, cfg.RetryAttempts)

	require.NoError(t, l.runJob(context.Background(), j, cfg))
	assert.Equal(t, 2, calls)
}

func TestGlobalLockPreventsOverlap(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l, store := newLoop(t, clock)

	// Another process already holds the job lock.
	require.True(t, store.SetNX("lock:scheduler:dispatch", "other", time.Minute))

	calls := 0
	j := &job{name: "dispatch", run: func(context.Context) error {
		calls++
		return nil
	}}
	cfg, _ := l.registry.Snapshot().Tasks.For("dispatch")

	err := l.runJob(context.Background(), j, cfg)
	require.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.Zero(t, calls)
}

func TestDailyWindow(t *testing.T) {
	midnight := time.Date(2026, 8, 26, 0, 0, 30, 0, time.Local)
	clock := clockwork.NewFakeClockAt(midnight)
	l, _ := newLoop(t, clock)

	j := &job{name: "statsReset", daily: true}
	assert.True(t, l.inDailyWindow(j), "first minute after midnight")
	assert.False(t, l.inDailyWindow(j), "at most once per day")

	clock.Advance(24 * time.Hour)
	assert.True(t, l.inDailyWindow(j), "next day opens the window again")

	clock.Advance(2 * time.Hour)
	assert.False(t, l.inDailyWindow(j), "outside the window")
}

func TestStartRunsRegisteredJob(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l, _ := newLoop(t, clock)

	ran := make(chan struct{}, 1)
	l.Register("dispatch", func(context.Context) error {
		ran <- struct{}{}
		return nil
	})

	ctx := context.Background()
	l.Start(ctx)
	l.Start(ctx) // second start is a no-op
	defer l.Stop()

	clock.BlockUntil(1) // ticker armed
	cfg, _ := l.registry.Snapshot().Tasks.For("dispatch")
	clock.Advance(time.Duration(cfg.Interval) * time.Millisecond)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run after one interval")
	}
}

func TestStopIdempotent(t *testing.T) {
	l, _ := newLoop(t, clockwork.NewRealClock())
	l.Register("dispatch", func(context.Context) error { return nil })
	ctx := context.Background()
	l.Start(ctx)
	l.Stop()
	l.Stop()
	assert.False(t, l.running)
}
