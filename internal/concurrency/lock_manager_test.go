package concurrency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/kv"
)

func newManager(t *testing.T) (*LockManager, *kv.Memory) {
	t.Helper()
	store := kv.NewMemory()
	lm := NewLockManager(store, clockwork.NewRealClock())
	lm.rnd = func() float64 { return 0 }
	return lm, store
}

func TestWithLockRunsBodyAndReleases(t *testing.T) {
	lm, store := newManager(t)

	ran := false
	err := lm.WithLock(context.Background(), "p1", domain.LockPurposePlant, time.Second, func(ctx context.Context) error {
		ran = true
		assert.True(t, store.Exists("lock:p1:plant"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, store.Exists("lock:p1:plant"), "lock released after body")
}

func TestWithLockPropagatesBodyError(t *testing.T) {
	lm, store := newManager(t)

	sentinel := errors.New("boom")
	err := lm.WithLock(context.Background(), "p1", domain.LockPurposeGeneral, time.Second, func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, store.Exists("lock:p1:general"), "lock released on error too")
}

func TestWithLockTimesOutWhenHeld(t *testing.T) {
	lm, store := newManager(t)
	store.Set("lock:p1:plant", "other-holder", 0)

	start := time.Now()
	err := lm.WithLock(context.Background(), "p1", domain.LockPurposePlant, time.Second, func(ctx context.Context) error {
		t.Fatal("body must not run")
		return nil
	})
	require.ErrorIs(t, err, domain.ErrLockTimeout)
	// Two backoff waits: 100ms + 200ms.
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestWithLockHonoursContextCancel(t *testing.T) {
	lm, store := newManager(t)
	store.Set("lock:p1:plant", "other-holder", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := lm.WithLock(ctx, "p1", domain.LockPurposePlant, time.Second, func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrConcurrencyAborted)
}

func TestExpiredHolderDoesNotUnlockNextHolder(t *testing.T) {
	store := kv.NewMemory()
	lm := NewLockManager(store, clockwork.NewRealClock())
	lm.rnd = func() float64 { return 0 }

	err := lm.WithLock(context.Background(), "p1", domain.LockPurposeCare, 30*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(60 * time.Millisecond) // lease expires mid-body
		// Next holder takes the lock under a fresh token.
		require.True(t, store.SetNX("lock:p1:care", "next-token", time.Minute))
		return nil
	})
	require.NoError(t, err)

	v, ok := store.Get("lock:p1:care")
	require.True(t, ok, "next holder's lock must survive the stale release")
	assert.Equal(t, "next-token", v)
}

func TestDistinctPurposesAreIndependent(t *testing.T) {
	lm, _ := newManager(t)

	err := lm.WithLock(context.Background(), "p1", domain.LockPurposeMaturity, time.Second, func(ctx context.Context) error {
		return lm.WithLock(ctx, "p1", domain.LockPurposeCare, time.Second, func(ctx context.Context) error {
			return nil
		})
	})
	assert.NoError(t, err)
}
