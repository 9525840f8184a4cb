// Package concurrency provides the owner-scoped lease locks every
// mutation path runs under.
package concurrency

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/kv"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
)

const (
	// DefaultLease is the lock TTL when callers pass 0.
	DefaultLease = 10 * time.Second

	backoffBase   = 100 * time.Millisecond
	backoffCap    = 2 * time.Second
	backoffJitter = 0.10
	maxAttempts   = 3
)

// LockManager acquires leased exclusive locks named lock:{owner}:{purpose}.
// Locks are not re-entrant: nested WithLock on the same (owner, purpose)
// is a caller bug, enforced by review.
type LockManager struct {
	store kv.Store
	clock clockwork.Clock
	rnd   func() float64
}

// NewLockManager creates a lock manager over the given store.
func NewLockManager(store kv.Store, clock clockwork.Clock) *LockManager {
	return &LockManager{
		store: store,
		clock: clock,
		rnd:   rand.Float64, //nolint:gosec // backoff jitter, not security critical
	}
}

func lockKey(owner, purpose string) string {
	return fmt.Sprintf("lock:%s:%s", owner, purpose)
}

// WithLock acquires the (owner, purpose) lock, runs body and releases.
// Acquisition is set-if-absent with TTL, retried with exponential
// backoff; after maxAttempts it returns ErrLockTimeout. Release is
// compare-and-delete on the lease token, so a holder whose lease
// expired cannot unlock the next leaseholder.
func (lm *LockManager) WithLock(ctx context.Context, owner, purpose string, lease time.Duration, body func(ctx context.Context) error) error {
	if lease <= 0 {
		lease = DefaultLease
	}
	key := lockKey(owner, purpose)
	token := uuid.NewString()

	if err := lm.acquire(ctx, key, token, lease); err != nil {
		return err
	}
	defer lm.release(ctx, key, token)

	return body(ctx)
}

func (lm *LockManager) acquire(ctx context.Context, key, token string, lease time.Duration) error {
	backoff := backoffBase
	for attempt := 1; ; attempt++ {
		if lm.store.SetNX(key, token, lease) {
			return nil
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("%w: %s after %d attempts", domain.ErrLockTimeout, key, attempt)
		}

		wait := backoff + time.Duration(lm.rnd()*backoffJitter*float64(backoff))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrConcurrencyAborted, ctx.Err())
		case <-lm.clock.After(wait):
		}

		backoff *= 2
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
}

func (lm *LockManager) release(ctx context.Context, key, token string) {
	if !lm.store.CompareAndDelete(key, token) {
		// Lease expired mid-body and may already be held by someone else.
		logger.FromContext(ctx).Warn("lock lease lost before release", "key", key)
	}
}
