// Package taskloop runs the named maintenance jobs on fixed-interval
// tickers. Each run holds a process-global lease lock so overlapping
// processes never double-dispatch, and is raced against a per-job
// timeout.
package taskloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xingyu42/farm-game-sub000/internal/concurrency"
	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/domain"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
	"github.com/xingyu42/farm-game-sub000/internal/metrics"
)

// lockOwner scopes the global job locks: lock:scheduler:<job>.
const lockOwner = "scheduler"

// leaseSlack pads the lock TTL past the job timeout so a timed-out
// body cannot outlive its lease.
const leaseSlack = 5 * time.Second

// JobFunc is one maintenance job body.
type JobFunc func(ctx context.Context) error

type job struct {
	name  string
	run   JobFunc
	daily bool

	// lastDailyRun guards the daily window: one run per local day.
	lastDailyRun string
}

// Loop owns the per-job tickers.
type Loop struct {
	locks    *concurrency.LockManager
	registry *config.Registry
	clock    clockwork.Clock

	mu      sync.Mutex
	jobs    []*job
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates an empty task loop. Register jobs before Start.
func New(locks *concurrency.LockManager, registry *config.Registry, clock clockwork.Clock) *Loop {
	return &Loop{locks: locks, registry: registry, clock: clock}
}

// Register adds an interval job. The name must match a configured task.
func (l *Loop) Register(name string, fn JobFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs = append(l.jobs, &job{name: name, run: fn})
}

// RegisterDaily adds a job whose ticker fires on the interval but whose
// body only runs inside the first minute after local midnight, at most
// once per day.
func (l *Loop) RegisterDaily(name string, fn JobFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs = append(l.jobs, &job{name: name, run: fn, daily: true})
}

// Start launches one ticker goroutine per enabled job. Calling Start on
// a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stop = make(chan struct{})

	log := logger.FromContext(ctx)
	tasks := l.registry.Snapshot().Tasks
	for _, j := range l.jobs {
		cfg, ok := tasks.For(j.name)
		if !ok {
			log.Warn("task has no config, skipping", "job", j.name)
			continue
		}
		if !cfg.Enabled {
			log.Info("task disabled by config", "job", j.name)
			continue
		}
		l.wg.Add(1)
		go l.tick(ctx, j, cfg)
		log.Info("task scheduled", "job", j.name, "interval", cfg.Interval, "timeout", cfg.Timeout)
	}
}

// Stop halts all tickers and waits for in-flight runs.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stop)
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Loop) tick(ctx context.Context, j *job, cfg config.TaskConfig) {
	defer l.wg.Done()
	ticker := l.clock.NewTicker(time.Duration(cfg.Interval) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			l.dispatch(ctx, j, cfg)
		case <-l.stop:
			return
		}
	}
}

func (l *Loop) dispatch(ctx context.Context, j *job, cfg config.TaskConfig) {
	if j.daily && !l.inDailyWindow(j) {
		return
	}
	log := logger.FromContext(ctx)
	start := l.clock.Now()
	err := l.runJob(ctx, j, cfg)
	duration := l.clock.Now().Sub(start)
	if err != nil {
		metrics.TaskRuns.WithLabelValues(j.name, metrics.OutcomeError).Inc()
		log.Error("task failed", "job", j.name, "duration", duration, "error", err)
		return
	}
	metrics.TaskRuns.WithLabelValues(j.name, metrics.OutcomeOK).Inc()
	log.Info("task complete", "job", j.name, "duration", duration)
}

// inDailyWindow reports whether a daily job should run now: local time
// inside the first minute after midnight, and not yet run today.
func (l *Loop) inDailyWindow(j *job) bool {
	now := l.clock.Now().Local()
	if now.Hour() != 0 || now.Minute() != 0 {
		return false
	}
	day := now.Format("2006-01-02")
	if j.lastDailyRun == day {
		return false
	}
	j.lastDailyRun = day
	return true
}

// runJob holds the global job lock for the duration of one run and
// races the body against the configured timeout. On timeout the run
// returns ErrTaskTimeout and the next interval proceeds; the detached
// body is bounded by the lock lease.
func (l *Loop) runJob(ctx context.Context, j *job, cfg config.TaskConfig) error {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	lease := timeout + leaseSlack

	var lastErr error
	for attempt := 0; attempt <= cfg.RetryAttempts; attempt++ {
		lastErr = l.locks.WithLock(ctx, lockOwner, j.name, lease, func(ctx context.Context) error {
			return l.runBounded(ctx, j, timeout)
		})
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (l *Loop) runBounded(ctx context.Context, j *job, timeout time.Duration) error {
	bodyCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- j.run(bodyCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-l.clock.After(timeout):
		cancel()
		return fmt.Errorf("%w: %s after %s", domain.ErrTaskTimeout, j.name, timeout)
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("%w: %v", domain.ErrConcurrencyAborted, ctx.Err())
	}
}
