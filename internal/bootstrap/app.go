// Package bootstrap wires the application together: storage, game
// tables, services, background workers and the admin API server.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/xingyu42/farm-game-sub000/internal/backup"
	"github.com/xingyu42/farm-game-sub000/internal/concurrency"
	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/event"
	"github.com/xingyu42/farm-game-sub000/internal/filestore"
	"github.com/xingyu42/farm-game-sub000/internal/inventory"
	"github.com/xingyu42/farm-game-sub000/internal/kv"
	"github.com/xingyu42/farm-game-sub000/internal/land"
	"github.com/xingyu42/farm-game-sub000/internal/lifecycle"
	"github.com/xingyu42/farm-game-sub000/internal/market"
	"github.com/xingyu42/farm-game-sub000/internal/metrics"
	"github.com/xingyu42/farm-game-sub000/internal/player"
	"github.com/xingyu42/farm-game-sub000/internal/protection"
	"github.com/xingyu42/farm-game-sub000/internal/ranking"
	"github.com/xingyu42/farm-game-sub000/internal/scheduler"
	"github.com/xingyu42/farm-game-sub000/internal/server"
	"github.com/xingyu42/farm-game-sub000/internal/taskloop"
)

// App holds every wired component. Platform adapters (bots, RPC
// frontends) reach the mutating services through here; the HTTP server
// only gets the read-only slice.
type App struct {
	Registry *config.Registry
	Files    *filestore.Store
	KV       *kv.Memory
	Locks    *concurrency.LockManager
	Bus      *event.MemoryBus

	Players    *player.Store
	Scheduler  scheduler.Service
	Lifecycle  lifecycle.Service
	Land       land.Service
	Inventory  inventory.Service
	Protection protection.Service
	Ranking    ranking.Service
	Market     *market.Engine
	Shop       *market.Shop

	Backup *backup.Worker
	Tasks  *taskloop.Loop
	Server *server.Server
}

// NewApp builds the full service graph from the process configuration.
// Nothing is started; call Start afterwards.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	clock := clockwork.NewRealClock()

	registry, err := config.NewRegistry(cfg.GameConfig)
	if err != nil {
		return nil, fmt.Errorf("load game tables: %w", err)
	}

	files := filestore.New(cfg.DataDir)
	store := kv.NewMemoryWithClock(clock)
	locks := concurrency.NewLockManager(store, clock)

	bus := event.NewMemoryBus()
	metrics.NewEventMetricsCollector().Register(bus)
	slog.Info(LogMsgEventSystemInitialized)
	slog.Info(LogMsgMetricsCollectorRegistered)

	players := player.NewStore(files, locks, registry, clock)
	sched := scheduler.NewService(store, players, registry, clock)
	engine := market.NewEngine(ctx, files, registry, clock)

	app := &App{
		Registry: registry,
		Files:    files,
		KV:       store,
		Locks:    locks,
		Bus:      bus,

		Players:    players,
		Scheduler:  sched,
		Lifecycle:  lifecycle.NewService(players, sched, bus, registry, clock),
		Land:       land.NewService(players, registry, clock),
		Inventory:  inventory.NewService(players, registry, clock),
		Protection: protection.NewService(players, registry, clock),
		Ranking:    ranking.NewService(players, registry, clock),
		Market:     engine,
		Shop:       market.NewShop(players, engine, bus, clock),

		Backup: backup.NewWorker(players, files, registry, clock),
		Tasks:  taskloop.New(locks, registry, clock),
	}

	app.registerTasks()

	app.Server = server.NewServer(cfg.AdminPort, cfg.APIKey, cfg.TrustedProxies, server.Deps{
		Players:    players,
		Land:       app.Land,
		Scheduler:  sched,
		Market:     engine,
		Ranking:    app.Ranking,
		Protection: app.Protection,
	})

	return app, nil
}

// registerTasks binds the periodic jobs to the task loop. Intervals,
// timeouts and retries come from the tasks section of the game tables.
func (a *App) registerTasks() {
	a.Tasks.Register(TaskDispatch, func(ctx context.Context) error {
		_, err := a.Scheduler.DispatchDue(ctx)
		return err
	})

	a.Tasks.Register(TaskCleanup, func(ctx context.Context) error {
		a.Scheduler.CleanupExpired(ctx)
		return nil
	})

	// Archive before reset so yesterday's supply survives into history.
	a.Tasks.RegisterDaily(TaskStatsReset, func(ctx context.Context) error {
		if err := a.Market.ArchiveAllDailySupply(ctx); err != nil {
			return err
		}
		return a.Market.ResetDailyStats(ctx)
	})

	a.Tasks.Register(TaskProtection, func(ctx context.Context) error {
		ids, err := a.Players.ListPlayerIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := a.Protection.RemoveExpired(ctx, id); err != nil {
				slog.Warn("protection sweep failed for player", "player", id, "error", err)
			}
		}
		return nil
	})
}

// Start launches the background machinery: config hot reload, the task
// loop and the backup worker. The HTTP server is started separately by
// the caller so it can own the listen error.
func (a *App) Start(ctx context.Context) {
	a.Registry.Watch(ctx)
	a.Tasks.Start(ctx)
	slog.Info(LogMsgTaskLoopStarted)
	a.Backup.Start(ctx)
	slog.Info(LogMsgBackupWorkerStarted)
}
