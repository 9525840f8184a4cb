// Package backup periodically snapshots every player file into a
// single timestamped JSON archive and prunes old archives by count.
package backup

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xingyu42/farm-game-sub000/internal/config"
	"github.com/xingyu42/farm-game-sub000/internal/filestore"
	"github.com/xingyu42/farm-game-sub000/internal/logger"
	"github.com/xingyu42/farm-game-sub000/internal/player"
)

// BackupsDir holds the archives, next to the players directory.
const BackupsDir = "backups"

const backupVersion = 1

// Snapshot is the persisted archive shape: raw player YAML keyed by
// id, so a restore does not depend on the current domain structs.
type Snapshot struct {
	Timestamp     int64             `json:"timestamp"`
	PlayerCount   int               `json:"playerCount"`
	BackupVersion int               `json:"backupVersion"`
	Data          map[string]string `json:"data"`
}

// Result reports one backup run.
type Result struct {
	File        string `json:"file"`
	PlayerCount int    `json:"playerCount"`
	Pruned      int    `json:"pruned"`
}

// Worker drives the periodic backup loop.
type Worker struct {
	players  *player.Store
	files    *filestore.Store
	registry *config.Registry
	clock    clockwork.Clock

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewWorker creates a new backup worker
func NewWorker(players *player.Store, files *filestore.Store, registry *config.Registry, clock clockwork.Clock) *Worker {
	return &Worker{players: players, files: files, registry: registry, clock: clock}
}

// Start launches the backup loop. Calling Start on a running worker is
// a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	cfg := w.registry.Snapshot().Backup
	if !cfg.Enabled {
		logger.FromContext(ctx).Info("backup worker disabled by config")
		return
	}
	w.running = true
	w.stop = make(chan struct{})
	w.wg.Add(1)
	go w.run(ctx, cfg)
	logger.FromContext(ctx).Info("backup worker started",
		"interval", cfg.Interval, "startDelay", cfg.StartDelay, "maxBackups", cfg.MaxBackups)
}

// Stop halts the loop and waits for an in-flight run to finish.
// Calling Stop on a stopped worker is a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, cfg config.BackupConfig) {
	defer w.wg.Done()

	select {
	case <-w.clock.After(time.Duration(cfg.StartDelay) * time.Millisecond):
	case <-w.stop:
		return
	}
	w.runWithRetry(ctx, cfg)

	ticker := w.clock.NewTicker(time.Duration(cfg.Interval) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			w.runWithRetry(ctx, cfg)
		case <-w.stop:
			return
		}
	}
}

func (w *Worker) runWithRetry(ctx context.Context, cfg config.BackupConfig) {
	log := logger.FromContext(ctx)
	for attempt := 0; ; attempt++ {
		result, err := w.RunOnce(ctx)
		if err == nil {
			log.Info("backup complete", "file", result.File, "players", result.PlayerCount, "pruned", result.Pruned)
			return
		}
		if attempt >= cfg.RetryCount {
			log.Error("backup failed, giving up", "attempts", attempt+1, "error", err)
			return
		}
		log.Warn("backup failed, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-w.clock.After(time.Duration(cfg.RetryInterval) * time.Millisecond):
		case <-w.stop:
			return
		}
	}
}

// RunOnce performs a single backup pass: read every player file raw,
// write one archive atomically, then prune by count.
func (w *Worker) RunOnce(ctx context.Context) (*Result, error) {
	cfg := w.registry.Snapshot().Backup
	ids, err := w.players.ListPlayerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	snap := Snapshot{
		Timestamp:     w.clock.Now().UnixMilli(),
		PlayerCount:   len(ids),
		BackupVersion: backupVersion,
		Data:          make(map[string]string, len(ids)),
	}
	for _, id := range ids {
		raw, err := w.players.ReadRaw(id)
		if err != nil {
			return nil, fmt.Errorf("read player %s: %w", id, err)
		}
		snap.Data[id] = string(raw)
	}

	file := path.Join(BackupsDir, backupFileName(cfg.FilePrefix, w.clock.Now()))
	if err := w.files.WriteJSON(file, &snap); err != nil {
		return nil, err
	}
	pruned, err := w.prune(cfg)
	if err != nil {
		return nil, err
	}
	return &Result{File: file, PlayerCount: len(ids), Pruned: pruned}, nil
}

// backupFileName builds "<prefix>_<iso>.json". Colons are replaced
// with dashes so the names stay filesystem-safe everywhere; existing
// backups rely on exactly this replacement.
func backupFileName(prefix string, now time.Time) string {
	iso := strings.ReplaceAll(now.UTC().Format(time.RFC3339), ":", "-")
	return prefix + "_" + iso + ".json"
}

// prune keeps the newest maxBackups archives. ISO names sort
// chronologically, so lexical order is enough.
func (w *Worker) prune(cfg config.BackupConfig) (int, error) {
	files, err := w.files.ListFiles(BackupsDir)
	if err != nil {
		return 0, err
	}
	archives := make([]string, 0, len(files))
	for _, f := range files {
		if strings.HasPrefix(path.Base(f), cfg.FilePrefix+"_") {
			archives = append(archives, f)
		}
	}
	if len(archives) <= cfg.MaxBackups {
		return 0, nil
	}
	stale := archives[:len(archives)-cfg.MaxBackups]
	for _, f := range stale {
		if err := w.files.DeleteFile(f); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}
