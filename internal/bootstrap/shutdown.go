package bootstrap

import (
	"context"
	"log/slog"
)

// GracefulShutdown stops the application components in dependency
// order:
//  1. HTTP server (stop accepting new requests)
//  2. Task loop and backup worker (no new writes while flushing)
//  3. Market engine (flush debounced state to disk)
//
// Errors during shutdown are logged but do not stop the sequence.
func (a *App) GracefulShutdown(ctx context.Context) {
	slog.Info(LogMsgShuttingDownServer)

	if err := a.Server.Stop(ctx); err != nil {
		slog.Error(LogMsgServerForcedShutdown, "error", err)
	}

	a.Tasks.Stop()
	a.Backup.Stop()

	if err := a.Market.Close(ctx); err != nil {
		slog.Error(LogMsgMarketFlushFailed, "error", err)
	}

	slog.Info(LogMsgServerStopped)
}
