// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "tenant-ledger/internal"
)

// The worker runs provider renewals and reversal settlement on their intervals.
// Several workers may run side by side when REDIS_URL is set.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application := app.NewApplication()
	if err := application.Initialize(ctx); err != nil {
		application.Logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	scheduler := application.Scheduler(true)
	scheduler.Start(ctx)
	application.Logger.Info().
		Dur("renew_interval", application.Config.RenewInterval).
		Dur("settle_interval", application.Config.SettleInterval).
		Msg("worker started")

	<-ctx.Done()
	application.Logger.Info().Msg("stopping worker")
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		os.Exit(1)
	}
}
