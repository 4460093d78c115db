// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "tenant-ledger/internal"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.NewApplication()
	if err := application.Initialize(ctx); err != nil {
		application.Logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	cfg := application.Config

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           application.HTTPHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		application.Logger.Info().Str("port", cfg.ServerPort).Str("env", cfg.Env).Msg("HTTP server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			application.Logger.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	case <-ctx.Done():
		application.Logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	exitCode := 0
	if err := server.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
		exitCode = 1
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		exitCode = 1
	}
	os.Exit(exitCode)
}
