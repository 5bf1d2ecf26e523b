package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/salesunifier/internal/application"
	"github.com/JonMunkholm/salesunifier/internal/config"
	"github.com/JonMunkholm/salesunifier/internal/logging"
	"github.com/JonMunkholm/salesunifier/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration", "config", cfg.String())

	ctx := context.Background()
	app, err := application.Build(ctx, cfg, application.Options{})
	if err != nil {
		slog.Error("failed to start pipeline", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	slog.Info("pipeline ready",
		"provider", app.Assistant.Provider,
		"model", app.Assistant.Model,
		"required_fields", cfg.Validation.RequiredFields,
		"fix_persistence", app.FixStore != nil,
	)

	opts := []web.Option{web.WithGatherer(app.Registry)}
	if app.FixStore != nil {
		opts = append(opts, web.WithStoredHistory(app.FixStore))
	}
	server := web.NewServer(app.Pipeline, cfg, opts...)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let a running file pass or auto-fix finish before closing connections
		if status := app.Pipeline.GateStatus(); status.Busy {
			slog.Info("waiting for pipeline operation to complete", "operation", status.Operation)
			if err := app.Pipeline.WaitIdle(shutdownCtx); err != nil {
				slog.Warn("pipeline operation did not complete in time", "error", err)
			} else {
				slog.Info("pipeline idle")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		app.Close()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
