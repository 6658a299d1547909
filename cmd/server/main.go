package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/monoidalcat-ux/Impulse-overlay/internal/config"
	"github.com/monoidalcat-ux/Impulse-overlay/internal/core"
	"github.com/monoidalcat-ux/Impulse-overlay/internal/logging"
	"github.com/monoidalcat-ux/Impulse-overlay/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"input_dir", cfg.Data.InputDir,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service, err := core.NewService(core.Options{
		PreviewRows:       cfg.Data.PreviewRows,
		SeriesPreviewRows: cfg.Data.SeriesPreviewRows,
		MaxPlotFiles:      cfg.Data.MaxPlotFiles,
		LoadWorkers:       cfg.Data.LoadWorkers,
		MaxConcurrent:     cfg.Upload.MaxConcurrent,
		MaxWait:           cfg.Upload.MaxWaitTime,
	}, reg)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loaded, err := service.LoadInputDir(ctx, cfg.Data.InputDir)
	if err != nil {
		slog.Error("failed to load input directory", "dir", cfg.Data.InputDir, "error", err)
		os.Exit(1)
	}
	slog.Info("input files ready", "count", loaded)

	server := web.NewServer(service, cfg, reg)

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight parses finish before closing connections
		if active := service.Limiter().ActiveCount(); active > 0 {
			slog.Info("waiting for uploads to complete", "active", active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
