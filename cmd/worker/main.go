package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ncfakude30/personal-asset-manager/internal/config"
	"github.com/ncfakude30/personal-asset-manager/internal/db"
	"github.com/ncfakude30/personal-asset-manager/internal/prices"
	"github.com/ncfakude30/personal-asset-manager/internal/providers"
	"github.com/ncfakude30/personal-asset-manager/internal/telemetry"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadForWorker()
	if err != nil {
		slog.Error("failed to load worker config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	provider := providers.NewFromConfig(cfg)
	service := prices.NewService(database, provider,
		prices.WithMetrics(telemetry.NewExpvarSink()),
		prices.WithRateLimit(cfg.PriceProviderRateLimit),
	)
	scheduler := prices.NewScheduler(cfg.PriceRefreshInterval, service.Refresh)

	slog.Info("price worker started", "provider", cfg.PriceProviderName, "interval", cfg.PriceRefreshInterval.String())

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("price worker stopped")
}
