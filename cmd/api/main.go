package main

import (
	"context"
	"expvar"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ncfakude30/personal-asset-manager/internal/api"
	"github.com/ncfakude30/personal-asset-manager/internal/auth"
	"github.com/ncfakude30/personal-asset-manager/internal/cache"
	"github.com/ncfakude30/personal-asset-manager/internal/config"
	"github.com/ncfakude30/personal-asset-manager/internal/db"
	"github.com/ncfakude30/personal-asset-manager/internal/portfolio"
	"github.com/ncfakude30/personal-asset-manager/internal/telemetry"
	"github.com/ncfakude30/personal-asset-manager/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadForAPI()
	if err != nil {
		slog.Error("failed to load api config", "error", err)
		os.Exit(1)
	}
	if cfg.SessionSecretKey == "" {
		slog.Warn("SESSION_SECRET_KEY is not set; session tokens cannot be issued or verified")
	}

	database, err := db.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promSink, err := telemetry.NewPrometheusSink(registry, "asset_manager")
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}
	metrics := telemetry.Multi(telemetry.NewExpvarSink(), promSink)

	portfolioOpts := []portfolio.Option{portfolio.WithMetrics(metrics)}
	if cfg.RedisURL != "" {
		historyCache, err := cache.NewRedis(cfg.RedisURL, "asset-manager")
		if err != nil {
			slog.Error("failed to initialize redis", "error", err)
			os.Exit(1)
		}
		defer historyCache.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := historyCache.Ping(pingCtx); err != nil {
			slog.Warn("redis unreachable; history reads fall back to the database", "error", err)
		}
		cancel()
		portfolioOpts = append(portfolioOpts, portfolio.WithHistoryCache(historyCache, cfg.HistoryCacheTTL))
	}

	identity := auth.NewIdentityVerifier(cfg.IdentityProviderKey, auth.WithMetrics(metrics))
	sessions := auth.NewSessionVerifier(cfg.SessionSecretKey, auth.WithMetrics(metrics))
	issuer := auth.NewIssuer(auth.SessionConfig{
		SecretKey: cfg.SessionSecretKey,
		ExpiresIn: cfg.SessionTokenExpiry,
	}, auth.WithMetrics(metrics))
	exchanger := auth.NewService(identity, issuer, auth.WithMetrics(metrics))
	valuations := portfolio.NewService(database, portfolioOpts...)

	apiServer := api.NewServer(exchanger, sessions, valuations)
	wsServer := ws.NewServer(ws.NewHub(), sessions, valuations)

	router := chi.NewRouter()
	router.Use(telemetry.APIRequestMetricsMiddleware)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/debug/vars", expvar.Handler())
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Get("/ws", wsServer.Handler())
	apiServer.Mount(router)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	slog.Info("api server started", "port", cfg.Port)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serverErrCh:
		slog.Error("api server terminated unexpectedly", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("api server stopped")
}
