package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/realtime-delivery/internal/api"
	"github.com/notifyhub/realtime-delivery/internal/config"
	"github.com/notifyhub/realtime-delivery/internal/db"
	"github.com/notifyhub/realtime-delivery/internal/delivery"
	"github.com/notifyhub/realtime-delivery/internal/hub"
	"github.com/notifyhub/realtime-delivery/internal/metrics"
	"github.com/notifyhub/realtime-delivery/internal/processor"
	"github.com/notifyhub/realtime-delivery/internal/ratelimiter"
	"github.com/notifyhub/realtime-delivery/internal/repository"
	"github.com/notifyhub/realtime-delivery/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo := repository.NewPgNotificationRepository(pool)

	hubOpts := hub.OptionsFromConfig(cfg)
	h := hub.New(hubOpts, hub.Hooks{OnChange: m.HubHook()}, logger)

	// Background goroutines all hang off this context; cancelled on shutdown.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	go h.Run(runCtx)

	// ---- delivery dispatch ----
	channels := []delivery.Channel{delivery.NewHubChannel(h, logger)}
	if cfg.WebhookURL != "" {
		channels = append(channels, delivery.NewWebhookChannel(cfg.WebhookURL, cfg.WebhookTimeout))
	}
	limiter := ratelimiter.New(cfg.DeliveryRate)
	dispatcher := delivery.NewDispatcher(channels, limiter, logger)

	// ---- queue processor ----
	onDelivered, onRetried, onFailed := m.ProcessorHooks()
	proc := processor.New(
		processor.Config{
			Workers:       cfg.Workers,
			BatchSize:     cfg.BatchSize,
			PollInterval:  cfg.PollInterval,
			RetryInterval: cfg.RetryInterval,
			MaxRetries:    cfg.MaxRetries,
		},
		repo,
		dispatcher,
		processor.Hooks{OnDelivered: onDelivered, OnRetried: onRetried, OnFailed: onFailed},
		logger,
	)
	if err := proc.Start(runCtx); err != nil {
		logger.Fatal("failed to start queue processor", zap.Error(err))
	}

	// ---- HTTP server ----
	svc := service.NewNotificationService(repo, cfg.MaxRetries, logger)
	router := api.NewRouter(api.RouterDeps{
		Service:   svc,
		Processor: proc,
		Hub:       h,
		HubOpts:   hubOpts,
		Registry:  reg,
		JWTSecret: cfg.JWTSecret,
		Logger:    logger,
	})
	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
		// No WriteTimeout: it would sever long-lived websocket connections.
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests and upgrades.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Drain the worker pool and retry scheduler; in-flight deliveries finish.
	if err := proc.Stop(); err != nil {
		logger.Error("queue processor stop error", zap.Error(err))
	}

	// 3. Tear down the hub and any remaining connections.
	cancelRun()

	logger.Info("server stopped cleanly")
}
