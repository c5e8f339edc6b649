package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/opdflow/clinic-queue-platform/internal/api/router"
	"github.com/opdflow/clinic-queue-platform/internal/appointments"
	appconfig "github.com/opdflow/clinic-queue-platform/internal/config"
	"github.com/opdflow/clinic-queue-platform/internal/doctorstatus"
	"github.com/opdflow/clinic-queue-platform/internal/events"
	"github.com/opdflow/clinic-queue-platform/internal/http/handlers"
	"github.com/opdflow/clinic-queue-platform/internal/notify"
	"github.com/opdflow/clinic-queue-platform/internal/observability/metrics"
	"github.com/opdflow/clinic-queue-platform/internal/queue"
	"github.com/opdflow/clinic-queue-platform/internal/sessions"
	"github.com/opdflow/clinic-queue-platform/pkg/logging"
)

func main() {
	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-queue-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.DoctorJWTSecret == "" {
		logger.Error("DOCTOR_JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Separate database/sql handle for the read-only dashboard queries.
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to ping redis", "error", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	queueMetrics := metrics.NewQueueMetrics(registry)

	// Stores
	sessionRepo := sessions.NewRepository(pool)
	apptRepo := appointments.NewRepository(pool)
	statusStore := doctorstatus.NewStore(redisClient)
	outboxStore := events.NewOutboxStore(pool)

	// Queue engine
	svc := queue.NewService(sessionRepo, apptRepo, statusStore, outboxStore, queueMetrics, logger)

	// Live event fan-out: outbox rows drain to websocket subscribers.
	hub := notify.NewHub(logger)
	deliverer := events.NewDeliverer(outboxStore, hub, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval)
	go deliverer.Start(ctx)

	routerCfg := &router.Config{
		Logger:             logger,
		QueueHandler:       handlers.NewQueueHandler(svc, logger),
		StatusHandler:      handlers.NewDoctorStatusHandler(svc, logger),
		SettingsHandler:    handlers.NewSessionSettingsHandler(svc, logger),
		DashboardHandler:   handlers.NewDayDashboardHandler(sqlDB, logger),
		Hub:                hub,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		DoctorJWTSecret:    cfg.DoctorJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
