// Command server starts the dispatchd HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/dispatchd/internal/adapter/cache/rediscache"
	httpserver "github.com/fairyhunter13/dispatchd/internal/adapter/httpserver"
	"github.com/fairyhunter13/dispatchd/internal/adapter/observability"
	"github.com/fairyhunter13/dispatchd/internal/adapter/queue/redisstream"
	"github.com/fairyhunter13/dispatchd/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/dispatchd/internal/adapter/vendorclient"
	"github.com/fairyhunter13/dispatchd/internal/app"
	"github.com/fairyhunter13/dispatchd/internal/config"
	"github.com/fairyhunter13/dispatchd/internal/service/ratelimiter"
	"github.com/fairyhunter13/dispatchd/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, vendor, and job instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	breakers := observability.NewCircuitBreakerManager()

	jobRepo := postgres.NewJobRepo(pool)
	jobRepo.Breaker = breakers.GetOrCreate("store", observability.DefaultCircuitBreakerConfig())

	// Data retention
	if cfg.DataRetentionDays > 0 {
		cleanupSvc := postgres.NewCleanupService(pool, cfg.DataRetentionDays)
		go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("cleanup service started",
			slog.Int("retention_days", cfg.DataRetentionDays),
			slog.Duration("interval", cfg.CleanupInterval))
	}

	// One Redis client backs the queue, the status cache, and readiness.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("redis url invalid", slog.Any("error", err))
		os.Exit(1)
	}
	if redisOpts.PoolSize < 64 {
		redisOpts.PoolSize = 64
	}
	rdb := redis.NewClient(redisOpts)
	defer func() {
		if err := rdb.Close(); err != nil {
			slog.Error("failed to close redis client", slog.Any("error", err))
		}
	}()

	queue := redisstream.NewWithClient(rdb)
	queue.Breaker = breakers.GetOrCreate("queue", observability.DefaultCircuitBreakerConfig())
	statusCache := rediscache.NewWithClient(rdb)

	vendors, err := cfg.Vendors()
	if err != nil {
		slog.Error("vendor config invalid", slog.Any("error", err))
		os.Exit(1)
	}
	vendorClient := vendorclient.New(vendors, cfg.APIBaseURL, ratelimiter.New(nil), breakers)

	// Usecases
	submitSvc := usecase.NewSubmitService(jobRepo, queue)
	statusSvc := usecase.NewStatusService(jobRepo, statusCache)
	webhookSvc := usecase.NewWebhookService(jobRepo, statusCache)
	healthSvc := usecase.NewHealthService(jobRepo, queue, statusCache, vendorClient)
	statsSvc := usecase.NewStatsService(jobRepo)

	// Store-level gauges for /metrics
	if updater := app.NewStatsUpdater(jobRepo, queue, 0); updater != nil {
		go updater.Run(ctx)
	}

	dbCheck, redisCheck := app.BuildReadinessChecks(pool, app.WrapRedis(rdb))

	srv := httpserver.NewServer(submitSvc, statusSvc, webhookSvc, healthSvc, statsSvc, dbCheck, redisCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
