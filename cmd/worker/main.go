// Command worker runs the queue consumers that deliver jobs to vendors,
// plus the timeout sweeper for async jobs whose webhook never arrived.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/dispatchd/internal/adapter/cache/rediscache"
	"github.com/fairyhunter13/dispatchd/internal/adapter/observability"
	"github.com/fairyhunter13/dispatchd/internal/adapter/queue/redisstream"
	"github.com/fairyhunter13/dispatchd/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/dispatchd/internal/adapter/vendorclient"
	"github.com/fairyhunter13/dispatchd/internal/app"
	"github.com/fairyhunter13/dispatchd/internal/config"
	"github.com/fairyhunter13/dispatchd/internal/service/ratelimiter"
	"github.com/fairyhunter13/dispatchd/internal/service/scrub"
	"github.com/fairyhunter13/dispatchd/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register Prometheus metrics in the worker process and expose them on a
	// dedicated /metrics endpoint so Prometheus can scrape queue metrics.
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if err := metricsSrv.ListenAndServe(); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	breakers := observability.NewCircuitBreakerManager()

	jobRepo := postgres.NewJobRepo(pool)
	jobRepo.Breaker = breakers.GetOrCreate("store", observability.DefaultCircuitBreakerConfig())

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

	processSvc := usecase.NewProcessService(jobRepo, statusCache, vendorClient, scrub.NewFieldMasker(cfg.ScrubFields))

	consumer := redisstream.NewConsumer(queue, processSvc.ProcessJob, cfg.WorkerCount, cfg.QueueVisibilityTimeout)

	// Fail async jobs whose webhook never arrived.
	if sweeper := app.NewTimeoutSweeper(jobRepo, statusCache, vendors, cfg.SweepStaleAfter, cfg.SweepInterval); sweeper != nil {
		go sweeper.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting queue consumers", slog.Int("workers", cfg.WorkerCount))
		errCh <- consumer.Start(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("worker error", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("worker error", slog.Any("error", err))
		}
	}
	slog.Info("worker stopped")
}
