package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/fairyhunter13/dispatchd/internal/adapter/observability"
	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// DepthReader reports the number of queued messages.
type DepthReader interface {
	Depth(ctx context.Context) (int64, error)
}

// StatsUpdater refreshes the store-level gauges from Postgres and Redis.
type StatsUpdater struct {
	jobs     domain.JobRepository
	depth    DepthReader
	interval time.Duration
}

func NewStatsUpdater(jobs domain.JobRepository, depth DepthReader, interval time.Duration) *StatsUpdater {
	if jobs == nil {
		return nil
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StatsUpdater{jobs: jobs, depth: depth, interval: interval}
}

func (u *StatsUpdater) Run(ctx context.Context) {
	if u == nil || u.jobs == nil {
		return
	}

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.updateOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stats updater stopping")
			return
		case <-ticker.C:
			u.updateOnce(ctx)
		}
	}
}

func (u *StatsUpdater) updateOnce(ctx context.Context) {
	stats, err := u.jobs.Stats(ctx)
	if err != nil {
		slog.Error("stats update failed", slog.Any("error", err))
		return
	}

	// Every status is written each cycle so a drained bucket drops to zero
	// instead of holding its last value.
	for _, st := range []domain.JobStatus{domain.JobPending, domain.JobProcessing, domain.JobComplete, domain.JobFailed} {
		observability.JobsByStatusGauge.WithLabelValues(string(st)).Set(float64(stats.ByStatus[st]))
	}
	for vendor, n := range stats.ByVendor {
		observability.JobsByVendorGauge.WithLabelValues(vendor).Set(float64(n))
	}

	recent, err := u.jobs.FindRecent(ctx, 1)
	if err != nil {
		slog.Error("stats update failed to list recent jobs", slog.Any("error", err))
	} else {
		observability.JobsRecentGauge.Set(float64(len(recent)))
	}

	if u.depth != nil {
		n, err := u.depth.Depth(ctx)
		if err != nil {
			slog.Error("stats update failed to read queue depth", slog.Any("error", err))
		} else {
			observability.QueueDepthGauge.Set(float64(n))
		}
	}
}
