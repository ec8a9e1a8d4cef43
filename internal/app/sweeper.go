package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/dispatchd/internal/adapter/observability"
	"github.com/fairyhunter13/dispatchd/internal/domain"
)

const sweepTimeoutMessage = "Job timed out - no webhook received"

// TimeoutSweeper fails async jobs whose webhook never arrived. Jobs at sync
// vendors stuck in processing are redelivered by the queue, not swept.
type TimeoutSweeper struct {
	jobs       domain.JobRepository
	cache      domain.StatusCache
	asyncNames map[string]struct{}
	staleAfter time.Duration
	interval   time.Duration
}

func NewTimeoutSweeper(jobs domain.JobRepository, cache domain.StatusCache, vendors []domain.VendorConfig, staleAfter, interval time.Duration) *TimeoutSweeper {
	if jobs == nil {
		return nil
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	asyncNames := make(map[string]struct{})
	for _, v := range vendors {
		if v.IsAsync {
			asyncNames[v.Name] = struct{}{}
		}
	}
	return &TimeoutSweeper{
		jobs:       jobs,
		cache:      cache,
		asyncNames: asyncNames,
		staleAfter: staleAfter,
		interval:   interval,
	}
}

func (s *TimeoutSweeper) Run(ctx context.Context) {
	if s == nil || s.jobs == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("timeout sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *TimeoutSweeper) sweepOnce(ctx context.Context) {
	tracer := otel.Tracer("jobs.sweeper")
	ctx, span := tracer.Start(ctx, "TimeoutSweeper.sweepOnce")
	defer span.End()

	cutoff := time.Now().Add(-s.staleAfter)
	const pageSize = 500
	span.SetAttributes(
		attribute.Int("jobs.page_size", pageSize),
		attribute.Float64("jobs.stale_after_seconds", s.staleAfter.Seconds()),
	)

	totalChecked := 0
	totalFailed := 0

	// Listing is most-recently-updated first, so stale jobs sit at the tail.
	// Each pass shrinks the processing set; refetch until a full page yields
	// no new timeouts.
	for {
		pageCtx, pageSpan := tracer.Start(ctx, "TimeoutSweeper.sweepPage")

		jobs, err := s.jobs.FindByStatus(pageCtx, domain.JobProcessing, pageSize)
		if err != nil {
			pageSpan.RecordError(err)
			pageSpan.End()
			slog.Error("timeout sweep failed to list jobs", slog.Any("error", err))
			return
		}
		totalChecked += len(jobs)

		failedThisPage := 0
		for _, j := range jobs {
			if !s.shouldSweep(j, cutoff) {
				continue
			}
			if s.failJob(pageCtx, tracer, j) {
				failedThisPage++
			}
		}
		totalFailed += failedThisPage

		pageSpan.SetAttributes(
			attribute.Int("jobs.listed", len(jobs)),
			attribute.Int("jobs.failed", failedThisPage),
		)
		pageSpan.End()

		if failedThisPage == 0 || len(jobs) < pageSize {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("jobs.total_checked", totalChecked),
		attribute.Int("jobs.total_failed", totalFailed),
	)
}

func (s *TimeoutSweeper) shouldSweep(j domain.Job, cutoff time.Time) bool {
	if j.Vendor == nil {
		return false
	}
	if _, ok := s.asyncNames[*j.Vendor]; !ok {
		return false
	}
	return j.UpdatedAt.Before(cutoff)
}

func (s *TimeoutSweeper) failJob(ctx context.Context, tracer trace.Tracer, j domain.Job) bool {
	jobCtx, jobSpan := tracer.Start(ctx, "TimeoutSweeper.failJob")
	defer jobSpan.End()
	jobSpan.SetAttributes(
		attribute.String("job.request_id", j.RequestID),
		attribute.String("job.vendor", *j.Vendor),
	)

	msg := sweepTimeoutMessage
	if err := s.jobs.UpdateResult(jobCtx, j.RequestID, domain.JobFailed, nil, &msg); err != nil {
		jobSpan.RecordError(err)
		slog.Error("timeout sweep failed to update job",
			slog.String("request_id", j.RequestID), slog.Any("error", err))
		return false
	}
	if s.cache != nil {
		s.cache.Invalidate(jobCtx, j.RequestID)
	}
	observability.FailJob(*j.Vendor)
	slog.Warn("job timed out waiting for webhook",
		slog.String("request_id", j.RequestID),
		slog.String("vendor", *j.Vendor),
		slog.Duration("stale_after", s.staleAfter))
	return true
}
