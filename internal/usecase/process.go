package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/dispatchd/internal/adapter/observability"
	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// ProcessService executes one queued job: select vendor, mark processing,
// dispatch, and for sync vendors record the outcome. Async outcomes arrive
// later through the webhook.
type ProcessService struct {
	Jobs     domain.JobRepository
	Cache    domain.StatusCache
	Vendors  domain.VendorClient
	Scrubber domain.ResultScrubber
}

// NewProcessService constructs a ProcessService with its dependencies.
func NewProcessService(j domain.JobRepository, c domain.StatusCache, v domain.VendorClient, sc domain.ResultScrubber) ProcessService {
	return ProcessService{Jobs: j, Cache: c, Vendors: v, Scrubber: sc}
}

// SelectVendor picks the vendor for a payload. A "type" of "sync", an absent
// type, or an unreadable payload routes to the sync vendor; any other type
// is async.
func SelectVendor(payload json.RawMessage) string {
	var p struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.Type == "" || p.Type == "sync" {
		return domain.SyncVendorName
	}
	return domain.AsyncVendorName
}

// ProcessJob handles one queue delivery. It returns an error only for store
// failures; vendor failures are recorded as the job's outcome. The caller
// acks the delivery regardless.
func (s ProcessService) ProcessJob(ctx domain.Context, msg domain.QueueMessage) error {
	ctx, span := otel.Tracer("usecase").Start(ctx, "ProcessJob", trace.WithAttributes(
		attribute.String("request_id", msg.RequestID)))
	defer span.End()

	if msg.RequestID == "" {
		return fmt.Errorf("%w: queue message without request id", domain.ErrValidation)
	}
	lg := slog.With(slog.String("request_id", msg.RequestID))

	vendor := SelectVendor(msg.Payload)

	job, err := s.Jobs.FindByID(ctx, msg.RequestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			lg.Warn("queued job has no store record, dropping")
			return nil
		}
		return err
	}
	if job.Status.IsTerminal() {
		// Redelivered message for a finished job; never dispatch twice.
		lg.Info("job already terminal, skipping dispatch",
			slog.String("status", string(job.Status)))
		return nil
	}

	if err := s.Jobs.UpdateStatus(ctx, msg.RequestID, domain.JobProcessing, &vendor); err != nil {
		return err
	}
	observability.StartProcessingJob(vendor)

	res := s.Vendors.Call(ctx, vendor, msg.Payload, msg.RequestID)
	switch {
	case res.Status == domain.CallError:
		errMsg := truncateErr(res.Error)
		if err := s.Jobs.UpdateResult(ctx, msg.RequestID, domain.JobFailed, nil, &errMsg); err != nil {
			return err
		}
		s.Cache.Invalidate(ctx, msg.RequestID)
		observability.FailJob(vendor)
		lg.Warn("job failed at vendor",
			slog.String("vendor", vendor),
			slog.String("error", errMsg))
	case res.IsAsync:
		// The vendor acknowledged and will post the webhook; the job stays
		// processing until then or until the sweeper gives up on it.
		lg.Info("async dispatch accepted", slog.String("vendor", vendor))
	default:
		data := s.Scrubber.Scrub(res.Data)
		if err := s.Jobs.UpdateResult(ctx, msg.RequestID, domain.JobComplete, data, nil); err != nil {
			return err
		}
		s.Cache.Invalidate(ctx, msg.RequestID)
		observability.CompleteJob(vendor)
		lg.Info("job completed", slog.String("vendor", vendor))
	}
	return nil
}

// truncateErr bounds vendor-produced error text to what the store accepts.
func truncateErr(msg string) string {
	if len(msg) > domain.MaxErrorLen {
		return msg[:domain.MaxErrorLen]
	}
	return msg
}
