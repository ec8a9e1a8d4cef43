package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/dispatchd/internal/adapter/observability"
	"github.com/fairyhunter13/dispatchd/internal/domain"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// WebhookPayload is the body async vendors post back when a job finishes.
type WebhookPayload struct {
	RequestID string          `json:"requestId" validate:"required,uuid4"`
	Status    string          `json:"status" validate:"omitempty,oneof=complete failed"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *string         `json:"error,omitempty"`
}

// WebhookService reconciles async vendor callbacks with their jobs.
type WebhookService struct {
	Jobs  domain.JobRepository
	Cache domain.StatusCache
}

// NewWebhookService constructs a WebhookService with its dependencies.
func NewWebhookService(j domain.JobRepository, c domain.StatusCache) WebhookService {
	return WebhookService{Jobs: j, Cache: c}
}

// HandleWebhook records the vendor-reported outcome under the job's request
// id. Status defaults to complete. Redelivery overwrites terminal values; an
// unknown request id surfaces domain.ErrNotFound.
func (s WebhookService) HandleWebhook(ctx domain.Context, vendor string, body []byte) error {
	ctx, span := otel.Tracer("usecase").Start(ctx, "HandleWebhook")
	defer span.End()

	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("%w: webhook body is not valid json", domain.ErrValidation)
	}
	if err := getValidator().Struct(p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	status := domain.JobStatus(p.Status)
	if p.Status == "" {
		status = domain.JobComplete
	}
	if bytes.Equal(bytes.TrimSpace(p.Result), []byte("null")) {
		// An explicit JSON null means no result, not a result of null.
		p.Result = nil
	}
	var errMsg *string
	if p.Error != nil {
		msg := truncateErr(*p.Error)
		errMsg = &msg
	}

	// Read first: the prior status drives the outcome metrics, and an
	// unknown id must answer NotFound before anything is written.
	prior, err := s.Jobs.FindByID(ctx, p.RequestID)
	if err != nil {
		return err
	}

	if err := s.Jobs.UpdateResult(ctx, p.RequestID, status, p.Result, errMsg); err != nil {
		return err
	}
	s.Cache.Invalidate(ctx, p.RequestID)

	if prior.Status == domain.JobProcessing {
		label := vendor
		if prior.Vendor != nil {
			label = *prior.Vendor
		}
		switch status {
		case domain.JobComplete:
			observability.CompleteJob(label)
		case domain.JobFailed:
			observability.FailJob(label)
		}
	}

	slog.Info("webhook reconciled",
		slog.String("request_id", p.RequestID),
		slog.String("vendor", vendor),
		slog.String("status", string(status)))
	return nil
}
