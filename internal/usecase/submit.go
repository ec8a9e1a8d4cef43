// Package usecase contains application business logic services.
package usecase

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// SubmitService accepts a job payload, persists it pending, and enqueues it
// for the workers.
type SubmitService struct {
	Jobs  domain.JobRepository
	Queue domain.Queue
}

// NewSubmitService constructs a SubmitService with its dependencies.
func NewSubmitService(j domain.JobRepository, q domain.Queue) SubmitService {
	return SubmitService{Jobs: j, Queue: q}
}

// Submit validates the payload, stores a pending job under a fresh request
// id, and enqueues it. The id is returned to the client immediately; the
// outcome arrives later under the same id.
func (s SubmitService) Submit(ctx domain.Context, payload json.RawMessage) (string, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "SubmitJob")
	defer span.End()

	if err := domain.ValidatePayload(payload); err != nil {
		return "", err
	}

	requestID := uuid.NewString()
	now := time.Now().UTC()
	job := domain.Job{
		RequestID: requestID,
		Status:    domain.JobPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return "", err
	}

	if _, err := s.Queue.Enqueue(ctx, requestID, payload); err != nil {
		// The job row exists but no worker will ever see it; fail it so the
		// client learns the outcome instead of polling a stuck pending job.
		msg := "enqueue failed"
		_ = s.Jobs.UpdateResult(ctx, requestID, domain.JobFailed, nil, &msg)
		slog.Error("job enqueue failed",
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return "", err
	}

	slog.Info("job submitted", slog.String("request_id", requestID))
	return requestID, nil
}
