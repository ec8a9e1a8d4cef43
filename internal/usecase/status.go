package usecase

import (
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// StatusService reads job records for the client-facing status endpoint,
// serving from the cache when possible.
type StatusService struct {
	Jobs  domain.JobRepository
	Cache domain.StatusCache
}

// NewStatusService constructs a StatusService with its dependencies.
func NewStatusService(j domain.JobRepository, c domain.StatusCache) StatusService {
	return StatusService{Jobs: j, Cache: c}
}

// GetJobStatus returns the current job record for a request id, read through
// the status cache. Staleness is bounded by the cache TTLs; terminal writes
// invalidate their entry.
func (s StatusService) GetJobStatus(ctx domain.Context, requestID string) (domain.Job, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "GetJobStatus")
	defer span.End()

	if err := domain.ValidateRequestID(requestID); err != nil {
		return domain.Job{}, err
	}

	if job, ok := s.Cache.Get(ctx, requestID); ok {
		return job, nil
	}

	job, err := s.Jobs.FindByID(ctx, requestID)
	if err != nil {
		return domain.Job{}, err
	}
	s.Cache.Put(ctx, requestID, job)
	return job, nil
}
