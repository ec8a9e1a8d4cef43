package usecase

import "github.com/fairyhunter13/dispatchd/internal/domain"

// StatsService serves the operational stats endpoint.
type StatsService struct {
	Jobs domain.JobRepository
}

// NewStatsService constructs a StatsService.
func NewStatsService(j domain.JobRepository) StatsService {
	return StatsService{Jobs: j}
}

// Overview returns aggregate job counts by status and vendor.
func (s StatsService) Overview(ctx domain.Context) (domain.StoreStats, error) {
	return s.Jobs.Stats(ctx)
}

// VendorJobs lists a vendor's most recent jobs.
func (s StatsService) VendorJobs(ctx domain.Context, vendor string, limit int) ([]domain.Job, error) {
	return s.Jobs.FindByVendor(ctx, vendor, limit)
}
