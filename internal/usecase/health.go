package usecase

import (
	"sync"
	"time"

	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// HealthChecker reports whether one infrastructure dependency answers.
type HealthChecker interface {
	HealthCheck(ctx domain.Context) bool
}

// Health states reported by Check.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// HealthComponents holds the per-dependency probe results.
type HealthComponents struct {
	Database bool            `json:"database"`
	Queue    bool            `json:"queue"`
	Cache    bool            `json:"cache"`
	Vendors  map[string]bool `json:"vendors"`
}

// HealthReport is the health endpoint response body.
type HealthReport struct {
	Status     string           `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
	Components HealthComponents `json:"components"`
}

// HealthService aggregates dependency probes for the health endpoint.
type HealthService struct {
	Jobs    domain.JobRepository
	Queue   HealthChecker
	Cache   HealthChecker
	Vendors domain.VendorClient
}

// NewHealthService constructs a HealthService with its dependencies.
func NewHealthService(j domain.JobRepository, q, c HealthChecker, v domain.VendorClient) HealthService {
	return HealthService{Jobs: j, Queue: q, Cache: c, Vendors: v}
}

// Check probes every component concurrently. The service is degraded when
// the database, the queue, or any vendor fails. A cache failure is reported
// but never degrades: reads fall back to the store.
func (s HealthService) Check(ctx domain.Context) HealthReport {
	var (
		wg   sync.WaitGroup
		comp HealthComponents
	)
	wg.Add(4)
	go func() { defer wg.Done(); comp.Database = s.Jobs.HealthCheck(ctx) }()
	go func() { defer wg.Done(); comp.Queue = s.Queue.HealthCheck(ctx) }()
	go func() { defer wg.Done(); comp.Cache = s.Cache.HealthCheck(ctx) }()
	go func() { defer wg.Done(); comp.Vendors = s.Vendors.HealthCheckAll(ctx) }()
	wg.Wait()

	status := HealthHealthy
	if !comp.Database || !comp.Queue {
		status = HealthDegraded
	}
	for _, ok := range comp.Vendors {
		if !ok {
			status = HealthDegraded
		}
	}
	return HealthReport{
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Components: comp,
	}
}
