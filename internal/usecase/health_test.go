package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/dispatchd/internal/domain"
	"github.com/fairyhunter13/dispatchd/internal/usecase"
)

func healthFixture(db, queue, cache bool, vendors map[string]bool) usecase.HealthService {
	jobs := &mockJobRepo{}
	q := &mockHealthChecker{}
	c := &mockHealthChecker{}
	v := &mockVendorClient{}
	jobs.On("HealthCheck", mock.Anything).Return(db)
	q.On("HealthCheck", mock.Anything).Return(queue)
	c.On("HealthCheck", mock.Anything).Return(cache)
	v.On("HealthCheckAll", mock.Anything).Return(vendors)
	return usecase.NewHealthService(jobs, q, c, v)
}

func TestHealthCheck_AllHealthy(t *testing.T) {
	svc := healthFixture(true, true, true, map[string]bool{
		domain.SyncVendorName:  true,
		domain.AsyncVendorName: true,
	})

	report := svc.Check(context.Background())

	assert.Equal(t, usecase.HealthHealthy, report.Status)
	assert.True(t, report.Components.Database)
	assert.True(t, report.Components.Queue)
	assert.True(t, report.Components.Cache)
	assert.False(t, report.Timestamp.IsZero())
}

func TestHealthCheck_DatabaseDownDegrades(t *testing.T) {
	svc := healthFixture(false, true, true, map[string]bool{domain.SyncVendorName: true})

	report := svc.Check(context.Background())

	assert.Equal(t, usecase.HealthDegraded, report.Status)
	assert.False(t, report.Components.Database)
}

func TestHealthCheck_QueueDownDegrades(t *testing.T) {
	svc := healthFixture(true, false, true, map[string]bool{domain.SyncVendorName: true})

	assert.Equal(t, usecase.HealthDegraded, svc.Check(context.Background()).Status)
}

func TestHealthCheck_SickVendorDegrades(t *testing.T) {
	svc := healthFixture(true, true, true, map[string]bool{
		domain.SyncVendorName:  true,
		domain.AsyncVendorName: false,
	})

	report := svc.Check(context.Background())

	assert.Equal(t, usecase.HealthDegraded, report.Status)
	assert.False(t, report.Components.Vendors[domain.AsyncVendorName])
}

func TestHealthCheck_CacheDownStaysHealthy(t *testing.T) {
	svc := healthFixture(true, true, false, map[string]bool{domain.SyncVendorName: true})

	report := svc.Check(context.Background())

	assert.Equal(t, usecase.HealthHealthy, report.Status)
	assert.False(t, report.Components.Cache)
}
