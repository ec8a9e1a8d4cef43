package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/dispatchd/internal/domain"
	"github.com/fairyhunter13/dispatchd/internal/usecase"
)

func TestStatsOverview(t *testing.T) {
	jobs := &mockJobRepo{}
	want := domain.StoreStats{
		Total: 7,
		ByStatus: map[domain.JobStatus]int64{
			domain.JobComplete: 5,
			domain.JobFailed:   2,
		},
		ByVendor: map[string]int64{domain.SyncVendorName: 7},
	}
	jobs.On("Stats", mock.Anything).Return(want, nil)

	got, err := usecase.NewStatsService(jobs).Overview(context.Background())

	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestStatsVendorJobs(t *testing.T) {
	jobs := &mockJobRepo{}
	listed := []domain.Job{{RequestID: processTestID, Status: domain.JobComplete}}
	jobs.On("FindByVendor", mock.Anything, domain.AsyncVendorName, 25).Return(listed, nil)

	got, err := usecase.NewStatsService(jobs).VendorJobs(context.Background(), domain.AsyncVendorName, 25)

	require.NoError(t, err)
	require.Equal(t, listed, got)
	jobs.AssertExpectations(t)
}
