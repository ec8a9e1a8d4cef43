package httpserver_test

import (
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/dispatchd/internal/domain"
)

type mockJobRepo struct{ mock.Mock }

func (m *mockJobRepo) Create(ctx domain.Context, j domain.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *mockJobRepo) FindByID(ctx domain.Context, requestID string) (domain.Job, error) {
	args := m.Called(ctx, requestID)
	return args.Get(0).(domain.Job), args.Error(1)
}

func (m *mockJobRepo) UpdateStatus(ctx domain.Context, requestID string, status domain.JobStatus, vendor *string) error {
	args := m.Called(ctx, requestID, status, vendor)
	return args.Error(0)
}

func (m *mockJobRepo) UpdateResult(ctx domain.Context, requestID string, status domain.JobStatus, result json.RawMessage, errMsg *string) error {
	args := m.Called(ctx, requestID, status, result, errMsg)
	return args.Error(0)
}

func (m *mockJobRepo) FindByStatus(ctx domain.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	args := m.Called(ctx, status, limit)
	return args.Get(0).([]domain.Job), args.Error(1)
}

func (m *mockJobRepo) FindByVendor(ctx domain.Context, vendor string, limit int) ([]domain.Job, error) {
	args := m.Called(ctx, vendor, limit)
	return args.Get(0).([]domain.Job), args.Error(1)
}

func (m *mockJobRepo) FindRecent(ctx domain.Context, hours int) ([]domain.Job, error) {
	args := m.Called(ctx, hours)
	return args.Get(0).([]domain.Job), args.Error(1)
}

func (m *mockJobRepo) Stats(ctx domain.Context) (domain.StoreStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.StoreStats), args.Error(1)
}

func (m *mockJobRepo) HealthCheck(ctx domain.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Enqueue(ctx domain.Context, requestID string, payload json.RawMessage) (string, error) {
	args := m.Called(ctx, requestID, payload)
	return args.String(0), args.Error(1)
}

func (m *mockQueue) EnsureConsumerGroup(ctx domain.Context, group string) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *mockQueue) Consume(ctx domain.Context, group, consumer string, count int64, blockFor time.Duration) ([]domain.QueueMessage, error) {
	args := m.Called(ctx, group, consumer, count, blockFor)
	return args.Get(0).([]domain.QueueMessage), args.Error(1)
}

func (m *mockQueue) Ack(ctx domain.Context, group, messageID string) error {
	args := m.Called(ctx, group, messageID)
	return args.Error(0)
}

type mockCache struct{ mock.Mock }

func (m *mockCache) Get(ctx domain.Context, requestID string) (domain.Job, bool) {
	args := m.Called(ctx, requestID)
	return args.Get(0).(domain.Job), args.Bool(1)
}

func (m *mockCache) Put(ctx domain.Context, requestID string, j domain.Job) {
	m.Called(ctx, requestID, j)
}

func (m *mockCache) Invalidate(ctx domain.Context, requestID string) {
	m.Called(ctx, requestID)
}

type mockVendorClient struct{ mock.Mock }

func (m *mockVendorClient) Call(ctx domain.Context, vendorName string, payload json.RawMessage, requestID string) domain.VendorResult {
	args := m.Called(ctx, vendorName, payload, requestID)
	return args.Get(0).(domain.VendorResult)
}

func (m *mockVendorClient) HealthCheckAll(ctx domain.Context) map[string]bool {
	args := m.Called(ctx)
	return args.Get(0).(map[string]bool)
}

type mockHealthChecker struct{ mock.Mock }

func (m *mockHealthChecker) HealthCheck(ctx domain.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}
