package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/dispatchd/internal/domain"
	"github.com/fairyhunter13/dispatchd/internal/usecase"
)

func TestSubmit_CreatesPendingJobAndEnqueues(t *testing.T) {
	jobs := &mockJobRepo{}
	queue := &mockQueue{}
	payload := json.RawMessage(`{"task":"enrich"}`)

	jobs.On("Create", mock.Anything, mock.MatchedBy(func(j domain.Job) bool {
		return j.Status == domain.JobPending &&
			domain.ValidateRequestID(j.RequestID) == nil &&
			string(j.Payload) == string(payload) &&
			!j.CreatedAt.IsZero() && j.UpdatedAt.Equal(j.CreatedAt)
	})).Return(nil)
	queue.On("Enqueue", mock.Anything, mock.AnythingOfType("string"), payload).Return("1-0", nil)

	svc := usecase.NewSubmitService(jobs, queue)
	id, err := svc.Submit(context.Background(), payload)

	require.NoError(t, err)
	assert.NoError(t, domain.ValidateRequestID(id))
	jobs.AssertExpectations(t)
	queue.AssertExpectations(t)
}

func TestSubmit_RejectsNonObjectPayload(t *testing.T) {
	jobs := &mockJobRepo{}
	queue := &mockQueue{}
	svc := usecase.NewSubmitService(jobs, queue)

	for _, payload := range []string{`[1,2]`, `"scalar"`, `null`, ``, `{broken`} {
		_, err := svc.Submit(context.Background(), json.RawMessage(payload))
		assert.ErrorIs(t, err, domain.ErrValidation, "payload %q", payload)
	}
	jobs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_CreateErrorPropagates(t *testing.T) {
	jobs := &mockJobRepo{}
	queue := &mockQueue{}
	storeErr := errors.New("pool exhausted")
	jobs.On("Create", mock.Anything, mock.Anything).Return(storeErr)

	svc := usecase.NewSubmitService(jobs, queue)
	_, err := svc.Submit(context.Background(), json.RawMessage(`{"a":1}`))

	assert.ErrorIs(t, err, storeErr)
	queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_EnqueueFailureFailsTheJob(t *testing.T) {
	jobs := &mockJobRepo{}
	queue := &mockQueue{}
	queueErr := errors.New("stream unavailable")

	jobs.On("Create", mock.Anything, mock.Anything).Return(nil)
	queue.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Return("", queueErr)
	jobs.On("UpdateResult", mock.Anything, mock.AnythingOfType("string"), domain.JobFailed,
		mock.MatchedBy(func(r json.RawMessage) bool { return r == nil }),
		mock.MatchedBy(func(m *string) bool { return m != nil && *m == "enqueue failed" }),
	).Return(nil)

	svc := usecase.NewSubmitService(jobs, queue)
	_, err := svc.Submit(context.Background(), json.RawMessage(`{"a":1}`))

	assert.ErrorIs(t, err, queueErr)
	jobs.AssertExpectations(t)
}
