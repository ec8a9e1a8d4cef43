package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrDuplicateID   = errors.New("duplicate request id")
	ErrCircuitOpen   = errors.New("circuit open")
	ErrUnknownVendor = errors.New("unknown vendor")
	ErrVendor        = errors.New("vendor call failed")
	ErrTransient     = errors.New("transient infrastructure error")
)

// Well-known vendor names. The webhook route and the worker's selection rule
// refer to vendors by these names.
const (
	SyncVendorName  = "syncVendor"
	AsyncVendorName = "asyncVendor"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobComplete   JobStatus = "complete"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether s is a final status. Terminal jobs are never
// re-dispatched to a vendor; webhook redelivery may overwrite terminal fields.
func (s JobStatus) IsTerminal() bool {
	return s == JobComplete || s == JobFailed
}

// Job is the single persistent entity. Payload is immutable after creation;
// Result and Error are set only by terminal writes; Vendor is set exactly once
// when a worker begins processing.
type Job struct {
	RequestID string          `json:"request_id"`
	Status    JobStatus       `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *string         `json:"error,omitempty"`
	Vendor    *string         `json:"vendor,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// QueueMessage is the transient envelope owned by the queue until acked.
type QueueMessage struct {
	ID         string
	RequestID  string
	Payload    json.RawMessage
	EnqueuedAt time.Time
}

// VendorConfig describes one external vendor. Read-only after startup.
type VendorConfig struct {
	Name               string `yaml:"name"`
	URL                string `yaml:"url"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	IsAsync            bool   `yaml:"is_async"`
	TimeoutMS          int    `yaml:"timeout_ms"`
}

// Timeout returns the per-call timeout for the vendor.
func (v VendorConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutMS) * time.Millisecond
}

type CallStatus string

const (
	CallSuccess CallStatus = "success"
	CallError   CallStatus = "error"
)

// VendorResult is the normalized outcome of a vendor invocation. Vendor
// failures are carried in Status/Error; Call never surfaces them as Go errors.
type VendorResult struct {
	Data    json.RawMessage
	IsAsync bool
	Status  CallStatus
	Error   string
}

// StoreStats aggregates job counts for the operational stats surface.
type StoreStats struct {
	Total    int64               `json:"total"`
	ByStatus map[JobStatus]int64 `json:"by_status"`
	ByVendor map[string]int64    `json:"by_vendor"`
}

// Repositories (ports)

type JobRepository interface {
	Create(ctx Context, j Job) error
	FindByID(ctx Context, requestID string) (Job, error)
	UpdateStatus(ctx Context, requestID string, status JobStatus, vendor *string) error
	UpdateResult(ctx Context, requestID string, status JobStatus, result json.RawMessage, errMsg *string) error
	FindByStatus(ctx Context, status JobStatus, limit int) ([]Job, error)
	FindByVendor(ctx Context, vendor string, limit int) ([]Job, error)
	FindRecent(ctx Context, hours int) ([]Job, error)
	Stats(ctx Context) (StoreStats, error)
	HealthCheck(ctx Context) bool
}

// Queue (port)

type Queue interface {
	Enqueue(ctx Context, requestID string, payload json.RawMessage) (string, error)
	EnsureConsumerGroup(ctx Context, group string) error
	Consume(ctx Context, group, consumer string, count int64, blockFor time.Duration) ([]QueueMessage, error)
	Ack(ctx Context, group, messageID string) error
}

// StatusCache (port)
// Implementations swallow their own failures: a failed Get is a miss, a
// failed Put or Invalidate is logged and dropped.

type StatusCache interface {
	Get(ctx Context, requestID string) (Job, bool)
	Put(ctx Context, requestID string, j Job)
	Invalidate(ctx Context, requestID string)
}

// VendorClient (port)

type VendorClient interface {
	Call(ctx Context, vendorName string, payload json.RawMessage, requestID string) VendorResult
	HealthCheckAll(ctx Context) map[string]bool
}

// ResultScrubber (port)
// Scrub removes or masks sensitive fields from a sync vendor response before
// it is persisted as the job result.

type ResultScrubber interface {
	Scrub(data json.RawMessage) json.RawMessage
}

// Context is an alias to allow decoupling from std context in domain
// Adapters and usecases should pass context.Context through

type Context = context.Context
