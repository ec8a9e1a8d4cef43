// Package redisstream provides the durable job queue on Redis Streams.
//
// Messages are appended with XADD and consumed through a consumer group, so
// unacknowledged deliveries stay in the group's pending list and are
// re-claimed after the visibility window. Delivery is at-least-once.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/dispatchd/internal/adapter/observability"
	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// StreamName is the stream all jobs are appended to.
const StreamName = "job-queue"

// WorkersGroup is the consumer group shared by every worker instance.
const WorkersGroup = "workers"

const (
	fieldRequestID  = "request_id"
	fieldPayload    = "payload"
	fieldEnqueuedAt = "enqueued_at"
)

// Queue is the Redis Streams implementation of the job queue port.
// Breaker, when set, guards enqueue/consume/ack against a failing Redis.
type Queue struct {
	rdb     *redis.Client
	stream  string
	Breaker *observability.CircuitBreaker
}

// New connects to Redis using a URL (redis://host:port/db) and returns the
// queue bound to the job stream.
func New(redisURL string) (*Queue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=redisstream.New: %w", err)
	}
	// Workers block on XREADGROUP; keep enough connections for consumers,
	// reclaims, and the API sharing this client.
	if opt.PoolSize < 64 {
		opt.PoolSize = 64
	}
	return NewWithClient(redis.NewClient(opt)), nil
}

// NewWithClient wraps an existing client; tests use this with miniredis.
func NewWithClient(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb, stream: StreamName}
}

// Enqueue appends a job message to the stream and returns its message id.
func (q *Queue) Enqueue(ctx domain.Context, requestID string, payload json.RawMessage) (string, error) {
	var id string
	err := q.guard(ctx, func(ctx context.Context) error {
		var err error
		id, err = q.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: q.stream,
			Values: map[string]any{
				fieldRequestID:  requestID,
				fieldPayload:    string(payload),
				fieldEnqueuedAt: time.Now().UTC().Format(time.RFC3339Nano),
			},
		}).Result()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue: %w", err)
	}
	observability.EnqueueJob()
	return id, nil
}

// EnsureConsumerGroup creates the consumer group at the stream head,
// creating the stream as well when it does not exist yet. An existing group
// is not an error.
func (q *Queue) EnsureConsumerGroup(ctx domain.Context, group string) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("op=queue.ensure_group: %w", err)
	}
	return nil
}

// Consume reads up to count new messages for the given consumer, blocking up
// to blockFor when the stream is empty. A blockFor of zero or less reads
// without blocking. An empty read returns no error.
func (q *Queue) Consume(ctx domain.Context, group, consumer string, count int64, blockFor time.Duration) ([]domain.QueueMessage, error) {
	block := blockFor
	if block <= 0 {
		block = -1
	}
	var streams []redis.XStream
	err := q.guard(ctx, func(ctx context.Context) error {
		var err error
		streams, err = q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    count,
			Block:    block,
		}).Result()
		if err == redis.Nil {
			streams = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("op=queue.consume: %w", err)
	}

	var msgs []domain.QueueMessage
	for _, st := range streams {
		for _, m := range st.Messages {
			msgs = append(msgs, fromXMessage(m))
		}
	}
	return msgs, nil
}

// Reclaim transfers messages pending longer than minIdle to the given
// consumer. It backs the visibility window: a worker that died mid-job
// leaves its delivery pending until another worker claims it here.
func (q *Queue) Reclaim(ctx domain.Context, group, consumer string, minIdle time.Duration, count int64) ([]domain.QueueMessage, error) {
	var claimed []redis.XMessage
	err := q.guard(ctx, func(ctx context.Context) error {
		var err error
		claimed, _, err = q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.stream,
			Group:    group,
			Consumer: consumer,
			MinIdle:  minIdle,
			Start:    "0-0",
			Count:    count,
		}).Result()
		if err == redis.Nil {
			claimed = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("op=queue.reclaim: %w", err)
	}

	msgs := make([]domain.QueueMessage, 0, len(claimed))
	for _, m := range claimed {
		msgs = append(msgs, fromXMessage(m))
	}
	return msgs, nil
}

// Ack removes a delivered message from the group's pending list.
func (q *Queue) Ack(ctx domain.Context, group, messageID string) error {
	err := q.guard(ctx, func(ctx context.Context) error {
		return q.rdb.XAck(ctx, q.stream, group, messageID).Err()
	})
	if err != nil {
		return fmt.Errorf("op=queue.ack: %w", err)
	}
	return nil
}

// Depth returns the stream length for the queue depth gauge.
func (q *Queue) Depth(ctx domain.Context) (int64, error) {
	n, err := q.rdb.XLen(ctx, q.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("op=queue.depth: %w", err)
	}
	return n, nil
}

// HealthCheck reports whether Redis answers a ping. It bypasses the breaker
// so readiness sees the dependency itself.
func (q *Queue) HealthCheck(ctx domain.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return q.rdb.Ping(ctx).Err() == nil
}

// Close releases the underlying client.
func (q *Queue) Close() error { return q.rdb.Close() }

func (q *Queue) guard(ctx context.Context, op func(context.Context) error) error {
	if q.Breaker == nil {
		return op(ctx)
	}
	return q.Breaker.Execute(ctx, op)
}

func fromXMessage(m redis.XMessage) domain.QueueMessage {
	msg := domain.QueueMessage{ID: m.ID}
	if v, ok := m.Values[fieldRequestID].(string); ok {
		msg.RequestID = v
	}
	if v, ok := m.Values[fieldPayload].(string); ok {
		msg.Payload = []byte(v)
	}
	if v, ok := m.Values[fieldEnqueuedAt].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			msg.EnqueuedAt = t
		}
	}
	return msg
}
