package redisstream

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// Handler processes one delivered job message.
type Handler func(ctx context.Context, msg domain.QueueMessage) error

// Consumer runs the worker pool that drains the job stream. Each worker
// first re-claims deliveries whose visibility window expired, then reads new
// messages one at a time.
type Consumer struct {
	queue      *Queue
	handler    Handler
	group      string
	workers    int
	visibility time.Duration
	blockFor   time.Duration
	errSleep   time.Duration
}

// NewConsumer constructs a consumer pool on the workers group.
func NewConsumer(q *Queue, handler Handler, workers int, visibility time.Duration) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if visibility <= 0 {
		visibility = time.Minute
	}
	return &Consumer{
		queue:      q,
		handler:    handler,
		group:      WorkersGroup,
		workers:    workers,
		visibility: visibility,
		blockFor:   time.Second,
		errSleep:   5 * time.Second,
	}
}

// Start ensures the consumer group exists, launches the workers, and blocks
// until ctx is cancelled and all workers have drained.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.queue.EnsureConsumerGroup(ctx, c.group); err != nil {
		return err
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}

	slog.Info("starting queue consumers",
		slog.String("group", c.group),
		slog.Int("workers", c.workers),
		slog.Duration("visibility", c.visibility))

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		name := fmt.Sprintf("%s-w%d", host, i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runWorker(ctx, name)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	slog.Info("queue consumers stopped", slog.String("group", c.group))
	return ctx.Err()
}

func (c *Consumer) runWorker(ctx context.Context, name string) {
	slog.Info("worker started", slog.String("consumer", name))
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping", slog.String("consumer", name))
			return
		default:
		}

		if err := c.iterate(ctx, name); err != nil {
			if ctx.Err() != nil {
				continue
			}
			slog.Error("worker loop error",
				slog.String("consumer", name),
				slog.Any("error", err))
			select {
			case <-ctx.Done():
			case <-time.After(c.errSleep):
			}
		}
	}
}

// iterate performs one poll: expired pending deliveries first, new messages
// second.
func (c *Consumer) iterate(ctx context.Context, name string) error {
	msgs, err := c.queue.Reclaim(ctx, c.group, name, c.visibility, 1)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		msgs, err = c.queue.Consume(ctx, c.group, name, 1, c.blockFor)
		if err != nil {
			return err
		}
	}
	for _, m := range msgs {
		c.handleMessage(ctx, m)
	}
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, m domain.QueueMessage) {
	tracer := otel.Tracer("queue.consumer")
	ctx, span := tracer.Start(ctx, "ProcessJobMessage")
	defer span.End()

	lg := slog.With(
		slog.String("request_id", m.RequestID),
		slog.String("message_id", m.ID))

	lg.Info("processing job message")
	if err := c.handler(ctx, m); err != nil {
		lg.Error("job processing failed", slog.Any("error", err))
	}

	// Ack even when handling failed: outcomes are terminal in the store and
	// a poison message must not redeliver forever.
	if err := c.queue.Ack(ctx, c.group, m.ID); err != nil {
		lg.Error("ack failed", slog.Any("error", err))
	}
}
