// Package rediscache caches job status documents in Redis.
//
// The cache is read-through and strictly best-effort: every failure is
// logged and treated as a miss, so a broken Redis never breaks a status
// lookup.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/dispatchd/internal/domain"
)

const keyPrefix = "job:"

const (
	// nonTerminalTTL keeps in-flight statuses fresh enough for polling.
	nonTerminalTTL = 5 * time.Minute
	// terminalTTL is longer because terminal documents never change.
	terminalTTL = time.Hour
)

// TTLFor returns the cache lifetime for a job document.
func TTLFor(j domain.Job) time.Duration {
	if j.Status.IsTerminal() {
		return terminalTTL
	}
	return nonTerminalTTL
}

// StatusCache is the Redis implementation of the status cache port.
type StatusCache struct {
	rdb *redis.Client
}

// New connects to Redis using a URL and returns the cache.
func New(redisURL string) (*StatusCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=rediscache.New: %w", err)
	}
	return NewWithClient(redis.NewClient(opt)), nil
}

// NewWithClient wraps an existing client; the server and tests share one
// connection pool this way.
func NewWithClient(rdb *redis.Client) *StatusCache {
	return &StatusCache{rdb: rdb}
}

// Get returns the cached job document for a request id, reporting a miss on
// absence or any failure.
func (c *StatusCache) Get(ctx domain.Context, requestID string) (domain.Job, bool) {
	data, err := c.rdb.Get(ctx, keyPrefix+requestID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Debug("status cache read failed",
				slog.String("request_id", requestID),
				slog.Any("error", err))
		}
		return domain.Job{}, false
	}

	var j domain.Job
	if err := json.Unmarshal(data, &j); err != nil {
		slog.Warn("status cache entry corrupt, dropping",
			slog.String("request_id", requestID),
			slog.Any("error", err))
		c.Invalidate(ctx, requestID)
		return domain.Job{}, false
	}
	return j, true
}

// Put stores a job document under the TTL policy for its status.
func (c *StatusCache) Put(ctx domain.Context, requestID string, j domain.Job) {
	data, err := json.Marshal(j)
	if err != nil {
		slog.Warn("status cache marshal failed",
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+requestID, data, TTLFor(j)).Err(); err != nil {
		slog.Debug("status cache write failed",
			slog.String("request_id", requestID),
			slog.Any("error", err))
	}
}

// Invalidate drops the cached document for a request id.
func (c *StatusCache) Invalidate(ctx domain.Context, requestID string) {
	if err := c.rdb.Del(ctx, keyPrefix+requestID).Err(); err != nil {
		slog.Debug("status cache invalidate failed",
			slog.String("request_id", requestID),
			slog.Any("error", err))
	}
}

// HealthCheck reports whether Redis answers a ping.
func (c *StatusCache) HealthCheck(ctx domain.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err() == nil
}

// Close releases the underlying client.
func (c *StatusCache) Close() error { return c.rdb.Close() }
