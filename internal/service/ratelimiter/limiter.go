// Package ratelimiter provides per-vendor token bucket rate limiting.
package ratelimiter

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// BucketConfig describes one vendor's token bucket.
type BucketConfig struct {
	Capacity   int64
	RefillRate float64 // tokens per second
}

// NewBucketConfigFromPerMinute builds the standard bucket for a per-minute
// budget: capacity equals the budget, refill spreads it across 60 seconds.
func NewBucketConfigFromPerMinute(perMinute int) BucketConfig {
	if perMinute <= 0 {
		return BucketConfig{}
	}
	return BucketConfig{
		Capacity:   int64(perMinute),
		RefillRate: float64(perMinute) / 60.0,
	}
}

// VendorLimiter holds one token bucket per vendor. Buckets start full,
// refill lazily on the monotonic clock, and admit bursts up to capacity.
// A fully drained bucket imposes at most capacity/refillRate seconds of
// wait; wall-clock jumps never grant tokens.
type VendorLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// New builds a limiter set from per-vendor bucket configs.
func New(buckets map[string]BucketConfig) *VendorLimiter {
	v := &VendorLimiter{limiters: make(map[string]*rate.Limiter, len(buckets))}
	for name, cfg := range buckets {
		v.Register(name, cfg)
	}
	return v
}

// Register creates or replaces the bucket for a vendor. A zero-capacity
// config disables limiting for that vendor.
func (v *VendorLimiter) Register(vendor string, cfg BucketConfig) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if cfg.Capacity <= 0 || cfg.RefillRate <= 0 {
		v.limiters[vendor] = rate.NewLimiter(rate.Inf, 1)
		return
	}
	v.limiters[vendor] = rate.NewLimiter(rate.Limit(cfg.RefillRate), int(cfg.Capacity))
}

// Acquire blocks until the vendor's bucket holds a token, then consumes it.
// It returns an error only when ctx is done or the vendor has no bucket.
func (v *VendorLimiter) Acquire(ctx context.Context, vendor string) error {
	v.mu.RLock()
	l := v.limiters[vendor]
	v.mu.RUnlock()
	if l == nil {
		return fmt.Errorf("op=ratelimiter.Acquire: no bucket for vendor %q", vendor)
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("op=ratelimiter.Acquire: %w", err)
	}
	return nil
}

// Allow reports whether a token is immediately available, consuming it when
// so. Non-blocking companion to Acquire, used by tests and health surfaces.
func (v *VendorLimiter) Allow(vendor string) bool {
	v.mu.RLock()
	l := v.limiters[vendor]
	v.mu.RUnlock()
	if l == nil {
		return false
	}
	return l.Allow()
}
