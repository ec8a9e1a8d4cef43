package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestNewBucketConfigFromPerMinute(t *testing.T) {
	cfg := NewBucketConfigFromPerMinute(60)
	if cfg.Capacity != 60 {
		t.Fatalf("expected capacity 60, got %d", cfg.Capacity)
	}
	if cfg.RefillRate != 1.0 {
		t.Fatalf("expected refill rate 1.0, got %f", cfg.RefillRate)
	}

	cfg = NewBucketConfigFromPerMinute(30)
	if cfg.Capacity != 30 {
		t.Fatalf("expected capacity 30, got %d", cfg.Capacity)
	}
	if cfg.RefillRate != 0.5 {
		t.Fatalf("expected refill rate 0.5, got %f", cfg.RefillRate)
	}
}

func TestNewBucketConfigFromPerMinute_NonPositive(t *testing.T) {
	cfg := NewBucketConfigFromPerMinute(0)
	if cfg.Capacity != 0 || cfg.RefillRate != 0 {
		t.Fatalf("expected zero config for non-positive budget, got %+v", cfg)
	}
}

func TestAcquire_BurstUpToCapacity(t *testing.T) {
	v := New(map[string]BucketConfig{
		"syncVendor": {Capacity: 5, RefillRate: 0.001},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		acquireCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		err := v.Acquire(acquireCtx, "syncVendor")
		cancel()
		if err != nil {
			t.Fatalf("acquire %d within capacity should not block: %v", i, err)
		}
	}

	// Bucket drained and refill is negligible; the next acquire must block
	// until the deadline.
	acquireCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := v.Acquire(acquireCtx, "syncVendor"); err == nil {
		t.Fatal("expected acquire on drained bucket to fail on deadline")
	}
}

func TestAcquire_BlocksUntilRefill(t *testing.T) {
	v := New(map[string]BucketConfig{
		"asyncVendor": {Capacity: 1, RefillRate: 50},
	})
	ctx := context.Background()

	if err := v.Acquire(ctx, "asyncVendor"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	start := time.Now()
	if err := v.Acquire(ctx, "asyncVendor"); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if waited := time.Since(start); waited < 10*time.Millisecond {
		t.Fatalf("expected second acquire to wait for refill, waited %v", waited)
	}
}

func TestAcquire_UnknownVendor(t *testing.T) {
	v := New(nil)
	if err := v.Acquire(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for vendor without a bucket")
	}
}

func TestAcquire_ContextCancelled(t *testing.T) {
	v := New(map[string]BucketConfig{
		"slow": {Capacity: 1, RefillRate: 0.001},
	})
	ctx := context.Background()
	if err := v.Acquire(ctx, "slow"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := v.Acquire(cancelled, "slow"); err == nil {
		t.Fatal("expected error when context is already cancelled")
	}
}

func TestRegister_ZeroCapacityDisablesLimiting(t *testing.T) {
	v := New(map[string]BucketConfig{"free": {}})
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if err := v.Acquire(ctx, "free"); err != nil {
			t.Fatalf("acquire %d on unlimited bucket: %v", i, err)
		}
	}
}

func TestAllow(t *testing.T) {
	v := New(map[string]BucketConfig{
		"syncVendor": {Capacity: 2, RefillRate: 0.001},
	})
	if !v.Allow("syncVendor") {
		t.Fatal("expected first allow to succeed")
	}
	if !v.Allow("syncVendor") {
		t.Fatal("expected second allow to succeed")
	}
	if v.Allow("syncVendor") {
		t.Fatal("expected third allow to be rejected")
	}
	if v.Allow("unknown") {
		t.Fatal("expected allow to be false for unknown vendor")
	}
}

func TestAcquire_Concurrent(t *testing.T) {
	v := New(map[string]BucketConfig{
		"syncVendor": NewBucketConfigFromPerMinute(600),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			done <- v.Acquire(ctx, "syncVendor")
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent acquire: %v", err)
		}
	}
}
