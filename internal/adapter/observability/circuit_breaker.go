package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState int

const (
	// StateClosed means the circuit breaker is closed and requests are allowed.
	StateClosed CircuitBreakerState = iota
	// StateOpen means the circuit breaker is open and requests are blocked.
	StateOpen
	// StateHalfOpen means the circuit breaker is half-open and testing requests.
	StateHalfOpen
)

// String returns a string representation of the state.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig carries the trip and recovery parameters.
type CircuitBreakerConfig struct {
	// FailureThreshold trips the breaker once this many failures land inside
	// the monitoring window.
	FailureThreshold int
	// RecoveryTimeout is how long an open breaker waits before probing.
	RecoveryTimeout time.Duration
	// MonitoringWindow bounds the rolling sample window.
	MonitoringWindow time.Duration
	// LatencyThreshold is the per-operation timeout; operations slower than
	// this count as failures, and an average above twice this trips the
	// breaker.
	LatencyThreshold time.Duration
	// MinimumRequests gates the error-rate trip so a single early failure
	// does not open the breaker.
	MinimumRequests int
}

// DefaultCircuitBreakerConfig returns conservative defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		MonitoringWindow: 60 * time.Second,
		LatencyThreshold: 5 * time.Second,
		MinimumRequests:  10,
	}
}

// maxWindowSamples bounds breaker memory regardless of traffic volume.
const maxWindowSamples = 1024

type breakerSample struct {
	at      time.Time
	failed  bool
	latency time.Duration
}

// CircuitBreakerStats is the observable snapshot of a breaker.
type CircuitBreakerStats struct {
	State           CircuitBreakerState
	Failures        int64
	Successes       int64
	TotalRequests   int64
	LastFailureTime time.Time
	AvgLatency      time.Duration
	ErrorRate       float64
}

// CircuitBreaker guards one dependency (a vendor, the store, the queue).
// It trips on windowed failure counts, error rate, or sustained latency, and
// probes again after RecoveryTimeout.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig

	mu          sync.RWMutex
	state       CircuitBreakerState
	failures    int64
	successes   int64
	total       int64
	lastFailure time.Time
	window      []breakerSample
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultCircuitBreakerConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultCircuitBreakerConfig().RecoveryTimeout
	}
	if cfg.MonitoringWindow <= 0 {
		cfg.MonitoringWindow = DefaultCircuitBreakerConfig().MonitoringWindow
	}
	if cfg.MinimumRequests <= 0 {
		cfg.MinimumRequests = DefaultCircuitBreakerConfig().MinimumRequests
	}
	return &CircuitBreaker{name: name, cfg: cfg, state: StateClosed}
}

// Name returns the breaker's dependency name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs op under the breaker. When open it fails fast with
// domain.ErrCircuitOpen without invoking op. The operation runs under a
// LatencyThreshold timeout; exceeding it counts as a failure sample even if
// op itself returns nil.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	opCtx := ctx
	if cb.cfg.LatencyThreshold > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, cb.cfg.LatencyThreshold)
		defer cancel()
	}

	start := time.Now()
	err := op(opCtx)
	elapsed := time.Since(start)

	failed := err != nil && !isBusinessError(err)
	if !failed && cb.cfg.LatencyThreshold > 0 && elapsed > cb.cfg.LatencyThreshold {
		// Operation ignored the deadline; the caller keeps the success but
		// the breaker counts it against the dependency.
		failed = true
	}
	cb.record(failed, elapsed)
	return err
}

// isBusinessError reports errors that describe the request rather than the
// dependency. A missing row or a rejected payload says nothing about the
// dependency's health and must not trip its breaker.
func isBusinessError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrDuplicateID)
}

// allow decides whether a call may proceed, handling the open → half-open
// transition once RecoveryTimeout has elapsed.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) >= cb.cfg.RecoveryTimeout {
			cb.setState(StateHalfOpen)
		} else {
			return fmt.Errorf("circuit breaker %s is open: %w", cb.name, domain.ErrCircuitOpen)
		}
	}
	return nil
}

func (cb *CircuitBreaker) record(failed bool, latency time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.total++
	cb.window = append(cb.window, breakerSample{at: now, failed: failed, latency: latency})
	cb.pruneLocked(now)

	if failed {
		cb.failures++
		cb.lastFailure = now
		if cb.state == StateHalfOpen {
			// Probe failed; back off for another recovery period.
			cb.setState(StateOpen)
			return
		}
		if cb.state == StateClosed && cb.shouldTripLocked(now) {
			cb.setState(StateOpen)
		}
		return
	}

	cb.successes++
	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
		cb.failures = 0
		cb.window = cb.window[:0]
	}
}

// pruneLocked drops samples outside the monitoring window and enforces the
// hard size cap.
func (cb *CircuitBreaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-cb.cfg.MonitoringWindow)
	i := 0
	for ; i < len(cb.window); i++ {
		if cb.window[i].at.After(cutoff) {
			break
		}
	}
	if i > 0 {
		cb.window = append(cb.window[:0], cb.window[i:]...)
	}
	if len(cb.window) > maxWindowSamples {
		cb.window = append(cb.window[:0], cb.window[len(cb.window)-maxWindowSamples:]...)
	}
}

func (cb *CircuitBreaker) shouldTripLocked(now time.Time) bool {
	failures, total, avgLatency := cb.windowStatsLocked(now)
	if failures >= int64(cb.cfg.FailureThreshold) {
		return true
	}
	if total >= int64(cb.cfg.MinimumRequests) && float64(failures)/float64(total) > 0.5 {
		return true
	}
	if cb.cfg.LatencyThreshold > 0 && avgLatency > 2*cb.cfg.LatencyThreshold {
		return true
	}
	return false
}

func (cb *CircuitBreaker) windowStatsLocked(now time.Time) (failures, total int64, avgLatency time.Duration) {
	cutoff := now.Add(-cb.cfg.MonitoringWindow)
	var latencySum time.Duration
	for _, s := range cb.window {
		if !s.at.After(cutoff) {
			continue
		}
		total++
		latencySum += s.latency
		if s.failed {
			failures++
		}
	}
	if total > 0 {
		avgLatency = latencySum / time.Duration(total)
	}
	return failures, total, avgLatency
}

// setState transitions the breaker; callers hold the write lock.
func (cb *CircuitBreaker) setState(next CircuitBreakerState) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	SetCircuitBreakerState(cb.name, int(next))
	slog.Info("circuit breaker state change",
		slog.String("breaker", cb.name),
		slog.String("from", prev.String()),
		slog.String("to", next.String()))
}

// Stats returns an observable snapshot of the breaker.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	failures, total, avgLatency := cb.windowStatsLocked(time.Now())
	var errorRate float64
	if total > 0 {
		errorRate = float64(failures) / float64(total)
	}
	return CircuitBreakerStats{
		State:           cb.state,
		Failures:        cb.failures,
		Successes:       cb.successes,
		TotalRequests:   cb.total,
		LastFailureTime: cb.lastFailure,
		AvgLatency:      avgLatency,
		ErrorRate:       errorRate,
	}
}

// ForceOpen opens the breaker; it recovers normally after RecoveryTimeout.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.lastFailure = time.Now()
	cb.setState(StateOpen)
}

// ForceClose closes the breaker without clearing counters.
func (cb *CircuitBreaker) ForceClose() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.window = cb.window[:0]
}

// Reset returns the breaker to its initial state, clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.failures = 0
	cb.successes = 0
	cb.total = 0
	cb.lastFailure = time.Time{}
	cb.window = nil
}

// GetState returns the current state of the circuit breaker.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// IsOpen returns true if the circuit breaker is open.
func (cb *CircuitBreaker) IsOpen() bool { return cb.GetState() == StateOpen }

// IsClosed returns true if the circuit breaker is closed.
func (cb *CircuitBreaker) IsClosed() bool { return cb.GetState() == StateClosed }

// IsHalfOpen returns true if the circuit breaker is half-open.
func (cb *CircuitBreaker) IsHalfOpen() bool { return cb.GetState() == StateHalfOpen }

// CircuitBreakerManager manages the per-dependency breakers.
type CircuitBreakerManager struct {
	breakers map[string]*CircuitBreaker
	mu       sync.RWMutex
}

// NewCircuitBreakerManager creates a new circuit breaker manager.
func NewCircuitBreakerManager() *CircuitBreakerManager {
	return &CircuitBreakerManager{breakers: make(map[string]*CircuitBreaker)}
}

// GetOrCreate gets an existing circuit breaker or creates a new one.
func (cbm *CircuitBreakerManager) GetOrCreate(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()

	if cb, exists := cbm.breakers[name]; exists {
		return cb
	}
	cb := NewCircuitBreaker(name, cfg)
	cbm.breakers[name] = cb
	return cb
}

// Get gets an existing circuit breaker.
func (cbm *CircuitBreakerManager) Get(name string) (*CircuitBreaker, bool) {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()
	cb, exists := cbm.breakers[name]
	return cb, exists
}

// GetAll returns all circuit breakers keyed by name.
func (cbm *CircuitBreakerManager) GetAll() map[string]*CircuitBreaker {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()

	result := make(map[string]*CircuitBreaker, len(cbm.breakers))
	for name, cb := range cbm.breakers {
		result[name] = cb
	}
	return result
}

// ResetAll resets all circuit breakers.
func (cbm *CircuitBreakerManager) ResetAll() {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()
	for _, cb := range cbm.breakers {
		cb.Reset()
	}
}
