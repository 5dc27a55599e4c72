package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState names the three states of the breaker state machine.
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

// ErrCircuitOpen is returned by Execute when the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// ErrTooManyHalfOpen is returned when too many requests are already in
// flight during the half-open probe window.
var ErrTooManyHalfOpen = errors.New("resilience: too many requests in half-open state")

// CircuitBreakerConfig configures thresholds for one breaker instance.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	CooldownPeriod   time.Duration
	MaxHalfOpen      int
}

// DefaultCircuitBreakerConfig mirrors the external-provider breaker defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 3,
		CooldownPeriod:   30 * time.Second,
		MaxHalfOpen:      1,
	}
}

// CircuitBreaker implements CLOSED -> OPEN (after FailureThreshold) ->
// HALF_OPEN (after CooldownPeriod) -> CLOSED (after SuccessThreshold) | OPEN
// (on one half-open failure).
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu               sync.Mutex
	state            CircuitState
	failureCount     int
	successCount     int
	openedAt         time.Time
	halfOpenInFlight int

	totalRequests  int64
	totalFailures  int64
	totalSuccesses int64
}

// NewCircuitBreaker constructs a breaker starting CLOSED.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg = DefaultCircuitBreakerConfig(cfg.Name)
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Execute runs fn under circuit-breaker protection.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	cb.mu.Lock()
	if !cb.allowRequestLocked() {
		err := ErrCircuitOpen
		if cb.state == StateHalfOpen {
			err = ErrTooManyHalfOpen
		}
		cb.mu.Unlock()
		return err
	}
	cb.totalRequests++
	wasHalfOpen := cb.state == StateHalfOpen
	if wasHalfOpen {
		cb.halfOpenInFlight++
	}
	cb.mu.Unlock()

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if wasHalfOpen && cb.state == StateHalfOpen {
		cb.halfOpenInFlight--
	}
	if err != nil {
		cb.recordFailureLocked()
		return err
	}
	cb.recordSuccessLocked()
	return nil
}

func (cb *CircuitBreaker) allowRequestLocked() bool {
	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) > cb.cfg.CooldownPeriod {
			cb.state = StateHalfOpen
			cb.halfOpenInFlight = 0
			cb.successCount = 0
			return true
		}
		return false
	case StateHalfOpen:
		return cb.halfOpenInFlight < cb.cfg.MaxHalfOpen
	default:
		return true
	}
}

func (cb *CircuitBreaker) recordFailureLocked() {
	cb.totalFailures++
	cb.failureCount++
	cb.successCount = 0

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.tripLocked()
		}
	case StateHalfOpen:
		cb.tripLocked()
	}
}

func (cb *CircuitBreaker) recordSuccessLocked() {
	cb.totalSuccesses++
	cb.successCount++

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.resetLocked()
		}
	}
}

func (cb *CircuitBreaker) tripLocked() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.failureCount = 0
	cb.successCount = 0
}

func (cb *CircuitBreaker) resetLocked() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats reports counters for observability.
func (cb *CircuitBreaker) Stats() (total, failures, successes int64, state CircuitState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.totalRequests, cb.totalFailures, cb.totalSuccesses, cb.state
}

// ForceOpen and ForceClose support operator intervention and tests.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.tripLocked()
}

func (cb *CircuitBreaker) ForceClose() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.resetLocked()
}
