package guard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	logx "github.com/bma-social/support-core/pkg/logger"
)

// BreakerState is the circuit breaker lifecycle.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// ErrCircuitOpen is returned by Allow while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState is an observable snapshot of one breaker.
type CircuitBreakerState struct {
	Name            string       `json:"name"`
	State           BreakerState `json:"state"`
	FailureCount    int          `json:"failure_count"`
	LastFailureTime time.Time    `json:"last_failure_time"`
}

// CircuitBreaker tracks consecutive failures of one external dependency.
// One instance per dependency, shared by every in-flight message, so all
// state lives behind a single mutex.
//
// CLOSED passes calls through and counts consecutive failures. Reaching
// the threshold opens the circuit, which rejects calls until the
// recovery timeout elapses. HALF_OPEN admits exactly one trial call:
// concurrent callers are rejected until that trial resolves, its success
// closes the circuit and its failure reopens it immediately.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration

	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	lastFailureTime time.Time
	trialInFlight   bool

	now func() time.Time // overridable in tests
}

func NewCircuitBreaker(name string, failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. Callers must pair every
// admitted call with RecordSuccess or RecordFailure.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) < b.recoveryTimeout {
			return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		logx.Info().Str("breaker", b.name).Msg("circuit breaker half-open, admitting trial call")
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			return fmt.Errorf("%s: trial call in flight: %w", b.name, ErrCircuitOpen)
		}
		b.trialInFlight = true
		return nil
	}
	return nil
}

// RecordSuccess resets the failure count and closes the circuit.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		logx.Info().Str("breaker", b.name).Msg("trial call succeeded, circuit breaker closed")
	}
	b.state = StateClosed
	b.failureCount = 0
	b.trialInFlight = false
}

// RecordFailure counts a failure, opening the circuit at the threshold.
// Any failure during a half-open trial reopens immediately.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = b.now()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.trialInFlight = false
		logx.Warn().Str("breaker", b.name).Msg("trial call failed, circuit breaker reopened")
		return
	}

	if b.state == StateClosed && b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		logx.Warn().
			Str("breaker", b.name).
			Int("failures", b.failureCount).
			Msg("circuit breaker opened")
	}
}

// Cancel releases an admitted call that never reached the dependency
// (for example a rate-limiter rejection). It frees the half-open trial
// slot without counting a success or failure.
func (b *CircuitBreaker) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialInFlight = false
}

// IsOpen is a fast-path check used to skip work before attempting a
// call. It does not admit a trial; use Allow for that.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateOpen && b.now().Sub(b.lastFailureTime) < b.recoveryTimeout
}

// State returns a snapshot for health reporting.
func (b *CircuitBreaker) State() CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return CircuitBreakerState{
		Name:            b.name,
		State:           b.state,
		FailureCount:    b.failureCount,
		LastFailureTime: b.lastFailureTime,
	}
}
