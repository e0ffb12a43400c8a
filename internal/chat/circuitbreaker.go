// circuitbreaker.go - Circuit breaker for outbound webhook posts.
//
// Stops posting to a chat endpoint that keeps failing, and lets a single
// trial request through after a cooldown.
package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"sciwi/internal/logging"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// StateClosed: requests flow normally
	StateClosed CircuitState = iota
	// StateOpen: requests fail fast
	StateOpen
	// StateHalfOpen: one trial request decides whether to close again
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// ErrCircuitOpen is returned while the breaker rejects webhook posts.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops hammering a webhook endpoint that keeps failing.
// It never retries; a rejected call fails immediately. Caller cancellation
// and messages the server refused are not counted as failures.
type CircuitBreaker struct {
	mu sync.Mutex

	maxFailures uint32
	timeout     time.Duration
	logger      *logging.Logger
	now         func() time.Time

	state           CircuitState
	failures        uint32
	lastFailureTime time.Time
	halfOpenInUse   bool
}

// NewCircuitBreaker opens after maxFailures consecutive failures and lets a
// trial request through once timeout has elapsed.
func NewCircuitBreaker(maxFailures uint32, timeout time.Duration, logger *logging.Logger) *CircuitBreaker {
	if logger == nil {
		logger = logging.Default()
	}
	return &CircuitBreaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		logger:      logger,
		now:         time.Now,
		state:       StateClosed,
	}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) <= cb.timeout {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.halfOpenInUse = true
		cb.logger.Info("circuit_breaker_half_open", map[string]any{"timeout_elapsed": cb.timeout.String()})
	case StateHalfOpen:
		if cb.halfOpenInUse {
			return ErrCircuitOpen
		}
		cb.halfOpenInUse = true
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.halfOpenInUse = false

	if errors.Is(err, context.Canceled) {
		return
	}

	if err == nil || isRejection(err) {
		if cb.state == StateHalfOpen {
			cb.logger.Info("circuit_breaker_closed", map[string]any{"reason": "recovery_successful"})
		}
		cb.state = StateClosed
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailureTime = cb.now()
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		if cb.state != StateOpen {
			cb.logger.Warn("circuit_breaker_opened", map[string]any{
				"failures":     cb.failures,
				"max_failures": cb.maxFailures,
				"timeout":      cb.timeout.String(),
			})
		}
		cb.state = StateOpen
	}
}

// isRejection reports whether err is an answer from a reachable chat server
// refusing the message, such as an unfetchable file URL. Those do not count
// against the endpoint.
func isRejection(err error) bool {
	var rerr *RemoteError
	return errors.As(err, &rerr) && rerr.StatusCode < http.StatusInternalServerError
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenInUse = false
}
