package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sciwi/internal/logging"
)

var errDown = errors.New("down")

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, logging.Nop())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errDown }), errDown)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute, logging.Nop())

	_ = cb.Execute(func() error { return errDown })
	assert.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return errDown })

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(1, time.Second, logging.Nop())
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errDown })
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(1, time.Second, logging.Nop())
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errDown })
	now = now.Add(2 * time.Second)
	_ = cb.Execute(func() error { return errDown })

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour, logging.Nop())
	_ = cb.Execute(func() error { return errDown })

	cb.Reset()

	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

func TestCircuitBreaker_IgnoresCallerCancellation(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute, logging.Nop())

	err := cb.Execute(func() error { return fmt.Errorf("post webhook: %w", context.Canceled) })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func TestCircuitBreaker_FailureClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		state CircuitState
	}{
		{"file fetch rejection", &RemoteError{StatusCode: 200, Code: errCodeFileFetch}, StateClosed},
		{"client error status", &RemoteError{StatusCode: 404}, StateClosed},
		{"server error status", &RemoteError{StatusCode: 502}, StateOpen},
		{"transport error", errDown, StateOpen},
		{"wrapped server error", fmt.Errorf("send: %w", &RemoteError{StatusCode: 500}), StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker(1, time.Minute, logging.Nop())
			_ = cb.Execute(func() error { return tt.err })
			assert.Equal(t, tt.state, cb.State())
		})
	}
}

func TestCircuitBreaker_HalfOpenCancellationKeepsProbing(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(1, time.Second, logging.Nop())
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errDown })
	now = now.Add(2 * time.Second)

	_ = cb.Execute(func() error { return context.Canceled })
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}
