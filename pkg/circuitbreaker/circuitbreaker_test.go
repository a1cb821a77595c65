package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errDown   = errors.New("down")
	errDomain = errors.New("not found")
)

func newTestBreaker() (*CircuitBreaker, *time.Time) {
	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             10 * time.Second,
		HalfOpenMaxRequests: 2,
		IsFailure:           func(err error) bool { return errors.Is(err, errDown) },
	})
	cb.now = func() time.Time { return clock }
	return cb, &clock
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker()
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errDown }), errDown)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_IgnoresDomainErrors(t *testing.T) {
	cb, _ := newTestBreaker()
	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errDomain }), errDomain)
	}
	assert.Equal(t, StateClosed, cb.GetState())

	// A domain error between failures resets the streak.
	_ = cb.Execute(func() error { return errDown })
	_ = cb.Execute(func() error { return errDown })
	_ = cb.Execute(func() error { return errDomain })
	_ = cb.Execute(func() error { return errDown })
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errDown })
	}
	require.Equal(t, StateOpen, cb.GetState())

	*clock = clock.Add(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.GetState())

	require.NoError(t, cb.Execute(func() error { return nil }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errDown })
	}
	*clock = clock.Add(11 * time.Second)

	assert.ErrorIs(t, cb.Execute(func() error { return errDown }), errDown)
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
}
