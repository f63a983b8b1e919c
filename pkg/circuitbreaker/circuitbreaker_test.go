package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newTestBreaker(now *time.Time, transitions *[]string) *CircuitBreaker {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
		OnStateChange: func(from, to State) {
			*transitions = append(*transitions, from.String()+"->"+to.String())
		},
	})
	cb.now = func() time.Time { return *now }
	return cb
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Now()
	var transitions []string
	cb := newTestBreaker(&now, &transitions)

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	var transitions []string
	cb := newTestBreaker(&now, &transitions)

	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return errBoom })
	require.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	var transitions []string
	cb := newTestBreaker(&now, &transitions)

	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return errBoom })
	now = now.Add(2 * time.Minute)

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	now := time.Now()
	var transitions []string
	cb := newTestBreaker(&now, &transitions)

	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateClosed, cb.GetState())
}
