package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failWith(err error) func(context.Context) (int, error) {
	return func(context.Context) (int, error) { return 0, err }
}

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b := NewBreaker("trestle", BreakerConfig{})

	v, err := Call(context.Background(), b, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("trestle", BreakerConfig{FailureThreshold: 3, CoolDown: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = Call(context.Background(), b, failWith(Provider("trestle", 503, "down")))
	}
	assert.Equal(t, CircuitOpen, b.State())

	called := false
	_, err := Call(context.Background(), b, func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	assert.False(t, called)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestBreaker_NoMatchDoesNotCount(t *testing.T) {
	b := NewBreaker("trestle", BreakerConfig{FailureThreshold: 2, CoolDown: time.Minute})

	for i := 0; i < 5; i++ {
		_, _ = Call(context.Background(), b, failWith(NoMatch("trestle", "no owners")))
	}
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_HalfOpenTrialCall(t *testing.T) {
	now := time.Now()
	b := NewBreaker("crm", BreakerConfig{FailureThreshold: 2, CoolDown: 100 * time.Millisecond})
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, _ = Call(context.Background(), b, failWith(errors.New("reset")))
	}
	require.Equal(t, CircuitOpen, b.State())

	b.now = func() time.Time { return now.Add(200 * time.Millisecond) }
	assert.Equal(t, CircuitHalfOpen, b.State())

	_, err := Call(context.Background(), b, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker("crm", BreakerConfig{FailureThreshold: 2, CoolDown: 100 * time.Millisecond})
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, _ = Call(context.Background(), b, failWith(errors.New("reset")))
	}
	now = now.Add(200 * time.Millisecond)
	_, _ = Call(context.Background(), b, failWith(errors.New("still down")))

	assert.Equal(t, CircuitOpen, b.State())
}

func TestBreaker_NilBreakerCalls(t *testing.T) {
	v, err := Call(context.Background(), nil, func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

func TestBreaker_HalfOpenAdmitsOneCallAtATime(t *testing.T) {
	now := time.Now()
	b := NewBreaker("crm", BreakerConfig{FailureThreshold: 1, CoolDown: 100 * time.Millisecond})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, failWith(errors.New("reset")))
	require.Equal(t, CircuitOpen, b.State())
	b.now = func() time.Time { return now.Add(time.Second) }

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Call(context.Background(), b, func(context.Context) (int, error) {
			close(entered)
			<-release
			return 1, nil
		})
		done <- err
	}()
	<-entered

	called := false
	_, err := Call(context.Background(), b, func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	assert.False(t, called)
	assert.True(t, errors.Is(err, ErrCircuitOpen))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, CircuitClosed, b.State())

	_, err = Call(context.Background(), b, func(context.Context) (int, error) { return 2, nil })
	assert.NoError(t, err)
}

func TestBreaker_PanicReleasesTrialSlot(t *testing.T) {
	now := time.Now()
	b := NewBreaker("crm", BreakerConfig{FailureThreshold: 1, CoolDown: 100 * time.Millisecond})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, failWith(errors.New("reset")))
	b.now = func() time.Time { return now.Add(time.Second) }

	assert.Panics(t, func() {
		_, _ = Call(context.Background(), b, func(context.Context) (int, error) { panic("boom") })
	})
	assert.Equal(t, CircuitOpen, b.State())
	assert.False(t, b.trialInFlight)
}
