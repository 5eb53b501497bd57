package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState is the state of a provider breaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the cool-down elapses.
	CircuitOpen
	// CircuitHalfOpen lets one trial call through at a time.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a provider call is rejected without being made.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls when a provider breaker opens.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive counted failures that
	// opens the circuit. Default: 5.
	FailureThreshold int
	// CoolDown is how long the circuit stays open. Default: 30s.
	CoolDown time.Duration
	// Counts decides which errors count toward the threshold. Default:
	// provider and unexpected failures; no-match and validation never count.
	Counts func(err error) bool
}

// Breaker fails fast after repeated provider failures. It never retries.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu            sync.Mutex
	state         CircuitState
	failures      int
	lastFailure   time.Time
	trialInFlight bool

	now func() time.Time
}

// NewBreaker builds a breaker for the named provider.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if cfg.Counts == nil {
		cfg.Counts = countsAsFailure
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

func countsAsFailure(err error) bool {
	switch KindOf(err) {
	case KindProvider, KindUnexpected:
		return true
	default:
		return false
	}
}

// Call runs fn unless the circuit is open. A nil breaker always calls fn.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if b == nil {
		return fn(ctx)
	}
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	defer func() {
		if r := recover(); r != nil {
			b.record(Unexpected(b.name, fmt.Errorf("panic: %v", r)))
			panic(r)
		}
	}()
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the current state, reporting half-open once the cool-down
// has elapsed.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen && b.now().Sub(b.lastFailure) >= b.cfg.CoolDown {
		return CircuitHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case CircuitClosed:
		return nil
	case CircuitOpen:
		if b.now().Sub(b.lastFailure) < b.cfg.CoolDown {
			return ErrCircuitOpen
		}
		b.transition(CircuitHalfOpen)
	}
	// Half-open: only one trial call in flight.
	if b.trialInFlight {
		return ErrCircuitOpen
	}
	b.trialInFlight = true
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialInFlight = false

	if err == nil || !b.cfg.Counts(err) {
		b.failures = 0
		if b.state == CircuitHalfOpen {
			b.transition(CircuitClosed)
		}
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if b.state == CircuitHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.transition(CircuitOpen)
	}
}

func (b *Breaker) transition(to CircuitState) {
	if b.state == to {
		return
	}
	zap.L().Warn("circuit breaker state change",
		zap.String("provider", b.name),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
	)
	b.state = to
}
