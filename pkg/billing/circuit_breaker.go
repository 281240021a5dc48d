package billing

import (
	"context"
	"sync"
	"time"
)

// BreakerState is the state of a provider circuit breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// CircuitBreaker guards calls to the payment provider. While open, calls
// fail fast with ErrCircuitOpen instead of reaching the provider.
type CircuitBreaker interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
	State() BreakerState
}

// ProviderBreaker opens after a run of consecutive provider failures and lets
// a single probe through once the reset timeout has passed.
type ProviderBreaker struct {
	mu sync.Mutex

	state        BreakerState
	threshold    int
	resetTimeout time.Duration
	failures     int
	openedAt     time.Time
	probing      bool

	now           func() time.Time
	onStateChange func(from, to BreakerState)
}

// NewProviderBreaker creates a closed breaker. A threshold below 1 is
// treated as 1. onStateChange runs with the breaker locked and must not call
// back into it.
func NewProviderBreaker(threshold int, resetTimeout time.Duration, onStateChange func(from, to BreakerState)) *ProviderBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &ProviderBreaker{
		state:         BreakerClosed,
		threshold:     threshold,
		resetTimeout:  resetTimeout,
		now:           time.Now,
		onStateChange: onStateChange,
	}
}

// State returns the current state. An open breaker whose reset timeout has
// elapsed reports half-open.
func (b *ProviderBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

func (b *ProviderBreaker) current() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Execute runs fn unless the breaker is open. Context cancellation by the
// caller is not counted as a provider failure.
func (b *ProviderBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	switch {
	case err == nil:
		b.failures = 0
		b.transition(BreakerClosed)
	case ctx.Err() != nil:
		// caller gave up; leave the state as it was
		if b.state == BreakerHalfOpen {
			b.transition(BreakerOpen)
		}
	default:
		b.failures++
		if b.state == BreakerHalfOpen || b.failures >= b.threshold {
			b.openedAt = b.now()
			b.transition(BreakerOpen)
		}
	}
	return err
}

func (b *ProviderBreaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.current() {
	case BreakerOpen:
		return ErrCircuitOpen
	case BreakerHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		b.transition(BreakerHalfOpen)
	}
	return nil
}

func (b *ProviderBreaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
