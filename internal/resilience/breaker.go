// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"fmt"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed passes calls through and counts failures.
	StateClosed State = iota
	// StateOpen rejects calls until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen allows exactly one trial call.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CircuitOpenError is returned when a call is rejected without any network
// attempt because the upstream's circuit is open. Remaining is the cooldown
// left before a trial call will be allowed.
type CircuitOpenError struct {
	Upstream  string
	Remaining time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s unavailable: circuit open, retry in %v", e.Upstream, e.Remaining)
}

// Breaker is a circuit breaker for one upstream identity. Independent
// upstreams get independent Breakers so they never contend on a lock.
type Breaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailure         time.Time

	now func() time.Time
}

// NewBreaker creates a breaker in the CLOSED state.
func NewBreaker(name string, failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. While OPEN it returns a
// *CircuitOpenError until the recovery timeout has elapsed, at which point
// the breaker moves to HALF_OPEN and admits a single trial call; further
// calls are rejected until that trial resolves.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		// A trial call is already in flight.
		return &CircuitOpenError{Upstream: b.name, Remaining: b.remaining()}
	default:
		if rem := b.remaining(); rem > 0 {
			return &CircuitOpenError{Upstream: b.name, Remaining: rem}
		}
		b.state = StateHalfOpen
		return nil
	}
}

// remaining returns the cooldown left, clamped at zero. Caller holds the lock.
func (b *Breaker) remaining() time.Duration {
	rem := b.recoveryTimeout - b.now().Sub(b.lastFailure)
	if rem < 0 {
		rem = 0
	}
	return rem
}

// RecordSuccess closes the circuit and zeroes the failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFailures = 0
}

// RecordFailure counts a failure. Reaching the threshold, or failing the
// half-open trial, opens the circuit and resets the recovery clock.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.lastFailure = b.now()

	if b.state == StateHalfOpen || b.consecutiveFailures >= b.failureThreshold {
		b.state = StateOpen
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
