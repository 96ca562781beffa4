// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FallbackError aggregates the failure of every upstream in a fallback
// chain. It unwraps to the last upstream's error.
type FallbackError struct {
	Upstreams []string
	Last      error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("all upstreams failed (%s): %v", strings.Join(e.Upstreams, ", "), e.Last)
}

func (e *FallbackError) Unwrap() error { return e.Last }

// Executor runs upstream calls through the retry policy and a lazily
// created circuit breaker per upstream identity.
type Executor struct {
	policy           Policy
	failureThreshold int
	recoveryTimeout  time.Duration

	mu       sync.Mutex // guards breakers; each Breaker has its own lock
	breakers map[string]*Breaker
}

// NewExecutor creates an executor. Zero threshold and timeout use the
// breaker defaults (5 failures, 60s recovery).
func NewExecutor(policy Policy, failureThreshold int, recoveryTimeout time.Duration) *Executor {
	return &Executor{
		policy:           policy,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		breakers:         make(map[string]*Breaker),
	}
}

// Breaker returns the circuit breaker for the upstream, creating it on
// first use.
func (e *Executor) Breaker(upstream string) *Breaker {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.breakers[upstream]
	if !ok {
		b = NewBreaker(upstream, e.failureThreshold, e.recoveryTimeout)
		e.breakers[upstream] = b
	}
	return b
}

// Execute runs fn with retries under the upstream's circuit breaker.
// Circuit-open rejections never invoke fn and are not retried; every fn
// failure, retryable or not, counts toward the breaker so a misconfigured
// upstream still trips it.
func (e *Executor) Execute(ctx context.Context, upstream string, fn func(context.Context) error, retryable func(error) bool) error {
	b := e.Breaker(upstream)

	attempt := func(ctx context.Context) error {
		if err := b.Allow(); err != nil {
			return err
		}
		if err := fn(ctx); err != nil {
			b.RecordFailure()
			return err
		}
		b.RecordSuccess()
		return nil
	}

	classify := func(err error) bool {
		var open *CircuitOpenError
		if errors.As(err, &open) {
			return false
		}
		if retryable == nil {
			return true
		}
		return retryable(err)
	}

	return e.policy.Do(ctx, attempt, classify)
}

// ExecuteWithFallback tries each upstream in order with the full retry
// budget, returning on the first success. When every upstream is
// exhausted it returns a *FallbackError referencing the last failure.
func (e *Executor) ExecuteWithFallback(ctx context.Context, upstreams []string, fn func(ctx context.Context, upstream string) error, retryable func(error) bool) error {
	if len(upstreams) == 0 {
		return errors.New("no upstreams configured")
	}

	var lastErr error
	for _, name := range upstreams {
		err := e.Execute(ctx, name, func(ctx context.Context) error {
			return fn(ctx, name)
		}, retryable)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return &FallbackError{Upstreams: upstreams, Last: lastErr}
}
