// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resilience executes upstream calls with bounded retries,
// exponential backoff, provider fallback, and per-upstream circuit
// breaking.
package resilience

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrRateLimited marks an upstream rate-limit rejection. Callers wrap it
// so the retry loop biases its backoff upward for that attempt.
var ErrRateLimited = errors.New("rate limited")

// Policy controls the retry loop. The zero value retries 3 times starting
// at 1s, doubling up to 60s.
type Policy struct {
	// MaxRetries is the total attempt budget (default 3).
	MaxRetries int

	// BaseDelay is the delay before the second attempt (default 1s).
	BaseDelay time.Duration

	// MaxDelay caps each backoff delay (default 60s).
	MaxDelay time.Duration

	// Base is the exponential growth factor (default 2).
	Base float64
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 60 * time.Second
	}
	if p.Base <= 0 {
		p.Base = 2
	}
	return p
}

// Delay returns the backoff before attempt i+1: min(BaseDelay*Base^i, MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Base, float64(attempt)))
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	return d
}

// Do runs fn up to MaxRetries times. Only errors accepted by retryable
// trigger another attempt; other errors return immediately. Exhausting the
// budget returns the last error. Backoff sleeps honor ctx cancellation,
// and rate-limit errors double the delay for that attempt.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error, retryable func(error) bool) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 0; attempt < p.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == p.MaxRetries-1 {
			break
		}

		delay := p.Delay(attempt)
		if errors.Is(err, ErrRateLimited) {
			delay *= 2
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
