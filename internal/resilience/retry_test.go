// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastPolicy keeps backoff waits negligible in tests.
func fastPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, func(error) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	wantErr := errors.New("still down")
	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return wantErr
	}, func(error) bool { return true })
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls)
}

func TestDoNonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("bad request")
	}, func(error) bool { return false })
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a permanent error must not be retried")
}

func TestDoContextCancelledDuringBackoff(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return errors.New("flaky")
	}, func(error) bool { return true })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls, "cancellation during backoff must stop further attempts")
}

func TestDoRateLimitedDoublesDelay(t *testing.T) {
	p := Policy{MaxRetries: 2, BaseDelay: 30 * time.Millisecond, MaxDelay: time.Second}

	start := time.Now()
	err := p.Do(context.Background(), func(context.Context) error {
		return fmt.Errorf("upstream: %w", ErrRateLimited)
	}, func(error) bool { return true })
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrRateLimited)
	// One backoff of 2*BaseDelay between the two attempts.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestDelaySequence(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 10 * time.Second, Base: 2}

	assert.Equal(t, 1*time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, 10*time.Second, p.Delay(4), "delay is capped at MaxDelay")
	assert.Equal(t, 10*time.Second, p.Delay(30), "huge exponents stay capped")
}
