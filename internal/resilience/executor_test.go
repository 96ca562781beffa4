// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExecutor(threshold int) *Executor {
	return NewExecutor(fastPolicy(), threshold, time.Minute)
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	e := testExecutor(10)

	calls := 0
	err := e.Execute(context.Background(), "api", func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	}, func(error) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateClosed, e.Breaker("api").State())
}

func TestExecuteTripsBreaker(t *testing.T) {
	e := testExecutor(3)

	// 3 attempts, all failing: the breaker opens at the threshold.
	err := e.Execute(context.Background(), "api", func(context.Context) error {
		return errors.New("down")
	}, func(error) bool { return true })
	require.Error(t, err)
	assert.Equal(t, StateOpen, e.Breaker("api").State())

	// The next call is rejected without invoking fn.
	calls := 0
	err = e.Execute(context.Background(), "api", func(context.Context) error {
		calls++
		return nil
	}, nil)
	var open *CircuitOpenError
	require.ErrorAs(t, err, &open)
	assert.Zero(t, calls, "an open circuit must short-circuit the call")
}

func TestExecuteNonRetryableStillCountsTowardBreaker(t *testing.T) {
	e := testExecutor(2)

	permanent := errors.New("unauthorized")
	for i := 0; i < 2; i++ {
		err := e.Execute(context.Background(), "api", func(context.Context) error {
			return permanent
		}, func(error) bool { return false })
		assert.ErrorIs(t, err, permanent)
	}
	assert.Equal(t, StateOpen, e.Breaker("api").State(),
		"permanent failures trip the breaker even though they are not retried")
}

func TestExecuteBreakersAreIndependent(t *testing.T) {
	e := testExecutor(1)

	e.Execute(context.Background(), "pubmed", func(context.Context) error {
		return errors.New("down")
	}, func(error) bool { return false })
	assert.Equal(t, StateOpen, e.Breaker("pubmed").State())

	err := e.Execute(context.Background(), "europepmc", func(context.Context) error {
		return nil
	}, nil)
	assert.NoError(t, err, "one upstream's open circuit must not affect another")
}

func TestExecuteWithFallback(t *testing.T) {
	e := testExecutor(10)

	var tried []string
	err := e.ExecuteWithFallback(context.Background(), []string{"primary", "secondary"},
		func(_ context.Context, upstream string) error {
			tried = append(tried, upstream)
			if upstream == "primary" {
				return errors.New("down")
			}
			return nil
		}, func(error) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, []string{"primary", "secondary"}, tried)
}

func TestExecuteWithFallbackAllFail(t *testing.T) {
	e := testExecutor(10)

	last := errors.New("secondary down")
	err := e.ExecuteWithFallback(context.Background(), []string{"primary", "secondary"},
		func(_ context.Context, upstream string) error {
			if upstream == "primary" {
				return errors.New("primary down")
			}
			return last
		}, func(error) bool { return false })

	var fallback *FallbackError
	require.ErrorAs(t, err, &fallback)
	assert.Equal(t, []string{"primary", "secondary"}, fallback.Upstreams)
	assert.ErrorIs(t, err, last, "the fallback error unwraps to the last upstream's error")
}

func TestExecuteWithFallbackNoUpstreams(t *testing.T) {
	e := testExecutor(10)
	err := e.ExecuteWithFallback(context.Background(), nil, func(context.Context, string) error {
		return nil
	}, nil)
	assert.Error(t, err)
}
