// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/medlit-engine/internal/cache"
	"github.com/pdiddy/medlit-engine/internal/httputil"
	"github.com/pdiddy/medlit-engine/internal/resilience"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

// stubBackend counts calls and serves canned articles.
type stubBackend struct {
	name      string
	searches  int
	fetches   int
	articles  []types.Article
	searchErr error
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Search(_ context.Context, query string, maxResults int) ([]string, error) {
	s.searches++
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	var ids []string
	for _, a := range s.articles {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (s *stubBackend) FetchDetails(_ context.Context, ids []string) ([]types.Article, error) {
	s.fetches++
	return s.articles, nil
}

func TestSearchAndFetchReadThrough(t *testing.T) {
	store, err := cache.Open(t.TempDir(), time.Hour, 0)
	require.NoError(t, err)
	defer store.Close()

	b := &stubBackend{
		name:     "stub",
		articles: []types.Article{{ID: "1", Title: "One", Source: "stub"}},
	}

	got, err := SearchAndFetch(context.Background(), b, store, "query", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, b.searches)
	assert.Equal(t, 1, b.fetches)

	// The second identical call is served from the cache.
	got, err = SearchAndFetch(context.Background(), b, store, "query", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "One", got[0].Title)
	assert.Equal(t, 1, b.searches, "cached call must not hit the backend")
	assert.Equal(t, 1, b.fetches)

	// A different limit is a different cache key.
	_, err = SearchAndFetch(context.Background(), b, store, "query", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, b.searches)
}

func TestSearchAndFetchNilStore(t *testing.T) {
	b := &stubBackend{name: "stub", articles: []types.Article{{ID: "1"}}}

	got, err := SearchAndFetch(context.Background(), b, nil, "query", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSearchAndFetchPropagatesErrors(t *testing.T) {
	b := &stubBackend{name: "stub", searchErr: errors.New("upstream down")}

	_, err := SearchAndFetch(context.Background(), b, nil, "query", 10)
	assert.ErrorContains(t, err, "upstream down")
	assert.Zero(t, b.fetches, "a failed search must not fetch details")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "wrapped deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: true},
		{name: "rate limited", err: fmt.Errorf("api: %w", resilience.ErrRateLimited), want: true},
		{name: "status 503", err: &httputil.StatusError{Code: 503}, want: true},
		{name: "status 429", err: &httputil.StatusError{Code: 429}, want: true},
		{name: "status 404", err: &httputil.StatusError{Code: 404}, want: false},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, want: true},
		{name: "plain error", err: errors.New("malformed response"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
