// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source adapts upstream literature databases (PubMed, Europe PMC,
// Semantic Scholar) to the canonical Article record. Each backend
// implements the same two-step contract per the Strategy pattern: a search
// returning source record IDs, and a detail fetch turning IDs into
// Articles.
package source

import (
	"context"
	"errors"
	"net"

	"github.com/pdiddy/medlit-engine/internal/cache"
	"github.com/pdiddy/medlit-engine/internal/httputil"
	"github.com/pdiddy/medlit-engine/internal/resilience"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

// Backend searches a single literature database.
type Backend interface {
	// Name returns the backend identifier (e.g. "pubmed").
	Name() string

	// Search returns up to maxResults source record IDs for the query.
	Search(ctx context.Context, query string, maxResults int) ([]string, error)

	// FetchDetails resolves record IDs into canonical Articles.
	FetchDetails(ctx context.Context, ids []string) ([]types.Article, error)
}

// SearchAndFetch runs search and detail fetch in one call, read-through
// cached in the query-results namespace when store is non-nil. The cache
// check always precedes the live call, which always precedes the cache
// write.
func SearchAndFetch(ctx context.Context, b Backend, store *cache.Store, query string, maxResults int) ([]types.Article, error) {
	params := map[string]any{
		"query":       query,
		"max_results": maxResults,
		"source":      b.Name(),
	}

	if store != nil {
		var cached []types.Article
		if store.Get(cache.NamespaceQueryResults, params, &cached) {
			return cached, nil
		}
	}

	ids, err := b.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	articles, err := b.FetchDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	if store != nil && len(articles) > 0 {
		store.Set(cache.NamespaceQueryResults, params, articles, 0)
	}
	return articles, nil
}

// IsTransient classifies upstream errors for the retry wrapper: timeouts,
// connection failures, rate limits, and 5xx responses merit a retry;
// anything else (bad request, auth failure, not-found) is permanent.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, resilience.ErrRateLimited) {
		return true
	}
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
