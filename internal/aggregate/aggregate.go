// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate fans a query out to every configured literature source
// concurrently and produces one deduplicated, ordered result set. A slow
// or failing source degrades to an empty contribution; it never blocks or
// fails the merge.
package aggregate

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pdiddy/medlit-engine/internal/cache"
	"github.com/pdiddy/medlit-engine/internal/resilience"
	"github.com/pdiddy/medlit-engine/internal/source"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

// SortMode selects the merged result order.
type SortMode string

const (
	// SortCitationCount orders by citation count, descending.
	SortCitationCount SortMode = "citation_count"
	// SortPubDate orders by the stored date string, descending.
	SortPubDate SortMode = "pub_date"
	// SortRelevance preserves the original per-source relevance order.
	SortRelevance SortMode = "relevance"
)

// Searcher queries all configured sources through the cache store and the
// resilience executor.
type Searcher struct {
	backends      []source.Backend
	store         *cache.Store // nil disables caching
	exec          *resilience.Executor
	sourceTimeout time.Duration
	warnw         io.Writer
}

// NewSearcher builds a Searcher over the given backends. warnw receives
// per-source failure notices; sourceTimeout bounds each source call during
// fan-out (0 for none).
func NewSearcher(backends []source.Backend, store *cache.Store, exec *resilience.Executor, sourceTimeout time.Duration, warnw io.Writer) *Searcher {
	if warnw == nil {
		warnw = io.Discard
	}
	return &Searcher{
		backends:      backends,
		store:         store,
		exec:          exec,
		sourceTimeout: sourceTimeout,
		warnw:         warnw,
	}
}

// Backend returns the configured backend with the given name, matched
// case-insensitively.
func (s *Searcher) Backend(name string) (source.Backend, bool) {
	for _, b := range s.backends {
		if strings.EqualFold(b.Name(), name) {
			return b, true
		}
	}
	return nil, false
}

// Sources lists the configured source names in registration order.
func (s *Searcher) Sources() []string {
	names := make([]string, len(s.backends))
	for i, b := range s.backends {
		names[i] = b.Name()
	}
	return names
}

// searchSingle queries one source with its own timeout. Any failure,
// including a circuit-open rejection, degrades to an empty list with a
// notice on the warning writer.
func (s *Searcher) searchSingle(ctx context.Context, b source.Backend, query string, maxResults int) []types.Article {
	if s.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sourceTimeout)
		defer cancel()
	}

	var articles []types.Article
	err := s.exec.Execute(ctx, b.Name(), func(ctx context.Context) error {
		var err error
		articles, err = source.SearchAndFetch(ctx, b, s.store, query, maxResults)
		return err
	}, source.IsTransient)
	if err != nil {
		fmt.Fprintf(s.warnw, "warning: source %s failed: %v\n", b.Name(), err)
		return nil
	}
	return articles
}

// SearchAllSources queries every configured source and returns the
// per-source results. When parallel is true one worker runs per source;
// each outcome is collected independently and failures become empty lists.
func (s *Searcher) SearchAllSources(ctx context.Context, query string, perSourceLimit int, parallel bool) map[string][]types.Article {
	results := make(map[string][]types.Article, len(s.backends))

	if !parallel {
		for _, b := range s.backends {
			results[b.Name()] = s.searchSingle(ctx, b, query, perSourceLimit)
		}
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, b := range s.backends {
		wg.Add(1)
		go func(b source.Backend) {
			defer wg.Done()
			articles := s.searchSingle(ctx, b, query, perSourceLimit)
			mu.Lock()
			results[b.Name()] = articles
			mu.Unlock()
		}(b)
	}
	wg.Wait()

	return results
}

// SearchAndMerge queries all sources, concatenates the results in source
// registration order, optionally deduplicates, sorts, and truncates to
// totalLimit (0 for no limit). Truncation always happens after sort and
// dedup.
func (s *Searcher) SearchAndMerge(ctx context.Context, query string, perSourceLimit, totalLimit int, dedupe bool, sortBy SortMode) []types.Article {
	bySource := s.SearchAllSources(ctx, query, perSourceLimit, true)

	// Registration order keeps the concatenation, and therefore the
	// first-seen-wins dedup outcome, deterministic.
	var merged []types.Article
	for _, b := range s.backends {
		merged = append(merged, bySource[b.Name()]...)
	}

	if dedupe {
		merged, _ = Deduplicate(merged)
	}

	SortArticles(merged, sortBy)

	if totalLimit > 0 && len(merged) > totalLimit {
		merged = merged[:totalLimit]
	}
	return merged
}

// Deduplicate drops records that repeat an already-kept record's DOI
// (case-insensitive) or normalized title. The earliest record in input
// order is kept; later duplicates are dropped silently. Returns the kept
// records and the number removed.
func Deduplicate(articles []types.Article) ([]types.Article, int) {
	seenDOIs := make(map[string]bool)
	seenTitles := make(map[string]bool)

	var unique []types.Article
	removed := 0

	for _, a := range articles {
		doi := strings.ToLower(a.DOI)
		title := NormalizeTitle(a.Title)

		if (doi != "" && seenDOIs[doi]) || (title != "" && seenTitles[title]) {
			removed++
			continue
		}

		if doi != "" {
			seenDOIs[doi] = true
		}
		if title != "" {
			seenTitles[title] = true
		}
		unique = append(unique, a)
	}
	return unique, removed
}

// NormalizeTitle lowercases the title and strips everything but letters,
// digits, and spaces, collapsing runs of whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SortArticles orders articles in place. Sorting is stable: ties keep
// their original relative order, so merge output is reproducible.
func SortArticles(articles []types.Article, mode SortMode) {
	switch mode {
	case SortCitationCount:
		sort.SliceStable(articles, func(i, j int) bool {
			return articles[i].CitationCount > articles[j].CitationCount
		})
	case SortPubDate:
		sort.SliceStable(articles, func(i, j int) bool {
			return articles[i].PubDate > articles[j].PubDate
		})
	default:
		// Preserve the per-source relevance order.
	}
}

// Stats summarizes a per-source result set. It is a pure fold over
// already-merged data and makes no additional calls.
type Stats struct {
	TotalArticles    int            `json:"total_articles"`
	BySource         map[string]int `json:"by_source"`
	OpenAccessCount  int            `json:"open_access_count"`
	WithPDFCount     int            `json:"with_pdf_count"`
	AvgCitationCount float64        `json:"avg_citation_count"`
}

// Statistics computes result statistics over the output of SearchAllSources.
func Statistics(results map[string][]types.Article) Stats {
	stats := Stats{BySource: make(map[string]int)}

	totalCitations := 0
	for name, articles := range results {
		stats.BySource[name] = len(articles)
		stats.TotalArticles += len(articles)

		for _, a := range articles {
			if a.OpenAccess {
				stats.OpenAccessCount++
			}
			if a.PDFURL != "" {
				stats.WithPDFCount++
			}
			totalCitations += a.CitationCount
		}
	}

	if stats.TotalArticles > 0 {
		stats.AvgCitationCount = float64(totalCitations) / float64(stats.TotalArticles)
	}
	return stats
}
