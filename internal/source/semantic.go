// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/medlit-engine/internal/httputil"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a
// var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const semanticFields = "paperId,title,abstract,authors,venue,year,publicationDate,externalIds,citationCount,isOpenAccess,openAccessPdf,url"

// SemanticScholarBackend queries the Semantic Scholar Graph API.
type SemanticScholarBackend struct {
	Client *http.Client
	// APIKey is optional; it raises the shared-pool rate limit.
	APIKey    string
	UserAgent string
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() string { return "semantic_scholar" }

type semanticSearchResponse struct {
	Data []struct {
		PaperID string `json:"paperId"`
	} `json:"data"`
}

// semanticPaper mirrors one Graph API paper object. Batch lookups return
// null for unresolvable IDs, hence the pointer element type at the caller.
type semanticPaper struct {
	PaperID         string `json:"paperId"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	Venue           string `json:"venue"`
	Year            int    `json:"year"`
	PublicationDate string `json:"publicationDate"`
	URL             string `json:"url"`
	CitationCount   int    `json:"citationCount"`
	IsOpenAccess    bool   `json:"isOpenAccess"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ExternalIDs struct {
		DOI string `json:"DOI"`
	} `json:"externalIds"`
	OpenAccessPdf struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

// Search returns Semantic Scholar paper IDs for the query.
func (b *SemanticScholarBackend) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	params := url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", maxResults)},
		"fields": {"paperId"},
	}
	reqURL := semanticAPIBase + "/paper/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	b.setHeaders(req)

	resp, err := b.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar search: %w", err)
	}
	defer resp.Body.Close()

	var sr semanticSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	var ids []string
	for _, d := range sr.Data {
		if d.PaperID != "" {
			ids = append(ids, d.PaperID)
		}
	}
	return ids, nil
}

// FetchDetails resolves paper IDs through the batch endpoint.
func (b *SemanticScholarBackend) FetchDetails(ctx context.Context, ids []string) ([]types.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string][]string{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("encoding batch request: %w", err)
	}

	reqURL := semanticAPIBase + "/paper/batch?fields=" + url.QueryEscape(semanticFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.setHeaders(req)

	resp, err := b.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar batch fetch: %w", err)
	}
	defer resp.Body.Close()

	var papers []*semanticPaper
	if err := json.NewDecoder(resp.Body).Decode(&papers); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar batch response: %w", err)
	}

	var articles []types.Article
	for _, p := range papers {
		if p == nil || p.PaperID == "" {
			continue
		}

		a := types.Article{
			ID:            p.PaperID,
			Title:         strings.TrimSpace(p.Title),
			Abstract:      strings.TrimSpace(p.Abstract),
			Journal:       p.Venue,
			DOI:           p.ExternalIDs.DOI,
			URL:           p.URL,
			Source:        "semantic_scholar",
			CitationCount: p.CitationCount,
			PDFURL:        p.OpenAccessPdf.URL,
			OpenAccess:    p.IsOpenAccess,
		}

		if p.PublicationDate != "" {
			a.PubDate = p.PublicationDate
		} else if p.Year > 0 {
			a.PubDate = fmt.Sprintf("%d", p.Year)
		}

		for _, author := range p.Authors {
			if author.Name != "" {
				a.Authors = append(a.Authors, author.Name)
			}
		}

		articles = append(articles, a)
	}
	return articles, nil
}

func (b *SemanticScholarBackend) setHeaders(req *http.Request) {
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}
	if b.APIKey != "" {
		req.Header.Set("x-api-key", b.APIKey)
	}
}

func (b *SemanticScholarBackend) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &httputil.StatusError{Code: resp.StatusCode}
	}
	return resp, nil
}
