// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/medlit-engine/internal/httputil"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

// europePMCAPIBase is the Europe PMC REST endpoint. Declared as a var so
// tests can substitute an httptest server.
var europePMCAPIBase = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// EuropePMCBackend queries the Europe PMC REST API.
type EuropePMCBackend struct {
	Client *http.Client
	// Email is sent with requests when set, per Europe PMC etiquette.
	Email     string
	UserAgent string
}

// Name returns the backend identifier.
func (b *EuropePMCBackend) Name() string { return "europe_pmc" }

type europePMCResponse struct {
	ResultList struct {
		Results []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	ID                   string `json:"id"`
	Source               string `json:"source"`
	Title                string `json:"title"`
	AbstractText         string `json:"abstractText"`
	AuthorString         string `json:"authorString"`
	JournalTitle         string `json:"journalTitle"`
	FirstPublicationDate string `json:"firstPublicationDate"`
	DOI                  string `json:"doi"`
	CitedByCount         int    `json:"citedByCount"`
	IsOpenAccess         string `json:"isOpenAccess"`
	KeywordList          struct {
		Keywords []string `json:"keyword"`
	} `json:"keywordList"`
	FullTextURLList struct {
		FullTextURLs []struct {
			DocumentStyle string `json:"documentStyle"`
			URL           string `json:"url"`
		} `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

// Search returns Europe PMC record IDs for the query.
func (b *EuropePMCBackend) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty Europe PMC query")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	params := url.Values{
		"query":      {query},
		"format":     {"json"},
		"pageSize":   {fmt.Sprintf("%d", maxResults)},
		"resultType": {"idlist"},
	}
	if b.Email != "" {
		params.Set("email", b.Email)
	}

	var er europePMCResponse
	if err := b.get(ctx, "search", params, &er); err != nil {
		return nil, fmt.Errorf("Europe PMC search: %w", err)
	}

	var ids []string
	for _, r := range er.ResultList.Results {
		if r.ID != "" {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

// FetchDetails retrieves full records for the IDs via a single core-result
// search over an EXT_ID disjunction.
func (b *EuropePMCBackend) FetchDetails(ctx context.Context, ids []string) ([]types.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	terms := make([]string, len(ids))
	for i, id := range ids {
		terms[i] = fmt.Sprintf("EXT_ID:%q", id)
	}

	params := url.Values{
		"query":      {strings.Join(terms, " OR ")},
		"format":     {"json"},
		"pageSize":   {fmt.Sprintf("%d", len(ids))},
		"resultType": {"core"},
	}
	if b.Email != "" {
		params.Set("email", b.Email)
	}

	var er europePMCResponse
	if err := b.get(ctx, "search", params, &er); err != nil {
		return nil, fmt.Errorf("Europe PMC fetch: %w", err)
	}

	var articles []types.Article
	for _, r := range er.ResultList.Results {
		a := types.Article{
			ID:            r.ID,
			Title:         strings.TrimSpace(r.Title),
			Abstract:      strings.TrimSpace(r.AbstractText),
			Journal:       r.JournalTitle,
			PubDate:       r.FirstPublicationDate,
			DOI:           r.DOI,
			Keywords:      r.KeywordList.Keywords,
			Source:        "europe_pmc",
			CitationCount: r.CitedByCount,
			OpenAccess:    r.IsOpenAccess == "Y",
		}

		if r.AuthorString != "" {
			for _, name := range strings.Split(r.AuthorString, ", ") {
				name = strings.TrimSuffix(strings.TrimSpace(name), ".")
				if name != "" {
					a.Authors = append(a.Authors, name)
				}
			}
		}

		if r.Source != "" {
			a.URL = fmt.Sprintf("https://europepmc.org/article/%s/%s", r.Source, r.ID)
		}
		for _, ft := range r.FullTextURLList.FullTextURLs {
			if strings.EqualFold(ft.DocumentStyle, "pdf") {
				a.PDFURL = ft.URL
				break
			}
		}

		articles = append(articles, a)
	}
	return articles, nil
}

func (b *EuropePMCBackend) get(ctx context.Context, endpoint string, params url.Values, dest any) error {
	reqURL := europePMCAPIBase + "/" + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &httputil.StatusError{Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
