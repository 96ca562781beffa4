// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/medlit-engine/internal/httputil"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

// pubmedSearchBase and pubmedFetchBase are the NCBI E-utilities endpoints.
// Declared as vars so tests can substitute an httptest server.
var (
	pubmedSearchBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pubmedFetchBase  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
)

// PubMedBackend queries PubMed through the NCBI E-utilities API.
type PubMedBackend struct {
	Client *http.Client
	// Email is sent per NCBI usage policy.
	Email string
	// APIKey raises the rate limit from 3 to 10 requests per second.
	APIKey    string
	UserAgent string
}

// Name returns the backend identifier.
func (b *PubMedBackend) Name() string { return "pubmed" }

type esearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// Search runs esearch and returns PMIDs sorted by relevance.
func (b *PubMedBackend) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty PubMed query")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {fmt.Sprintf("%d", maxResults)},
		"retmode": {"json"},
		"sort":    {"relevance"},
	}
	b.commonParams(params)

	resp, err := b.get(ctx, pubmedSearchBase+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("PubMed esearch: %w", err)
	}
	defer resp.Body.Close()

	var er esearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("parsing PubMed esearch response: %w", err)
	}
	return er.ESearchResult.IDList, nil
}

// pubmedArticleSet mirrors the efetch XML record structure.
type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			ArticleTitle string `xml:"ArticleTitle"`
			Abstract     struct {
				Texts []string `xml:"AbstractText"`
			} `xml:"Abstract"`
			AuthorList struct {
				Authors []struct {
					LastName       string `xml:"LastName"`
					ForeName       string `xml:"ForeName"`
					CollectiveName string `xml:"CollectiveName"`
				} `xml:"Author"`
			} `xml:"AuthorList"`
			Journal struct {
				Title        string `xml:"Title"`
				JournalIssue struct {
					PubDate struct {
						Year  string `xml:"Year"`
						Month string `xml:"Month"`
						Day   string `xml:"Day"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			ELocationIDs []struct {
				Type  string `xml:"EIdType,attr"`
				Value string `xml:",chardata"`
			} `xml:"ELocationID"`
		} `xml:"Article"`
		KeywordList struct {
			Keywords []string `xml:"Keyword"`
		} `xml:"KeywordList"`
	} `xml:"MedlineCitation"`
}

// FetchDetails runs efetch for the given PMIDs and maps the XML records
// to canonical Articles.
func (b *PubMedBackend) FetchDetails(ctx context.Context, ids []string) ([]types.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
	}
	b.commonParams(params)

	resp, err := b.get(ctx, pubmedFetchBase+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("PubMed efetch: %w", err)
	}
	defer resp.Body.Close()

	var set pubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("parsing PubMed efetch response: %w", err)
	}

	var articles []types.Article
	for _, pa := range set.Articles {
		mc := pa.MedlineCitation
		a := types.Article{
			ID:       mc.PMID,
			Title:    strings.TrimSpace(mc.Article.ArticleTitle),
			Abstract: strings.TrimSpace(strings.Join(mc.Article.Abstract.Texts, " ")),
			Journal:  mc.Article.Journal.Title,
			URL:      "https://pubmed.ncbi.nlm.nih.gov/" + mc.PMID + "/",
			Keywords: mc.KeywordList.Keywords,
			Source:   "pubmed",
		}

		for _, author := range mc.Article.AuthorList.Authors {
			switch {
			case author.CollectiveName != "":
				a.Authors = append(a.Authors, author.CollectiveName)
			case author.LastName != "":
				name := author.LastName
				if author.ForeName != "" {
					name = author.ForeName + " " + author.LastName
				}
				a.Authors = append(a.Authors, name)
			}
		}

		pd := mc.Article.Journal.JournalIssue.PubDate
		var parts []string
		for _, p := range []string{pd.Year, pd.Month, pd.Day} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		a.PubDate = strings.Join(parts, " ")

		for _, eloc := range mc.Article.ELocationIDs {
			if strings.EqualFold(eloc.Type, "doi") {
				a.DOI = strings.TrimSpace(eloc.Value)
				break
			}
		}

		articles = append(articles, a)
	}
	return articles, nil
}

// commonParams adds the identification parameters NCBI asks for.
func (b *PubMedBackend) commonParams(params url.Values) {
	if b.Email != "" {
		params.Set("email", b.Email)
	}
	if b.APIKey != "" {
		params.Set("api_key", b.APIKey)
	}
	params.Set("tool", "medlit-engine")
}

func (b *PubMedBackend) get(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
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
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &httputil.StatusError{Code: resp.StatusCode}
	}
	return resp, nil
}
