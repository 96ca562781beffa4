// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/medlit-engine/internal/httputil"
)

const efetchFixture = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>12345678</PMID>
      <Article>
        <ArticleTitle>Aspirin for primary prevention</ArticleTitle>
        <Abstract>
          <AbstractText>Background text.</AbstractText>
          <AbstractText>Conclusion text.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author><LastName>Smith</LastName><ForeName>Jane</ForeName></Author>
          <Author><CollectiveName>ASPREE Investigators</CollectiveName></Author>
        </AuthorList>
        <Journal>
          <Title>N Engl J Med</Title>
          <JournalIssue><PubDate><Year>2023</Year><Month>Aug</Month></PubDate></JournalIssue>
        </Journal>
        <ELocationID EIdType="pii">S0001</ELocationID>
        <ELocationID EIdType="doi">10.1056/nejm.2023.1</ELocationID>
      </Article>
      <KeywordList>
        <Keyword>aspirin</Keyword>
        <Keyword>prevention</Keyword>
      </KeywordList>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func TestPubMedSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
		assert.Equal(t, "aspirin", r.URL.Query().Get("term"))
		assert.Equal(t, "5", r.URL.Query().Get("retmax"))
		assert.Equal(t, "medlit-engine", r.URL.Query().Get("tool"))
		assert.Equal(t, "user@example.com", r.URL.Query().Get("email"))
		assert.Equal(t, "nk_123", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"esearchresult":{"idlist":["111","222"]}}`))
	}))
	defer ts.Close()

	old := pubmedSearchBase
	pubmedSearchBase = ts.URL
	defer func() { pubmedSearchBase = old }()

	b := &PubMedBackend{Client: ts.Client(), Email: "user@example.com", APIKey: "nk_123"}
	ids, err := b.Search(context.Background(), "aspirin", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222"}, ids)
}

func TestPubMedSearchEmptyQuery(t *testing.T) {
	b := &PubMedBackend{}
	_, err := b.Search(context.Background(), "  ", 5)
	assert.Error(t, err)
}

func TestPubMedFetchDetails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12345678", r.URL.Query().Get("id"))
		assert.Equal(t, "xml", r.URL.Query().Get("retmode"))
		w.Write([]byte(efetchFixture))
	}))
	defer ts.Close()

	old := pubmedFetchBase
	pubmedFetchBase = ts.URL
	defer func() { pubmedFetchBase = old }()

	b := &PubMedBackend{Client: ts.Client()}
	articles, err := b.FetchDetails(context.Background(), []string{"12345678"})
	require.NoError(t, err)
	require.Len(t, articles, 1)

	a := articles[0]
	assert.Equal(t, "12345678", a.ID)
	assert.Equal(t, "Aspirin for primary prevention", a.Title)
	assert.Equal(t, "Background text. Conclusion text.", a.Abstract)
	assert.Equal(t, []string{"Jane Smith", "ASPREE Investigators"}, a.Authors)
	assert.Equal(t, "N Engl J Med", a.Journal)
	assert.Equal(t, "2023 Aug", a.PubDate)
	assert.Equal(t, "10.1056/nejm.2023.1", a.DOI, "the doi ELocationID wins over pii")
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/12345678/", a.URL)
	assert.Equal(t, []string{"aspirin", "prevention"}, a.Keywords)
	assert.Equal(t, "pubmed", a.Source)
}

func TestPubMedFetchDetailsEmptyIDs(t *testing.T) {
	b := &PubMedBackend{}
	articles, err := b.FetchDetails(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestPubMedServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	old := pubmedSearchBase
	pubmedSearchBase = ts.URL
	defer func() { pubmedSearchBase = old }()

	b := &PubMedBackend{Client: ts.Client()}
	_, err := b.Search(context.Background(), "aspirin", 5)
	require.Error(t, err)

	var statusErr *httputil.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.True(t, statusErr.Transient())
}
