// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the medlit-engine core.
package types

// Article is the canonical literature record shared across all source
// adapters. Each adapter constructs Articles from its vendor response;
// the record is immutable after construction. ID and Source together are
// unique per adapter call; DOI and the normalized title serve as
// cross-source identity keys for deduplication.
type Article struct {
	// ID is the database-specific identifier (PMID, Europe PMC ID, Semantic
	// Scholar paper ID).
	ID string `json:"id" yaml:"id"`

	// Title is the article title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Abstract is the article abstract or summary.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Authors lists the article authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Journal is the publication venue.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// PubDate is the publication date in the source's own format
	// (e.g. "2023 Mar 14" or "2023-03-14"). Sorted lexicographically.
	PubDate string `json:"pub_date,omitempty" yaml:"pub_date,omitempty"`

	// DOI is the Digital Object Identifier, empty when the source does not
	// report one.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL points at the article landing page.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Keywords lists subject terms reported by the source.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Source identifies which backend produced this record
	// (e.g. "pubmed", "semantic_scholar", "europe_pmc").
	Source string `json:"source" yaml:"source"`

	// CitationCount is the number of citing works, 0 when unknown.
	CitationCount int `json:"citation_count" yaml:"citation_count"`

	// PDFURL is a direct link to the full-text PDF, when available.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// OpenAccess reports whether the article is openly accessible.
	OpenAccess bool `json:"open_access" yaml:"open_access"`
}
