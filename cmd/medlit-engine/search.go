// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medlit-engine/internal/aggregate"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search biomedical literature across all configured sources",
	Long: `Search queries PubMed, Europe PMC, and Semantic Scholar concurrently,
merges the results, removes duplicates by DOI and title, and sorts them.
Query results are cached, so repeating a search is free until the cache
entry expires.

A source that fails or times out contributes nothing; the rest of the
results are still returned.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	perSource, _ := cmd.Flags().GetInt("per-source")
	sortBy, _ := cmd.Flags().GetString("sort")
	noDedupe, _ := cmd.Flags().GetBool("no-dedupe")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	showStats, _ := cmd.Flags().GetBool("stats")

	switch aggregate.SortMode(sortBy) {
	case aggregate.SortCitationCount, aggregate.SortPubDate, aggregate.SortRelevance:
	default:
		return fmt.Errorf("unsupported sort %q: use citation_count, pub_date, or relevance", sortBy)
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	if perSource <= 0 {
		perSource = e.cfg.Search.MaxResultsPerSource
	}

	ctx := context.Background()

	if showStats {
		bySource := e.searcher.SearchAllSources(ctx, query, perSource, true)
		stats := aggregate.Statistics(bySource)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	articles := e.searcher.SearchAndMerge(ctx, query, perSource, maxResults, !noDedupe, aggregate.SortMode(sortBy))
	return formatSearchOutput(articles, jsonOutput)
}

func formatSearchOutput(articles []types.Article, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(articles)
	}

	if len(articles) == 0 {
		fmt.Println("No articles found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-60s  %-12s  %-10s  %-6s  %s\n",
		"Rank", "Title", "Source", "Date", "Cites", "DOI")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))

	for i, a := range articles {
		title := a.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-60s  %-12s  %-10s  %-6d  %s\n",
			i+1, title, a.Source, a.PubDate, a.CitationCount, a.DOI)
	}

	fmt.Fprintf(os.Stdout, "\n%d articles\n", len(articles))
	return nil
}

func init() {
	searchCmd.Flags().Int("max-results", 20, "maximum number of merged results to return (0 = no limit)")
	searchCmd.Flags().Int("per-source", 0, "per-source result limit (0 = config default)")
	searchCmd.Flags().String("sort", "citation_count", "result order: citation_count, pub_date, or relevance")
	searchCmd.Flags().Bool("no-dedupe", false, "keep duplicate records across sources")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().Bool("stats", false, "print per-source result statistics instead of articles")

	rootCmd.AddCommand(searchCmd)
}
