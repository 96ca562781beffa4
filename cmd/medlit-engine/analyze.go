// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medlit-engine/internal/aggregate"
	"github.com/pdiddy/medlit-engine/internal/analyze"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [query]",
	Short: "Search the literature and analyze the results with an AI model",
	Long: `Analyze runs a literature search and feeds the top results through an
AI model. The default mode summarizes the single best match; --synthesize
writes a cross-article synthesis, --key-points extracts a bullet list, and
--question answers a free-form question against the retrieved abstracts.

Responses are cached, so re-running the same analysis does not spend
tokens. Spending limits are checked before any model call.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	providerName, _ := cmd.Flags().GetString("provider")
	style, _ := cmd.Flags().GetString("style")
	maxArticles, _ := cmd.Flags().GetInt("max-articles")
	synthesize, _ := cmd.Flags().GetBool("synthesize")
	keyPoints, _ := cmd.Flags().GetBool("key-points")
	question, _ := cmd.Flags().GetString("question")

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.requireProviders(); err != nil {
		return err
	}
	if err := e.checkQuota(); err != nil {
		return err
	}

	ctx := context.Background()

	articles := e.searcher.SearchAndMerge(ctx, query, e.cfg.Search.MaxResultsPerSource, maxArticles, true, aggregate.SortCitationCount)
	if len(articles) == 0 {
		return fmt.Errorf("no articles found for %q", query)
	}
	fmt.Fprintf(os.Stderr, "Analyzing %d article(s)\n", len(articles))

	analyzer := analyze.NewAnalyzer(e.router)

	var resp types.GenerateResponse
	switch {
	case question != "":
		resp = analyzer.AnswerQuestion(ctx, question, articles, providerName)
	case synthesize:
		resp = analyzer.SynthesizeMultiple(ctx, articles, providerName)
	case keyPoints:
		resp = analyzer.ExtractKeyPoints(ctx, articles[0], 0, providerName)
	default:
		resp = analyzer.SummarizeArticle(ctx, articles[0], style, providerName)
	}

	return printResponse(resp)
}

// printResponse writes a model response to stdout and its accounting line
// to stderr, or surfaces the failure as an error.
func printResponse(resp types.GenerateResponse) error {
	if resp.Failed() {
		return fmt.Errorf("%s", resp.Error)
	}
	fmt.Println(resp.Content)
	if resp.Cached {
		fmt.Fprintf(os.Stderr, "\n[%s/%s, cached]\n", resp.Provider, resp.Model)
	} else {
		fmt.Fprintf(os.Stderr, "\n[%s/%s, %d tokens, $%.4f]\n", resp.Provider, resp.Model, resp.TotalTokens, resp.Cost)
	}
	return nil
}

func init() {
	analyzeCmd.Flags().String("provider", "", "AI provider to use (default: configured default)")
	analyzeCmd.Flags().String("style", "concise", "summary style: concise, detailed, or clinical")
	analyzeCmd.Flags().Int("max-articles", 5, "maximum articles to retrieve for analysis")
	analyzeCmd.Flags().Bool("synthesize", false, "synthesize across all retrieved articles")
	analyzeCmd.Flags().Bool("key-points", false, "extract key points from the top article")
	analyzeCmd.Flags().String("question", "", "answer this question against the retrieved abstracts")

	rootCmd.AddCommand(analyzeCmd)
}
