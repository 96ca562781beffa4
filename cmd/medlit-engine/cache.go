// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medlit-engine/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local response cache",
	Long: `Cache shows per-namespace statistics for the local cache of AI responses
and literature query results, and clears entries on request.`,
	RunE: runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [namespace]",
	Short: "Remove cached entries",
	Long: `Clear removes all entries in the named cache namespace, or every
namespace when none is given. Namespaces: ai-responses, query-results.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheClear,
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	if e.store == nil {
		return fmt.Errorf("caching is disabled (cache.enabled: false)")
	}

	fmt.Fprintf(os.Stdout, "%-16s  %8s  %12s\n", "Namespace", "Entries", "Bytes")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 40))
	for _, ns := range []string{cache.NamespaceAIResponses, cache.NamespaceQueryResults} {
		stats := e.store.Stats(ns)
		fmt.Fprintf(os.Stdout, "%-16s  %8d  %12d\n", ns, stats.Count, stats.Bytes)
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	if e.store == nil {
		return fmt.Errorf("caching is disabled (cache.enabled: false)")
	}

	if len(args) == 0 {
		e.store.ClearAll()
		fmt.Println("Cleared all cache namespaces.")
		return nil
	}

	ns := args[0]
	switch ns {
	case cache.NamespaceAIResponses, cache.NamespaceQueryResults:
		e.store.Clear(ns)
		fmt.Printf("Cleared namespace %s.\n", ns)
		return nil
	default:
		return fmt.Errorf("unknown namespace %q: use %s or %s", ns, cache.NamespaceAIResponses, cache.NamespaceQueryResults)
	}
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
