// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medlit-engine/internal/provider"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured AI providers",
	Long: `Providers lists the configured AI model backends and which one is the
default. A provider appears here only when its API key is present in the
config or .secrets/ directory.`,
	RunE: runProviders,
}

func runProviders(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	infos := e.router.ProviderInfo()
	if len(infos) == 0 {
		fmt.Println("No providers configured.")
		return nil
	}

	names := e.router.AvailableProviders()
	defaultName := strings.ToLower(e.cfg.AI.DefaultProvider)

	fmt.Fprintf(os.Stdout, "%-10s  %-28s  %-30s  %s\n", "Name", "Model", "Display name", "Default")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for i, info := range infos {
		marker := ""
		if names[i] == defaultName {
			marker = "*"
		}
		fmt.Fprintf(os.Stdout, "%-10s  %-28s  %-30s  %s\n", names[i], info.Model, info.DisplayName, marker)
	}
	return nil
}

var providersCompareCmd = &cobra.Command{
	Use:   "compare [prompt]",
	Short: "Send the same prompt to every provider and show the responses",
	Long: `Compare runs one prompt through every configured provider in turn.
A provider that fails shows its error; the rest still answer. Useful for
judging model quality and cost on a representative prompt.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProvidersCompare,
}

func runProvidersCompare(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")

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

	results := e.router.Compare(context.Background(), types.GenerateRequest{
		Prompt:    prompt,
		MaxTokens: maxTokens,
	})

	for _, name := range provider.SortedProviderKeys(results) {
		resp := results[name]
		fmt.Fprintf(os.Stdout, "=== %s (%s) ===\n", name, resp.Model)
		if resp.Failed() {
			fmt.Fprintf(os.Stdout, "error: %s\n\n", resp.Error)
			continue
		}
		fmt.Fprintln(os.Stdout, resp.Content)
		if resp.Cached {
			fmt.Fprintf(os.Stdout, "[cached]\n\n")
		} else {
			fmt.Fprintf(os.Stdout, "[%d tokens, $%.4f]\n\n", resp.TotalTokens, resp.Cost)
		}
	}
	return nil
}

func init() {
	providersCompareCmd.Flags().Int("max-tokens", 512, "completion budget per provider")

	providersCmd.AddCommand(providersCompareCmd)
	rootCmd.AddCommand(providersCmd)
}
