// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medlit-engine/internal/agent"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a research question with the agentic workflow",
	Long: `Ask runs the research agent: the AI model decides which literature
tools to call, reads the results, and iterates until it can give a final
answer. Use --trace to watch the tool calls as they happen.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	providerName, _ := cmd.Flags().GetString("provider")
	trace, _ := cmd.Flags().GetBool("trace")

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

	if providerName != "" {
		// The agent always goes through the router default; repoint it
		// for this run instead of threading a provider through every
		// loop iteration.
		e.router.SetDefault(providerName)
	}

	var tracew io.Writer
	if trace {
		tracew = os.Stderr
	}

	a := agent.New(e.router, e.searcher, tracew)
	answer, err := a.Run(context.Background(), question, maxIterations)
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}

func init() {
	askCmd.Flags().Int("max-iterations", 5, "maximum tool-use iterations before giving up")
	askCmd.Flags().String("provider", "", "AI provider to use (default: configured default)")
	askCmd.Flags().Bool("trace", false, "print tool calls to stderr as they happen")

	rootCmd.AddCommand(askCmd)
}
