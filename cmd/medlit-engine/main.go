// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the medlit-engine CLI.
// The CLI surfaces multi-source literature search, AI-assisted analysis,
// and the agentic ask workflow, with caching and cost accounting
// underneath every command.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/medlit-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the medlit-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "medlit-engine",
	Short: "Multi-source biomedical literature search and AI analysis",
	Long: `medlit-engine searches biomedical literature across PubMed, Europe PMC,
and Semantic Scholar, merges and deduplicates the results, and analyzes them
with AI model providers (Claude, Kimi, Qwen).

Responses and query results are cached locally, model spending is tracked
against daily and monthly limits, and flaky upstreams are handled with
retries and per-upstream circuit breakers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./medlit-engine.yaml or ~/.config/medlit-engine/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("medlit-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "medlit-engine"))
		}
	}

	viper.SetEnvPrefix("MEDLIT_ENGINE")
	viper.AutomaticEnv()

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
