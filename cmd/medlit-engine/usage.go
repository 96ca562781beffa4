// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medlit-engine/internal/ledger"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show AI spending and quota status",
	Long: `Usage summarizes recorded model API spending: totals, per-provider and
per-operation breakdowns, and position against the daily and monthly
spending limits. The limits are rolling windows measured backward from
now, not calendar days or months.`,
	RunE: runUsage,
}

func runUsage(cmd *cobra.Command, args []string) error {
	sinceDays, _ := cmd.Flags().GetInt("days")
	trimDays, _ := cmd.Flags().GetInt("trim-days")
	export, _ := cmd.Flags().GetString("export")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	if e.costs == nil {
		return fmt.Errorf("cost tracking is disabled (cost.enabled: false)")
	}

	if trimDays > 0 {
		removed := e.costs.TrimOlderThan(time.Duration(trimDays) * 24 * time.Hour)
		fmt.Fprintf(os.Stderr, "Removed %d record(s) older than %d days\n", removed, trimDays)
		return nil
	}

	if export != "" {
		f, err := os.Create(export)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()
		if err := e.costs.ExportYAML(f); err != nil {
			return fmt.Errorf("exporting usage records: %w", err)
		}
		fmt.Printf("Exported usage records to %s\n", export)
		return nil
	}

	var since time.Time
	if sinceDays > 0 {
		since = time.Now().Add(-time.Duration(sinceDays) * 24 * time.Hour)
	}

	stats := e.costs.UsageStats(since)
	quota := e.costs.CheckQuota(e.cfg.Cost.DailyLimit, e.cfg.Cost.MonthlyLimit)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Usage ledger.Usage       `json:"usage"`
			Quota ledger.QuotaStatus `json:"quota"`
		}{stats, quota})
	}

	fmt.Fprintf(os.Stdout, "Total: $%.4f across %d request(s), %d tokens\n\n",
		stats.TotalCost, stats.TotalRequests, stats.TotalTokens)

	printBuckets("By provider", stats.ByProvider)
	printBuckets("By operation", stats.ByOperation)

	fmt.Fprintf(os.Stdout, "Daily:   $%.2f of $%.2f used, $%.2f remaining\n",
		quota.DailyUsed, quota.DailyLimit, quota.DailyRemaining)
	fmt.Fprintf(os.Stdout, "Monthly: $%.2f of $%.2f used, $%.2f remaining\n",
		quota.MonthlyUsed, quota.MonthlyLimit, quota.MonthlyRemaining)
	if !quota.WithinDaily || !quota.WithinMonthly {
		fmt.Fprintln(os.Stdout, "\nA spending limit is exhausted; model commands will refuse to run.")
	}
	return nil
}

func printBuckets(title string, buckets map[string]ledger.Bucket) {
	if len(buckets) == 0 {
		return
	}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(os.Stdout, "%s:\n", title)
	fmt.Fprintf(os.Stdout, "  %-14s  %10s  %10s  %8s\n", "", "Cost", "Tokens", "Requests")
	fmt.Fprintf(os.Stdout, "  %s\n", strings.Repeat("-", 48))
	for _, k := range keys {
		b := buckets[k]
		fmt.Fprintf(os.Stdout, "  %-14s  %10.4f  %10d  %8d\n", k, b.Cost, b.Tokens, b.Requests)
	}
	fmt.Fprintln(os.Stdout)
}

func init() {
	usageCmd.Flags().Int("days", 0, "limit the summary to the last N days (0 = all records)")
	usageCmd.Flags().Int("trim-days", 0, "remove records older than N days and exit")
	usageCmd.Flags().String("export", "", "write all records to this file as YAML")
	usageCmd.Flags().Bool("json", false, "output the summary as JSON")

	rootCmd.AddCommand(usageCmd)
}
