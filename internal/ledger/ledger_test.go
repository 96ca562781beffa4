// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.yaml.in/yaml/v3"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "usage_stats.json"), nil, nil)
	require.NoError(t, err)
	return l
}

func TestEstimateCost(t *testing.T) {
	l := openTestLedger(t)

	tests := []struct {
		name             string
		provider         string
		model            string
		promptTokens     int
		completionTokens int
		want             float64
	}{
		{
			name:     "claude sonnet",
			provider: "claude", model: "claude-3-5-sonnet-20241022",
			promptTokens: 1_000_000, completionTokens: 1_000_000,
			want: 18.00,
		},
		{
			name:     "kimi",
			provider: "kimi", model: "moonshot-v1-8k",
			promptTokens: 500_000, completionTokens: 500_000,
			want: 0.20,
		},
		{
			name:     "qwen",
			provider: "qwen", model: "qwen-turbo",
			promptTokens: 1_000_000, completionTokens: 0,
			want: 0.60,
		},
		{
			name:     "provider lookup is case-insensitive",
			provider: "Claude", model: "claude-3-5-sonnet-20241022",
			promptTokens: 1_000_000, completionTokens: 0,
			want: 3.00,
		},
		{
			name:     "unknown model falls back to first listed",
			provider: "claude", model: "claude-experimental",
			promptTokens: 1_000_000, completionTokens: 0,
			want: 3.00,
		},
		{
			name:     "unknown provider costs zero",
			provider: "llama", model: "llama-70b",
			promptTokens: 1_000_000, completionTokens: 1_000_000,
			want: 0,
		},
		{
			name:     "zero tokens cost zero",
			provider: "claude", model: "claude-3-5-sonnet-20241022",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.EstimateCost(tt.provider, tt.model, tt.promptTokens, tt.completionTokens)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRecordUsagePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage_stats.json")
	l, err := Open(path, nil, nil)
	require.NoError(t, err)

	cost := l.RecordUsage("claude", "claude-3-5-sonnet-20241022", 1000, 500, "summarize")
	assert.InDelta(t, 0.0105, cost, 1e-9)

	// A fresh Open sees the record.
	l2, err := Open(path, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, cost, l2.TotalCost("", time.Time{}), 1e-9)
}

func TestCorruptLedgerStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage_stats.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var warnings bytes.Buffer
	l, err := Open(path, nil, &warnings)
	require.NoError(t, err)
	assert.Zero(t, l.TotalCost("", time.Time{}))
	assert.Contains(t, warnings.String(), "corrupt")
}

func TestConcurrentRecordUsage(t *testing.T) {
	l := openTestLedger(t)

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				l.RecordUsage("kimi", "moonshot-v1-8k", 1000, 1000, "generate")
			}
		}()
	}
	wg.Wait()

	stats := l.UsageStats(time.Time{})
	assert.Equal(t, workers*perWorker, stats.TotalRequests)
	assert.Equal(t, workers*perWorker*2000, stats.TotalTokens)
}

func TestUsageStatsBreakdown(t *testing.T) {
	l := openTestLedger(t)

	l.RecordUsage("claude", "claude-3-5-sonnet-20241022", 1000, 1000, "summarize")
	l.RecordUsage("claude", "claude-3-5-sonnet-20241022", 2000, 0, "qa")
	l.RecordUsage("qwen", "qwen-turbo", 500, 500, "summarize")

	stats := l.UsageStats(time.Time{})
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 5000, stats.TotalTokens)

	assert.Equal(t, 2, stats.ByProvider["claude"].Requests)
	assert.Equal(t, 1, stats.ByProvider["qwen"].Requests)
	assert.Equal(t, 2, stats.ByOperation["summarize"].Requests)
	assert.Equal(t, 1, stats.ByOperation["qa"].Requests)
}

func TestCheckQuotaRollingWindows(t *testing.T) {
	l := openTestLedger(t)

	current := time.Now()
	l.now = func() time.Time { return current }

	// One expensive call now, one two days ago.
	l.RecordUsage("claude", "claude-3-5-sonnet-20241022", 1_000_000, 0, "generate") // $3.00
	current = current.Add(-48 * time.Hour)
	l.RecordUsage("claude", "claude-3-5-sonnet-20241022", 1_000_000, 0, "generate") // $3.00, backdated
	current = current.Add(48 * time.Hour)

	status := l.CheckQuota(5.00, 100.00)
	assert.True(t, status.WithinDaily, "only the recent call counts against the daily window")
	assert.InDelta(t, 3.00, status.DailyUsed, 1e-9)
	assert.InDelta(t, 6.00, status.MonthlyUsed, 1e-9)
	assert.True(t, status.WithinMonthly)
	assert.InDelta(t, 2.00, status.DailyRemaining, 1e-9)

	exceeded := l.CheckQuota(2.00, 100.00)
	assert.False(t, exceeded.WithinDaily)
	assert.Zero(t, exceeded.DailyRemaining)
}

func TestTrimOlderThan(t *testing.T) {
	l := openTestLedger(t)

	current := time.Now()
	l.now = func() time.Time { return current }

	current = current.Add(-100 * 24 * time.Hour)
	l.RecordUsage("claude", "claude-3-5-sonnet-20241022", 100, 0, "generate")
	current = current.Add(100 * 24 * time.Hour)
	l.RecordUsage("claude", "claude-3-5-sonnet-20241022", 100, 0, "generate")

	removed := l.TrimOlderThan(90 * 24 * time.Hour)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.UsageStats(time.Time{}).TotalRequests)

	assert.Zero(t, l.TrimOlderThan(90*24*time.Hour), "second trim removes nothing")
}

func TestExportYAML(t *testing.T) {
	l := openTestLedger(t)
	l.RecordUsage("qwen", "qwen-turbo", 100, 50, "summarize")

	var buf bytes.Buffer
	require.NoError(t, l.ExportYAML(&buf))

	var records []UsageRecord
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "qwen", records[0].Provider)
	assert.Equal(t, 150, records[0].TotalTokens)
	assert.True(t, strings.Contains(buf.String(), "qwen-turbo"))
}
