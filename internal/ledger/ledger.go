// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records model API usage and enforces spending visibility.
// The ledger is append-only: records are never mutated, and only the
// explicit retention trim removes old ones. Every append is persisted
// synchronously before the computed cost is returned, so a crash after
// return never loses an already-reported cost.
package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"
)

// UsageRecord is one API usage event.
type UsageRecord struct {
	Timestamp        time.Time `json:"timestamp" yaml:"timestamp"`
	Provider         string    `json:"provider" yaml:"provider"`
	Model            string    `json:"model" yaml:"model"`
	PromptTokens     int       `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens" yaml:"total_tokens"`
	EstimatedCost    float64   `json:"estimated_cost" yaml:"estimated_cost"`
	Operation        string    `json:"operation" yaml:"operation"`
}

// ModelPrice is the price of one model in USD per million tokens.
type ModelPrice struct {
	Model            string  `json:"model" yaml:"model"`
	InputPerMillion  float64 `json:"input_per_million" yaml:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million" yaml:"output_per_million"`
}

// PriceTable maps a provider to its models in listed order. An unknown
// model under a known provider falls back to the provider's first listed
// model price, which is why the models are a slice rather than a map.
type PriceTable map[string][]ModelPrice

// DefaultPrices holds per-million-token pricing for the supported providers.
func DefaultPrices() PriceTable {
	return PriceTable{
		"claude": {
			{Model: "claude-3-5-sonnet-20241022", InputPerMillion: 3.00, OutputPerMillion: 15.00},
		},
		"kimi": {
			{Model: "moonshot-v1-8k", InputPerMillion: 0.20, OutputPerMillion: 0.20},
		},
		"qwen": {
			{Model: "qwen-turbo", InputPerMillion: 0.60, OutputPerMillion: 0.60},
		},
	}
}

// Bucket aggregates usage for one provider or operation.
type Bucket struct {
	Cost     float64 `json:"cost" yaml:"cost"`
	Tokens   int     `json:"tokens" yaml:"tokens"`
	Requests int     `json:"requests" yaml:"requests"`
}

// Usage summarizes recorded usage.
type Usage struct {
	TotalCost     float64           `json:"total_cost" yaml:"total_cost"`
	TotalTokens   int               `json:"total_tokens" yaml:"total_tokens"`
	TotalRequests int               `json:"total_requests" yaml:"total_requests"`
	ByProvider    map[string]Bucket `json:"by_provider" yaml:"by_provider"`
	ByOperation   map[string]Bucket `json:"by_operation" yaml:"by_operation"`
}

// QuotaStatus reports spending against rolling trailing windows: the last
// 24 hours for daily and the last 30 days for monthly. The windows are
// measured backward from now, not aligned to calendar boundaries.
type QuotaStatus struct {
	WithinDaily      bool    `json:"within_daily" yaml:"within_daily"`
	WithinMonthly    bool    `json:"within_monthly" yaml:"within_monthly"`
	DailyUsed        float64 `json:"daily_used" yaml:"daily_used"`
	DailyLimit       float64 `json:"daily_limit" yaml:"daily_limit"`
	DailyRemaining   float64 `json:"daily_remaining" yaml:"daily_remaining"`
	MonthlyUsed      float64 `json:"monthly_used" yaml:"monthly_used"`
	MonthlyLimit     float64 `json:"monthly_limit" yaml:"monthly_limit"`
	MonthlyRemaining float64 `json:"monthly_remaining" yaml:"monthly_remaining"`
}

// Ledger tracks API usage costs with durable storage. A single mutex
// serializes the load-append-rewrite sequence; call volumes are low enough
// that a log-structured append format is not warranted.
type Ledger struct {
	path   string
	prices PriceTable
	warnw  io.Writer

	mu      sync.Mutex
	records []UsageRecord

	// now is the clock, overridable in tests.
	now func() time.Time
}

// Open loads the ledger at path, creating parent directories as needed.
// An unreadable or corrupt file starts the ledger empty with a warning;
// usage history is not worth refusing to start over.
func Open(path string, prices PriceTable, warnw io.Writer) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	if prices == nil {
		prices = DefaultPrices()
	}
	if warnw == nil {
		warnw = io.Discard
	}

	l := &Ledger{
		path:   path,
		prices: prices,
		warnw:  warnw,
		now:    time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(warnw, "warning: could not read usage ledger %s: %v\n", path, err)
		}
		return l, nil
	}
	if err := json.Unmarshal(data, &l.records); err != nil {
		fmt.Fprintf(warnw, "warning: corrupt usage ledger %s, starting empty: %v\n", path, err)
		l.records = nil
	}
	return l, nil
}

// EstimateCost computes the cost for the given usage. Unknown providers
// cost 0; an unknown model under a known provider uses the provider's
// first listed model price.
func (l *Ledger) EstimateCost(provider, model string, promptTokens, completionTokens int) float64 {
	models, ok := l.prices[strings.ToLower(provider)]
	if !ok || len(models) == 0 {
		return 0
	}

	price := models[0]
	for _, m := range models {
		if m.Model == model {
			price = m
			break
		}
	}

	input := float64(promptTokens) / 1_000_000 * price.InputPerMillion
	output := float64(completionTokens) / 1_000_000 * price.OutputPerMillion
	return input + output
}

// RecordUsage appends a usage record and persists it before returning the
// computed cost. A persistence failure is reported on the warning writer
// but the cost is still returned for display; the record is kept in memory
// so a later successful append re-persists it.
func (l *Ledger) RecordUsage(provider, model string, promptTokens, completionTokens int, operation string) float64 {
	cost := l.EstimateCost(provider, model, promptTokens, completionTokens)

	rec := UsageRecord{
		Timestamp:        l.now(),
		Provider:         provider,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		EstimatedCost:    cost,
		Operation:        operation,
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.save()
	l.mu.Unlock()

	return cost
}

// save rewrites the full record list. Caller holds the mutex.
func (l *Ledger) save() {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		fmt.Fprintf(l.warnw, "warning: could not encode usage ledger: %v\n", err)
		return
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		fmt.Fprintf(l.warnw, "warning: could not persist usage ledger: %v\n", err)
	}
}

// TotalCost sums recorded costs, filtered by provider (empty for all) and
// by records at or after since (zero time for all).
func (l *Ledger) TotalCost(provider string, since time.Time) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0.0
	for _, rec := range l.records {
		if provider != "" && rec.Provider != provider {
			continue
		}
		if !since.IsZero() && rec.Timestamp.Before(since) {
			continue
		}
		total += rec.EstimatedCost
	}
	return total
}

// UsageStats aggregates records at or after since (zero time for all).
func (l *Ledger) UsageStats(since time.Time) Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	u := Usage{
		ByProvider:  make(map[string]Bucket),
		ByOperation: make(map[string]Bucket),
	}
	for _, rec := range l.records {
		if !since.IsZero() && rec.Timestamp.Before(since) {
			continue
		}
		u.TotalCost += rec.EstimatedCost
		u.TotalTokens += rec.TotalTokens
		u.TotalRequests++

		p := u.ByProvider[rec.Provider]
		p.Cost += rec.EstimatedCost
		p.Tokens += rec.TotalTokens
		p.Requests++
		u.ByProvider[rec.Provider] = p

		o := u.ByOperation[rec.Operation]
		o.Cost += rec.EstimatedCost
		o.Tokens += rec.TotalTokens
		o.Requests++
		u.ByOperation[rec.Operation] = o
	}
	return u
}

// CheckQuota is a pure read against rolling trailing windows. It never
// blocks calls itself; enforcement is the caller's responsibility.
func (l *Ledger) CheckQuota(dailyLimit, monthlyLimit float64) QuotaStatus {
	now := l.now()
	daily := l.TotalCost("", now.Add(-24*time.Hour))
	monthly := l.TotalCost("", now.Add(-30*24*time.Hour))

	return QuotaStatus{
		WithinDaily:      daily < dailyLimit,
		WithinMonthly:    monthly < monthlyLimit,
		DailyUsed:        daily,
		DailyLimit:       dailyLimit,
		DailyRemaining:   max(0, dailyLimit-daily),
		MonthlyUsed:      monthly,
		MonthlyLimit:     monthlyLimit,
		MonthlyRemaining: max(0, monthlyLimit-monthly),
	}
}

// TrimOlderThan drops records older than the horizon and persists the
// remainder. Returns the number of records removed.
func (l *Ledger) TrimOlderThan(horizon time.Duration) int {
	cutoff := l.now().Add(-horizon)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.records[:0]
	removed := 0
	for _, rec := range l.records {
		if rec.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	l.records = kept
	if removed > 0 {
		l.save()
	}
	return removed
}

// ExportYAML writes the full record list as YAML.
func (l *Ledger) ExportYAML(w io.Writer) error {
	l.mu.Lock()
	records := make([]UsageRecord, len(l.records))
	copy(records, l.records)
	l.mu.Unlock()

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(records)
}
