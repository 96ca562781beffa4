// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "medlit-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the literature search sources.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResultsPerSource is the default per-source result limit (default 10).
	MaxResultsPerSource int `json:"max_results_per_source" yaml:"max_results_per_source"`

	// SourceTimeout bounds each individual source call during fan-out.
	SourceTimeout time.Duration `json:"source_timeout" yaml:"source_timeout"`

	// EnablePubMed controls whether the PubMed backend is used.
	EnablePubMed bool `json:"enable_pubmed" yaml:"enable_pubmed"`

	// EnableEuropePMC controls whether the Europe PMC backend is used.
	EnableEuropePMC bool `json:"enable_europe_pmc" yaml:"enable_europe_pmc"`

	// EnableSemanticScholar controls whether the Semantic Scholar backend is used.
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar"`

	// PubMedEmail is sent to the E-utilities API per NCBI usage policy.
	PubMedEmail string `json:"pubmed_email,omitempty" yaml:"pubmed_email,omitempty"`

	// NCBIAPIKey raises the E-utilities rate limit when set.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// EuropePMCEmail is sent with Europe PMC requests when set.
	EuropePMCEmail string `json:"europe_pmc_email,omitempty" yaml:"europe_pmc_email,omitempty"`
}

// CacheConfig holds settings for the cache store.
type CacheConfig struct {
	// Enabled switches read-through caching on (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the directory holding the cache database (default "./cache").
	Dir string `json:"dir" yaml:"dir"`

	// ExpiryDays is the entry time-to-live in days (default 7).
	ExpiryDays int `json:"expiry_days" yaml:"expiry_days"`

	// SizeLimitMB is the per-namespace byte ceiling in megabytes (default 500).
	SizeLimitMB int64 `json:"size_limit_mb" yaml:"size_limit_mb"`
}

// CostConfig holds settings for usage cost tracking.
type CostConfig struct {
	// Enabled switches cost recording on (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`

	// DailyLimit is the trailing-24h spending limit in USD.
	DailyLimit float64 `json:"daily_limit" yaml:"daily_limit"`

	// MonthlyLimit is the trailing-30-day spending limit in USD.
	MonthlyLimit float64 `json:"monthly_limit" yaml:"monthly_limit"`

	// StoragePath is the usage ledger file (default "./cache/usage_stats.json").
	StoragePath string `json:"storage_path" yaml:"storage_path"`
}

// RetryConfig holds settings for the retry wrapper.
type RetryConfig struct {
	// MaxRetries is the attempt budget per upstream (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BaseDelay is the backoff delay before the second attempt (default 1s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// MaxDelay caps the backoff delay (default 60s).
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
}

// BreakerConfig holds settings for the per-upstream circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit (default 5).
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// RecoveryTimeout is the cooldown before a trial call is allowed
	// (default 60s).
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`
}

// AIConfig holds settings for the model provider router.
type AIConfig struct {
	// DefaultProvider is tried when a call names no provider (default "claude").
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`

	// AnthropicAPIKey, KimiAPIKey and QwenAPIKey enable the respective
	// model backends when set.
	AnthropicAPIKey string `json:"anthropic_api_key,omitempty" yaml:"anthropic_api_key,omitempty"`
	KimiAPIKey      string `json:"kimi_api_key,omitempty" yaml:"kimi_api_key,omitempty"`
	QwenAPIKey      string `json:"qwen_api_key,omitempty" yaml:"qwen_api_key,omitempty"`

	// MaxTokens is the default completion budget (default 1024).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is the default sampling temperature (default 0.7).
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// Fallback routes calls that name no provider through every other
	// registered provider when the default fails (default false).
	Fallback bool `json:"fallback" yaml:"fallback"`
}

// AppConfig groups all component configurations.
type AppConfig struct {
	Search  SearchConfig  `json:"search" yaml:"search"`
	AI      AIConfig      `json:"ai" yaml:"ai"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Cost    CostConfig    `json:"cost" yaml:"cost"`
	Retry   RetryConfig   `json:"retry" yaml:"retry"`
	Breaker BreakerConfig `json:"breaker" yaml:"breaker"`
}
