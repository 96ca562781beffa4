// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/medlit-engine/internal/aggregate"
	"github.com/pdiddy/medlit-engine/internal/cache"
	"github.com/pdiddy/medlit-engine/internal/ledger"
	"github.com/pdiddy/medlit-engine/internal/provider"
	"github.com/pdiddy/medlit-engine/internal/resilience"
	"github.com/pdiddy/medlit-engine/internal/source"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

// setConfigDefaults registers the built-in defaults with viper before the
// config file is read.
func setConfigDefaults() {
	viper.SetDefault("search.timeout", "30s")
	viper.SetDefault("search.user_agent", "medlit-engine/"+version)
	viper.SetDefault("search.max_results_per_source", 10)
	viper.SetDefault("search.source_timeout", "30s")
	viper.SetDefault("search.enable_pubmed", true)
	viper.SetDefault("search.enable_europe_pmc", true)
	viper.SetDefault("search.enable_semantic_scholar", true)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.dir", "./cache")
	viper.SetDefault("cache.expiry_days", 7)
	viper.SetDefault("cache.size_limit_mb", 500)

	viper.SetDefault("cost.enabled", true)
	viper.SetDefault("cost.daily_limit", 10.0)
	viper.SetDefault("cost.monthly_limit", 100.0)
	viper.SetDefault("cost.storage_path", "./cache/usage_stats.json")

	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.base_delay", "1s")
	viper.SetDefault("retry.max_delay", "60s")

	viper.SetDefault("breaker.failure_threshold", 5)
	viper.SetDefault("breaker.recovery_timeout", "60s")

	viper.SetDefault("ai.default_provider", "claude")
	viper.SetDefault("ai.max_tokens", 1024)
	viper.SetDefault("ai.temperature", 0.7)
	viper.SetDefault("ai.fallback", false)
}

// loadConfig builds the application config from viper settings and the
// loaded secrets. Secrets fill any credential the config file left empty.
func loadConfig() types.AppConfig {
	cfg := types.AppConfig{
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("search.timeout"),
				UserAgent: viper.GetString("search.user_agent"),
			},
			MaxResultsPerSource:   viper.GetInt("search.max_results_per_source"),
			SourceTimeout:         viper.GetDuration("search.source_timeout"),
			EnablePubMed:          viper.GetBool("search.enable_pubmed"),
			EnableEuropePMC:       viper.GetBool("search.enable_europe_pmc"),
			EnableSemanticScholar: viper.GetBool("search.enable_semantic_scholar"),
			PubMedEmail:           viper.GetString("search.pubmed_email"),
			NCBIAPIKey:            secretDefault("ncbi-api-key", viper.GetString("search.ncbi_api_key")),
			SemanticScholarAPIKey: secretDefault("semantic-scholar-api-key", viper.GetString("search.semantic_scholar_api_key")),
			EuropePMCEmail:        secretDefault("europepmc-email", viper.GetString("search.europe_pmc_email")),
		},
		AI: types.AIConfig{
			DefaultProvider: viper.GetString("ai.default_provider"),
			AnthropicAPIKey: secretDefault("anthropic-api-key", viper.GetString("ai.anthropic_api_key")),
			KimiAPIKey:      secretDefault("kimi-api-key", viper.GetString("ai.kimi_api_key")),
			QwenAPIKey:      secretDefault("qwen-api-key", viper.GetString("ai.qwen_api_key")),
			MaxTokens:       viper.GetInt("ai.max_tokens"),
			Temperature:     viper.GetFloat64("ai.temperature"),
			Fallback:        viper.GetBool("ai.fallback"),
		},
		Cache: types.CacheConfig{
			Enabled:     viper.GetBool("cache.enabled"),
			Dir:         viper.GetString("cache.dir"),
			ExpiryDays:  viper.GetInt("cache.expiry_days"),
			SizeLimitMB: viper.GetInt64("cache.size_limit_mb"),
		},
		Cost: types.CostConfig{
			Enabled:      viper.GetBool("cost.enabled"),
			DailyLimit:   viper.GetFloat64("cost.daily_limit"),
			MonthlyLimit: viper.GetFloat64("cost.monthly_limit"),
			StoragePath:  viper.GetString("cost.storage_path"),
		},
		Retry: types.RetryConfig{
			MaxRetries: viper.GetInt("retry.max_retries"),
			BaseDelay:  viper.GetDuration("retry.base_delay"),
			MaxDelay:   viper.GetDuration("retry.max_delay"),
		},
		Breaker: types.BreakerConfig{
			FailureThreshold: viper.GetInt("breaker.failure_threshold"),
			RecoveryTimeout:  viper.GetDuration("breaker.recovery_timeout"),
		},
	}
	return cfg
}

// engine bundles the wired application components behind the commands.
type engine struct {
	cfg      types.AppConfig
	store    *cache.Store // nil when caching is disabled
	costs    *ledger.Ledger
	exec     *resilience.Executor
	searcher *aggregate.Searcher
	router   *provider.Router
}

// newEngine wires the full component stack from the loaded config.
func newEngine() (*engine, error) {
	cfg := loadConfig()

	e := &engine{cfg: cfg}

	if cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.ExpiryDays) * 24 * time.Hour
		store, err := cache.Open(cfg.Cache.Dir, ttl, cfg.Cache.SizeLimitMB*1024*1024)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		e.store = store
	}

	if cfg.Cost.Enabled {
		costs, err := ledger.Open(cfg.Cost.StoragePath, ledger.DefaultPrices(), os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("opening usage ledger: %w", err)
		}
		e.costs = costs
	}

	e.exec = resilience.NewExecutor(resilience.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
	}, cfg.Breaker.FailureThreshold, cfg.Breaker.RecoveryTimeout)

	httpClient := &http.Client{Timeout: cfg.Search.Timeout}

	var backends []source.Backend
	if cfg.Search.EnablePubMed {
		backends = append(backends, &source.PubMedBackend{
			Client:    httpClient,
			Email:     cfg.Search.PubMedEmail,
			APIKey:    cfg.Search.NCBIAPIKey,
			UserAgent: cfg.Search.UserAgent,
		})
	}
	if cfg.Search.EnableEuropePMC {
		backends = append(backends, &source.EuropePMCBackend{
			Client:    httpClient,
			Email:     cfg.Search.EuropePMCEmail,
			UserAgent: cfg.Search.UserAgent,
		})
	}
	if cfg.Search.EnableSemanticScholar {
		backends = append(backends, &source.SemanticScholarBackend{
			Client:    httpClient,
			APIKey:    cfg.Search.SemanticScholarAPIKey,
			UserAgent: cfg.Search.UserAgent,
		})
	}
	e.searcher = aggregate.NewSearcher(backends, e.store, e.exec, cfg.Search.SourceTimeout, os.Stderr)

	e.router = provider.NewRouter(cfg.AI.DefaultProvider, e.store, e.costs, e.exec)
	e.router.SetGenerationDefaults(cfg.AI.MaxTokens, cfg.AI.Temperature)
	e.router.SetFallback(cfg.AI.Fallback)
	if cfg.AI.AnthropicAPIKey != "" {
		e.router.Register("claude", provider.NewAnthropicBackend(cfg.AI.AnthropicAPIKey))
	}
	if cfg.AI.KimiAPIKey != "" {
		e.router.Register("kimi", provider.NewKimiBackend(cfg.AI.KimiAPIKey))
	}
	if cfg.AI.QwenAPIKey != "" {
		e.router.Register("qwen", provider.NewQwenBackend(cfg.AI.QwenAPIKey))
	}

	return e, nil
}

// close releases the engine's resources.
func (e *engine) close() {
	if e.store != nil {
		e.store.Close()
	}
}

// checkQuota stops a model-spending command before it starts when a
// spending limit is already exhausted.
func (e *engine) checkQuota() error {
	if e.costs == nil {
		return nil
	}
	status := e.costs.CheckQuota(e.cfg.Cost.DailyLimit, e.cfg.Cost.MonthlyLimit)
	if !status.WithinDaily {
		return fmt.Errorf("daily spending limit reached: $%.2f of $%.2f used in the last 24h", status.DailyUsed, status.DailyLimit)
	}
	if !status.WithinMonthly {
		return fmt.Errorf("monthly spending limit reached: $%.2f of $%.2f used in the last 30 days", status.MonthlyUsed, status.MonthlyLimit)
	}
	return nil
}

// requireProviders fails fast when no model backend is configured, with a
// hint about where the keys go.
func (e *engine) requireProviders() error {
	if len(e.router.AvailableProviders()) == 0 {
		return fmt.Errorf("no AI providers configured: put an API key in .secrets/anthropic-api-key, .secrets/kimi-api-key, or .secrets/qwen-api-key")
	}
	return nil
}
