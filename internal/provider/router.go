// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider routes text-generation requests to AI model backends.
// Each backend adapts one upstream API to a common request/response shape;
// the Router layers response caching, usage accounting, and circuit-breaker
// protected retries on top of them.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/medlit-engine/internal/cache"
	"github.com/pdiddy/medlit-engine/internal/ledger"
	"github.com/pdiddy/medlit-engine/internal/resilience"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

// defaultMaxTokens applies when a request leaves MaxTokens unset. It is
// filled in before cache keying so the explicit and implicit forms of the
// same request share an entry.
const defaultMaxTokens = 1024

// aiResponseTTL is how long generated responses stay cached.
const aiResponseTTL = 7 * 24 * time.Hour

// Backend generates text through one upstream model API.
type Backend interface {
	// Generate runs one completion. Transport and upstream errors are
	// returned as err; a returned response always reflects a completed
	// upstream call.
	Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error)
	// ModelInfo describes the backend's provider and model.
	ModelInfo() types.ModelInfo
}

// Router dispatches generation requests to named provider backends. Cache,
// ledger, and executor may individually be nil to disable caching,
// accounting, or resilience.
type Router struct {
	backends        map[string]Backend
	order           []string // registration order
	defaultProvider string
	store           *cache.Store
	costs           *ledger.Ledger
	exec            *resilience.Executor
	maxTokens       int
	temperature     float64
	fallback        bool
}

// NewRouter builds an empty Router. defaultProvider names the backend used
// when a request does not pick one; empty means the first registered
// backend.
func NewRouter(defaultProvider string, store *cache.Store, costs *ledger.Ledger, exec *resilience.Executor) *Router {
	return &Router{
		backends:        make(map[string]Backend),
		defaultProvider: strings.ToLower(defaultProvider),
		store:           store,
		costs:           costs,
		exec:            exec,
		maxTokens:       defaultMaxTokens,
	}
}

// SetGenerationDefaults overrides the values filled into requests that
// leave MaxTokens or Temperature unset. maxTokens <= 0 keeps the built-in
// default; temperature 0 leaves the field to the upstream's own default.
func (r *Router) SetGenerationDefaults(maxTokens int, temperature float64) {
	if maxTokens > 0 {
		r.maxTokens = maxTokens
	}
	r.temperature = temperature
}

// SetFallback enables routing requests that name no provider through the
// full provider chain: the default provider first, then every other
// registered provider in registration order until one succeeds.
func (r *Router) SetFallback(enabled bool) {
	r.fallback = enabled
}

// Register adds a backend under the given name. Names are case-insensitive
// and registering an existing name replaces the backend.
func (r *Router) Register(name string, b Backend) {
	name = strings.ToLower(name)
	if _, exists := r.backends[name]; !exists {
		r.order = append(r.order, name)
	}
	r.backends[name] = b
}

// SetDefault changes the provider used by requests that name none.
func (r *Router) SetDefault(name string) {
	r.defaultProvider = strings.ToLower(name)
}

// AvailableProviders lists registered provider names in registration order.
func (r *Router) AvailableProviders() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// ProviderInfo returns the model descriptions of all registered backends,
// in registration order.
func (r *Router) ProviderInfo() []types.ModelInfo {
	infos := make([]types.ModelInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.backends[name].ModelInfo())
	}
	return infos
}

// resolve picks the backend for a request. An empty provider falls back to
// the configured default, then to the first registered backend.
func (r *Router) resolve(provider string) (string, Backend, bool) {
	name := strings.ToLower(provider)
	if name == "" {
		name = r.defaultProvider
	}
	if name == "" && len(r.order) > 0 {
		name = r.order[0]
	}
	b, ok := r.backends[name]
	return name, b, ok
}

// errorResponse builds the structured failure shape: no content, the error
// message, and the rough prompt-token estimate that a caller can still
// report against the failed attempt.
func errorResponse(provider, model string, req types.GenerateRequest, err error) types.GenerateResponse {
	estimated := len(req.Prompt+req.SystemPrompt) / 4
	return types.GenerateResponse{
		Provider:     provider,
		Model:        model,
		PromptTokens: estimated,
		TotalTokens:  estimated,
		Error:        err.Error(),
	}
}

// Generate routes one request, consulting the response cache before the
// backend. Failures come back as a response with Error set rather than as
// a Go error, so a partial multi-provider run can carry on.
func (r *Router) Generate(ctx context.Context, req types.GenerateRequest) types.GenerateResponse {
	return r.GenerateForOperation(ctx, req, "generate")
}

// fillDefaults completes unset request fields from the configured defaults
// before cache keying, so the explicit and implicit forms of the same
// request share an entry.
func (r *Router) fillDefaults(req *types.GenerateRequest) {
	if req.MaxTokens == 0 {
		req.MaxTokens = r.maxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = r.temperature
	}
}

// cacheKeyParams is the full parameter tuple a cached response is keyed on.
func cacheKeyParams(name, model string, req types.GenerateRequest) map[string]any {
	return map[string]any{
		"prompt":        req.Prompt,
		"provider":      name,
		"model":         model,
		"system_prompt": req.SystemPrompt,
		"max_tokens":    req.MaxTokens,
		"temperature":   req.Temperature,
	}
}

// lookupCached returns the cached response for the key, marked cached and
// with no cost attributed to this call.
func (r *Router) lookupCached(params map[string]any) (types.GenerateResponse, bool) {
	if r.store == nil {
		return types.GenerateResponse{}, false
	}
	var cached types.GenerateResponse
	if !r.store.Get(cache.NamespaceAIResponses, params, &cached) {
		return types.GenerateResponse{}, false
	}
	cached.Cached = true
	cached.Cost = 0
	return cached, true
}

// record caches and bills one completed generation. Only completed
// generations get here: a failure shape slipping into the cache would
// replay the error on every later hit.
func (r *Router) record(name string, params map[string]any, resp *types.GenerateResponse, operation string) {
	resp.Provider = name
	resp.Cached = false
	if r.store != nil {
		r.store.Set(cache.NamespaceAIResponses, params, *resp, aiResponseTTL)
	}
	if r.costs != nil {
		resp.Cost = r.costs.RecordUsage(name, resp.Model, resp.PromptTokens, resp.CompletionTokens, operation)
	}
}

// GenerateForOperation is Generate with an operation label recorded in the
// usage ledger, so per-feature spend can be broken out later.
func (r *Router) GenerateForOperation(ctx context.Context, req types.GenerateRequest, operation string) types.GenerateResponse {
	if r.fallback && req.Provider == "" {
		return r.generateWithFallback(ctx, req, operation)
	}

	name, backend, ok := r.resolve(req.Provider)
	if !ok {
		available := strings.Join(r.AvailableProviders(), ", ")
		return errorResponse(name, "", req,
			fmt.Errorf("provider %q not available (configured: %s)", name, available))
	}
	info := backend.ModelInfo()

	r.fillDefaults(&req)
	cacheParams := cacheKeyParams(name, info.Model, req)

	if cached, ok := r.lookupCached(cacheParams); ok {
		return cached
	}

	var resp types.GenerateResponse
	call := func(ctx context.Context) error {
		var err error
		resp, err = backend.Generate(ctx, req)
		return err
	}

	var err error
	if r.exec != nil {
		err = r.exec.Execute(ctx, name, call, IsTransient)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return errorResponse(name, info.Model, req, err)
	}

	r.record(name, cacheParams, &resp, operation)
	return resp
}

// generateWithFallback routes one request through the provider chain: the
// resolved default first, then every other registered provider in
// registration order, each with the full retry budget, until one returns a
// completed generation. The response cache is consulted per provider.
func (r *Router) generateWithFallback(ctx context.Context, req types.GenerateRequest, operation string) types.GenerateResponse {
	first, _, ok := r.resolve(req.Provider)
	if !ok {
		available := strings.Join(r.AvailableProviders(), ", ")
		return errorResponse(first, "", req,
			fmt.Errorf("provider %q not available (configured: %s)", first, available))
	}
	names := []string{first}
	for _, name := range r.order {
		if name != first {
			names = append(names, name)
		}
	}

	r.fillDefaults(&req)

	var resp types.GenerateResponse
	try := func(ctx context.Context, name string) error {
		backend := r.backends[name]
		params := cacheKeyParams(name, backend.ModelInfo().Model, req)
		if cached, ok := r.lookupCached(params); ok {
			resp = cached
			return nil
		}
		got, err := backend.Generate(ctx, req)
		if err != nil {
			return err
		}
		r.record(name, params, &got, operation)
		resp = got
		return nil
	}

	var err error
	if r.exec != nil {
		err = r.exec.ExecuteWithFallback(ctx, names, try, IsTransient)
	} else {
		for _, name := range names {
			if err = try(ctx, name); err == nil {
				break
			}
		}
	}
	if err != nil {
		return errorResponse(first, "", req, err)
	}
	return resp
}

// Compare sends the same request to every registered provider and returns
// the responses keyed by provider name. Individual failures appear as
// error responses under their provider's key.
func (r *Router) Compare(ctx context.Context, req types.GenerateRequest) map[string]types.GenerateResponse {
	results := make(map[string]types.GenerateResponse, len(r.order))
	for _, name := range r.order {
		perProvider := req
		perProvider.Provider = name
		results[name] = r.GenerateForOperation(ctx, perProvider, "compare")
	}
	return results
}

// SortedProviderKeys returns the keys of a Compare result in a stable
// order for display.
func SortedProviderKeys(results map[string]types.GenerateResponse) []string {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
