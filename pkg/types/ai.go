// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// GenerateRequest holds the parameters for one model generation call.
// The full tuple is the cache identity for the call.
type GenerateRequest struct {
	// Prompt is the user prompt.
	Prompt string `json:"prompt" yaml:"prompt"`

	// Provider selects the model backend by its registered name
	// (e.g. "claude", "kimi", "qwen"). Empty selects the default.
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`

	// SystemPrompt is an optional system instruction.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`

	// MaxTokens bounds the completion length (default 1024).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// GenerateResponse is the canonical generate-response shape shared by all
// model adapters. Error is set instead of raising so that batch operations
// over several providers can proceed past one failure.
type GenerateResponse struct {
	// Content is the generated text, or a human-readable failure message
	// when Error is set.
	Content string `json:"content" yaml:"content"`

	// PromptTokens and CompletionTokens are the adapter-reported token
	// counts. On failure PromptTokens holds a length-based estimate.
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int `json:"total_tokens" yaml:"total_tokens"`

	// Model is the concrete model identifier that served the call.
	Model string `json:"model" yaml:"model"`

	// Provider is the registered backend name that served the call.
	Provider string `json:"provider" yaml:"provider"`

	// Cached reports that the response was served from the cache; cached
	// responses carry no token counts and record no cost.
	Cached bool `json:"cached,omitempty" yaml:"cached,omitempty"`

	// Cost is the estimated cost in USD recorded for this call.
	Cost float64 `json:"cost,omitempty" yaml:"cost,omitempty"`

	// Error describes why the call failed, empty on success.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the response carries an error.
func (r GenerateResponse) Failed() bool { return r.Error != "" }

// ModelInfo describes a model backend.
type ModelInfo struct {
	// Provider is the vendor name (e.g. "Anthropic", "Moonshot AI").
	Provider string `json:"provider" yaml:"provider"`

	// Model is the concrete model identifier.
	Model string `json:"model" yaml:"model"`

	// DisplayName is a human-readable model name.
	DisplayName string `json:"display_name" yaml:"display_name"`
}
