// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/pdiddy/medlit-engine/internal/httputil"
	"github.com/pdiddy/medlit-engine/internal/resilience"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

// anthropicAPIURL is the Claude Messages API endpoint. Package-level var
// for test substitution.
var anthropicAPIURL = "https://api.anthropic.com/v1/messages"

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-3-5-sonnet-20241022"

// AnthropicBackend calls the Claude Messages API.
type AnthropicBackend struct {
	APIKey string
	Model  string
	Client *http.Client
}

// NewAnthropicBackend builds a Claude backend with the default model.
func NewAnthropicBackend(apiKey string) *AnthropicBackend {
	return &AnthropicBackend{APIKey: apiKey, Model: DefaultAnthropicModel}
}

// anthropicRequest is the request body for the Claude Messages API.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

// anthropicMessage is a single message in the Claude API conversation.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the response body from the Claude Messages API.
type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Model   string             `json:"model"`
	Usage   anthropicUsage     `json:"usage"`
}

// anthropicContent is a content block in the Claude API response.
type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// anthropicUsage is the token accounting block in the Claude API response.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ModelInfo describes the Claude backend.
func (b *AnthropicBackend) ModelInfo() types.ModelInfo {
	return types.ModelInfo{
		Provider:    "Anthropic",
		Model:       b.Model,
		DisplayName: "Claude 3.5 Sonnet",
	}
}

// Generate runs one completion against the Claude Messages API.
func (b *AnthropicBackend) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	reqBody := anthropicRequest{
		Model:       b.Model,
		MaxTokens:   req.MaxTokens,
		System:      req.SystemPrompt,
		Temperature: req.Temperature,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return types.GenerateResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return types.GenerateResponse{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return types.GenerateResponse{}, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.GenerateResponse{}, fmt.Errorf("Claude API: %w",
			&httputil.StatusError{Code: resp.StatusCode, Body: string(body)})
	}

	var aResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&aResp); err != nil {
		return types.GenerateResponse{}, fmt.Errorf("decoding Claude response: %w", err)
	}

	var text string
	for _, block := range aResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return types.GenerateResponse{}, fmt.Errorf("Claude API returned empty content")
	}

	model := aResp.Model
	if model == "" {
		model = b.Model
	}
	return types.GenerateResponse{
		Content:          text,
		PromptTokens:     aResp.Usage.InputTokens,
		CompletionTokens: aResp.Usage.OutputTokens,
		TotalTokens:      aResp.Usage.InputTokens + aResp.Usage.OutputTokens,
		Model:            model,
	}, nil
}

// IsTransient reports whether a generation error is worth retrying:
// timeouts, rate limits, and upstream 5xx responses. Auth and request
// shape errors are permanent and fail fast.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, resilience.ErrRateLimited) {
		return true
	}
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
