// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/pdiddy/medlit-engine/pkg/types"
)

// Upstream endpoints for the OpenAI-compatible providers. Package-level
// vars for test substitution.
var (
	kimiAPIBase = "https://api.moonshot.cn/v1"
	qwenAPIBase = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// Default models for the OpenAI-compatible providers.
const (
	DefaultKimiModel = "moonshot-v1-8k"
	DefaultQwenModel = "qwen-turbo"
)

// OpenAICompatBackend calls any upstream that speaks the OpenAI chat
// completions protocol. Moonshot (Kimi) and Alibaba DashScope (Qwen) both
// expose compatible endpoints, so one adapter covers them.
type OpenAICompatBackend struct {
	client      openai.Client
	provider    string
	model       string
	displayName string
}

// NewOpenAICompatBackend builds a backend against an arbitrary
// OpenAI-compatible endpoint.
func NewOpenAICompatBackend(apiKey, baseURL, provider, model, displayName string) *OpenAICompatBackend {
	return &OpenAICompatBackend{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
		),
		provider:    provider,
		model:       model,
		displayName: displayName,
	}
}

// NewKimiBackend builds a backend for Moonshot's Kimi API.
func NewKimiBackend(apiKey string) *OpenAICompatBackend {
	return NewOpenAICompatBackend(apiKey, kimiAPIBase, "Kimi", DefaultKimiModel, "Kimi (Moonshot)")
}

// NewQwenBackend builds a backend for Alibaba's DashScope compatible-mode
// Qwen API.
func NewQwenBackend(apiKey string) *OpenAICompatBackend {
	return NewOpenAICompatBackend(apiKey, qwenAPIBase, "Qwen", DefaultQwenModel, "Qwen (DashScope)")
}

// ModelInfo describes the backend's upstream provider and model.
func (b *OpenAICompatBackend) ModelInfo() types.ModelInfo {
	return types.ModelInfo{
		Provider:    b.provider,
		Model:       b.model,
		DisplayName: b.displayName,
	}
}

// Generate runs one chat completion against the upstream endpoint.
func (b *OpenAICompatBackend) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    b.model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return types.GenerateResponse{}, fmt.Errorf("calling %s API: %w", b.provider, err)
	}
	if len(completion.Choices) == 0 {
		return types.GenerateResponse{}, fmt.Errorf("%s API returned no choices", b.provider)
	}

	model := completion.Model
	if model == "" {
		model = b.model
	}
	return types.GenerateResponse{
		Content:          completion.Choices[0].Message.Content,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
		Model:            model,
	}, nil
}
