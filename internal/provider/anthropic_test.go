// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/medlit-engine/internal/httputil"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

func TestAnthropicGenerate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ak_test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-3-5-sonnet-20241022", body.Model)
		assert.Equal(t, 1024, body.MaxTokens)
		assert.Equal(t, "You are a test.", body.System)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		assert.Equal(t, "hello", body.Messages[0].Content)

		w.Write([]byte(`{
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "hi there"}],
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`))
	}))
	defer ts.Close()

	old := anthropicAPIURL
	anthropicAPIURL = ts.URL
	defer func() { anthropicAPIURL = old }()

	b := NewAnthropicBackend("ak_test")
	b.Client = ts.Client()

	resp, err := b.Generate(context.Background(), types.GenerateRequest{
		Prompt:       "hello",
		SystemPrompt: "You are a test.",
		MaxTokens:    1024,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 3, resp.CompletionTokens)
	assert.Equal(t, 15, resp.TotalTokens)
	assert.Equal(t, "claude-3-5-sonnet-20241022", resp.Model)
}

func TestAnthropicGenerateConcatenatesTextBlocks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "part one "},
				{"type": "tool_use", "text": "ignored"},
				{"type": "text", "text": "part two"}
			],
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`))
	}))
	defer ts.Close()

	old := anthropicAPIURL
	anthropicAPIURL = ts.URL
	defer func() { anthropicAPIURL = old }()

	b := NewAnthropicBackend("ak")
	b.Client = ts.Client()

	resp, err := b.Generate(context.Background(), types.GenerateRequest{Prompt: "p", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "part one part two", resp.Content)
	assert.Equal(t, DefaultAnthropicModel, resp.Model, "missing model falls back to the configured one")
}

func TestAnthropicGenerateUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "overloaded"}}`))
	}))
	defer ts.Close()

	old := anthropicAPIURL
	anthropicAPIURL = ts.URL
	defer func() { anthropicAPIURL = old }()

	b := NewAnthropicBackend("ak")
	b.Client = ts.Client()

	_, err := b.Generate(context.Background(), types.GenerateRequest{Prompt: "p", MaxTokens: 10})
	require.Error(t, err)

	var statusErr *httputil.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.True(t, IsTransient(err))
}

func TestAnthropicGenerateEmptyContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"content": [], "usage": {"input_tokens": 1, "output_tokens": 0}}`))
	}))
	defer ts.Close()

	old := anthropicAPIURL
	anthropicAPIURL = ts.URL
	defer func() { anthropicAPIURL = old }()

	b := NewAnthropicBackend("ak")
	b.Client = ts.Client()

	_, err := b.Generate(context.Background(), types.GenerateRequest{Prompt: "p", MaxTokens: 10})
	require.Error(t, err)
	assert.False(t, IsTransient(err), "an empty completion is not retryable")
}

func TestModelInfo(t *testing.T) {
	assert.Equal(t, "claude-3-5-sonnet-20241022", NewAnthropicBackend("k").ModelInfo().Model)
	assert.Equal(t, "moonshot-v1-8k", NewKimiBackend("k").ModelInfo().Model)
	assert.Equal(t, "qwen-turbo", NewQwenBackend("k").ModelInfo().Model)
}
