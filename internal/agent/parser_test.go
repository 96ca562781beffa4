// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     *ToolCall
	}{
		{
			name:     "well-formed call",
			response: `<tool>search_literature</tool><parameters>{"query": "sepsis", "max_results": 5}</parameters>`,
			want: &ToolCall{
				Name:   "search_literature",
				Params: map[string]any{"query": "sepsis", "max_results": float64(5)},
			},
		},
		{
			name:     "surrounding prose is ignored",
			response: "I should search first.\n<tool>search_literature</tool><parameters>{\"query\": \"flu\"}</parameters>\nLet me look.",
			want: &ToolCall{
				Name:   "search_literature",
				Params: map[string]any{"query": "flu"},
			},
		},
		{
			name:     "whitespace around the name is trimmed",
			response: `<tool> analyze_text </tool><parameters>{}</parameters>`,
			want:     &ToolCall{Name: "analyze_text", Params: map[string]any{}},
		},
		{
			name:     "missing parameters block",
			response: `<tool>search_literature</tool>`,
			want:     nil,
		},
		{
			name:     "missing tool block",
			response: `<parameters>{"query": "flu"}</parameters>`,
			want:     nil,
		},
		{
			name:     "unterminated tool tag",
			response: `<tool>search_literature<parameters>{}</parameters>`,
			want:     nil,
		},
		{
			name:     "malformed JSON fails closed",
			response: `<tool>search_literature</tool><parameters>{query: flu}</parameters>`,
			want:     nil,
		},
		{
			name:     "JSON array instead of object fails closed",
			response: `<tool>search_literature</tool><parameters>["query"]</parameters>`,
			want:     nil,
		},
		{
			name:     "empty tool name fails closed",
			response: `<tool>  </tool><parameters>{}</parameters>`,
			want:     nil,
		},
		{
			name:     "plain text",
			response: "The answer is 42.",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseToolCall(tt.response)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.Equal(t, tt.want.Params, got.Params)
		})
	}
}

func TestParseToolCallUsesFirstOccurrence(t *testing.T) {
	response := `<tool>first</tool><parameters>{"a": 1}</parameters>` +
		`<tool>second</tool><parameters>{"b": 2}</parameters>`
	got := ParseToolCall(response)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Name)
	assert.Equal(t, map[string]any{"a": float64(1)}, got.Params)
}
