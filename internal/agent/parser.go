// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"encoding/json"
	"strings"
)

// ToolCall is one tool invocation parsed out of a model response.
type ToolCall struct {
	Name   string
	Params map[string]any
}

// ParseToolCall extracts the first tool invocation from a model response.
// The expected shape is
//
//	<tool>name</tool><parameters>{"key": "value"}</parameters>
//
// possibly surrounded by other text. Parsing fails closed: any deviation
// from the shape, including malformed JSON or an empty tool name, yields
// nil rather than a guess.
func ParseToolCall(response string) *ToolCall {
	name, ok := between(response, "<tool>", "</tool>")
	if !ok {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	rawParams, ok := between(response, "<parameters>", "</parameters>")
	if !ok {
		return nil
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
		return nil
	}

	return &ToolCall{Name: name, Params: params}
}

// between returns the text between the first occurrence of open and the
// first following occurrence of close.
func between(s, open, close string) (string, bool) {
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(open):]
	end := strings.Index(rest, close)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
