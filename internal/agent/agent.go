// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent runs an iterative research loop: the model picks a tool,
// the tool runs against the literature sources, and the observation goes
// back into the conversation until the model produces a final answer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdiddy/medlit-engine/internal/aggregate"
	"github.com/pdiddy/medlit-engine/internal/provider"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

// finalAnswerMarker ends the loop when it appears in a model response.
const finalAnswerMarker = "Final Answer:"

// defaultMaxIterations bounds the loop when the caller does not.
const defaultMaxIterations = 5

// ToolFunc executes one tool invocation and returns the observation text
// fed back to the model.
type ToolFunc func(ctx context.Context, params map[string]any) (string, error)

// Tool is one capability the agent can invoke.
type Tool struct {
	// Name is the identifier the model uses to invoke the tool.
	Name string
	// Description tells the model what the tool does.
	Description string
	// Parameters maps parameter names to short usage descriptions.
	Parameters map[string]string
	// Run executes the tool.
	Run ToolFunc
}

// Agent drives the tool-use loop over a provider router.
type Agent struct {
	router   *provider.Router
	searcher *aggregate.Searcher
	tools    map[string]Tool
	order    []string
	tracew   io.Writer
}

// New builds an Agent with the built-in literature tools registered.
// tracew receives a progress line per iteration; pass nil to run quietly.
func New(router *provider.Router, searcher *aggregate.Searcher, tracew io.Writer) *Agent {
	if tracew == nil {
		tracew = io.Discard
	}
	a := &Agent{
		router:   router,
		searcher: searcher,
		tools:    make(map[string]Tool),
		tracew:   tracew,
	}
	a.RegisterTool(Tool{
		Name:        "search_literature",
		Description: "Search biomedical literature databases for articles matching a query.",
		Parameters: map[string]string{
			"query":       "search terms",
			"max_results": "optional result cap, default 10",
		},
		Run: a.searchLiterature,
	})
	a.RegisterTool(Tool{
		Name:        "get_article_details",
		Description: "Fetch full article records from one source by their source-native IDs.",
		Parameters: map[string]string{
			"source": "source name, e.g. pubmed",
			"ids":    "list of article IDs",
		},
		Run: a.getArticleDetails,
	})
	a.RegisterTool(Tool{
		Name:        "analyze_text",
		Description: "Analyze a piece of text with the AI model and return the analysis.",
		Parameters: map[string]string{
			"text":        "the text to analyze",
			"instruction": "what to do with the text",
		},
		Run: a.analyzeText,
	})
	return a
}

// RegisterTool adds or replaces a tool.
func (a *Agent) RegisterTool(t Tool) {
	if _, exists := a.tools[t.Name]; !exists {
		a.order = append(a.order, t.Name)
	}
	a.tools[t.Name] = t
}

// systemPrompt renders the tool-use instructions, including the tool
// catalog, in the exact invocation grammar the parser accepts.
func (a *Agent) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a biomedical research assistant with access to tools.\n\n")
	b.WriteString("To use a tool, respond with exactly:\n")
	b.WriteString("<tool>tool_name</tool><parameters>{\"param\": \"value\"}</parameters>\n\n")
	b.WriteString("When you have enough information, respond with a line starting with \"" + finalAnswerMarker + "\" followed by your answer.\n\n")
	b.WriteString("Available tools:\n")
	for _, name := range a.order {
		t := a.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		params := make([]string, 0, len(t.Parameters))
		for p := range t.Parameters {
			params = append(params, p)
		}
		sort.Strings(params)
		for _, p := range params {
			fmt.Fprintf(&b, "    %s: %s\n", p, t.Parameters[p])
		}
	}
	return b.String()
}

// Run answers a research question, iterating tool calls until the model
// produces a final answer or the iteration budget runs out. The returned
// string is the answer text with the marker stripped.
func (a *Agent) Run(ctx context.Context, question string, maxIterations int) (string, error) {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	system := a.systemPrompt()
	transcript := "Question: " + question

	for i := 0; i < maxIterations; i++ {
		resp := a.router.GenerateForOperation(ctx, types.GenerateRequest{
			Prompt:       transcript,
			SystemPrompt: system,
			MaxTokens:    2048,
		}, "agent")
		if resp.Failed() {
			return "", fmt.Errorf("model call failed: %s", resp.Error)
		}

		if idx := strings.Index(resp.Content, finalAnswerMarker); idx >= 0 {
			return strings.TrimSpace(resp.Content[idx+len(finalAnswerMarker):]), nil
		}

		call := ParseToolCall(resp.Content)
		if call == nil {
			// Neither an answer nor a well-formed tool call. Nudge the
			// model back onto the grammar instead of guessing.
			transcript += "\n\nAssistant: " + resp.Content +
				"\n\nObservation: response was neither a tool call nor a final answer; use the documented format."
			continue
		}

		fmt.Fprintf(a.tracew, "iteration %d: %s\n", i+1, call.Name)

		observation := a.invoke(ctx, call)
		transcript += "\n\nAssistant: " + resp.Content + "\n\nObservation: " + observation
	}

	return "", fmt.Errorf("no final answer after %d iterations", maxIterations)
}

// invoke runs one parsed tool call, turning tool errors into observations
// the model can react to.
func (a *Agent) invoke(ctx context.Context, call *ToolCall) string {
	t, ok := a.tools[call.Name]
	if !ok {
		return fmt.Sprintf("unknown tool %q", call.Name)
	}
	result, err := t.Run(ctx, call.Params)
	if err != nil {
		return fmt.Sprintf("tool %s failed: %v", call.Name, err)
	}
	return result
}

// searchLiterature is the built-in search tool.
func (a *Agent) searchLiterature(ctx context.Context, params map[string]any) (string, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return "", fmt.Errorf("missing query parameter")
	}
	maxResults := 10
	if v, ok := params["max_results"].(float64); ok && v > 0 {
		maxResults = int(v)
	}

	articles := a.searcher.SearchAndMerge(ctx, query, maxResults, maxResults, true, aggregate.SortCitationCount)
	if len(articles) == 0 {
		return "no articles found", nil
	}

	// Compact digest: the model needs titles and abstracts, not the full
	// record.
	type digest struct {
		Title     string `json:"title"`
		Abstract  string `json:"abstract,omitempty"`
		Journal   string `json:"journal,omitempty"`
		PubDate   string `json:"pub_date,omitempty"`
		DOI       string `json:"doi,omitempty"`
		Citations int    `json:"citations"`
	}
	digests := make([]digest, 0, len(articles))
	for _, art := range articles {
		abstract := art.Abstract
		// Truncate on a rune boundary; a byte cut can split a multi-byte
		// character.
		if runes := []rune(abstract); len(runes) > 500 {
			abstract = string(runes[:500]) + "..."
		}
		digests = append(digests, digest{
			Title:     art.Title,
			Abstract:  abstract,
			Journal:   art.Journal,
			PubDate:   art.PubDate,
			DOI:       art.DOI,
			Citations: art.CitationCount,
		})
	}
	out, err := json.Marshal(digests)
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}
	return string(out), nil
}

// getArticleDetails is the built-in per-source detail fetch tool.
func (a *Agent) getArticleDetails(ctx context.Context, params map[string]any) (string, error) {
	name, _ := params["source"].(string)
	if name == "" {
		return "", fmt.Errorf("missing source parameter")
	}
	rawIDs, ok := params["ids"].([]any)
	if !ok || len(rawIDs) == 0 {
		return "", fmt.Errorf("missing ids parameter")
	}
	ids := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		if id, ok := raw.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("ids must be non-empty strings")
	}

	backend, ok := a.searcher.Backend(name)
	if !ok {
		return "", fmt.Errorf("unknown source %q (configured: %s)", name, strings.Join(a.searcher.Sources(), ", "))
	}

	articles, err := backend.FetchDetails(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("fetching from %s: %w", backend.Name(), err)
	}
	out, err := json.Marshal(articles)
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}
	return string(out), nil
}

// analyzeText is the built-in free-form analysis tool.
func (a *Agent) analyzeText(ctx context.Context, params map[string]any) (string, error) {
	text, _ := params["text"].(string)
	if text == "" {
		return "", fmt.Errorf("missing text parameter")
	}
	instruction, _ := params["instruction"].(string)
	if instruction == "" {
		instruction = "Summarize the following text."
	}

	resp := a.router.GenerateForOperation(ctx, types.GenerateRequest{
		Prompt:    instruction + "\n\n" + text,
		MaxTokens: 1024,
	}, "agent")
	if resp.Failed() {
		return "", fmt.Errorf("analysis failed: %s", resp.Error)
	}
	return resp.Content, nil
}
