// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyze turns retrieved articles into model-written summaries,
// syntheses, and answers. It owns the prompt templates; the provider
// router owns everything about talking to the models.
package analyze

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/medlit-engine/internal/provider"
	"github.com/pdiddy/medlit-engine/pkg/types"
)

// Summary styles. The style adjusts the prompt, not the pipeline.
const (
	StyleConcise  = "concise"
	StyleDetailed = "detailed"
	StyleClinical = "clinical"
)

// styleInstructions maps a style name to the instruction fragment spliced
// into the summarization prompt.
var styleInstructions = map[string]string{
	StyleConcise:  "Write a concise summary in 2-3 sentences covering only the core finding.",
	StyleDetailed: "Write a detailed summary covering the objective, methods, results, and conclusions, one short paragraph each.",
	StyleClinical: "Write a summary aimed at practicing clinicians: emphasize patient population, intervention, outcomes, and clinical implications.",
}

// analysisSystemPrompt frames every analysis request.
const analysisSystemPrompt = "You are a biomedical literature analyst. Base every statement on the provided text only and say so explicitly when the text does not support an answer."

var summarizeTmpl = template.Must(template.New("summarize").Parse(`{{.Instruction}}

Title: {{.Title}}
{{if .Journal}}Journal: {{.Journal}}
{{end}}Abstract:
{{.Abstract}}
`))

// promptFuncs holds helpers shared by the prompt templates. inc renders
// 1-based article numbers for the model to cite.
var promptFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

var synthesizeTmpl = template.Must(template.New("synthesize").Funcs(promptFuncs).Parse(`The following are abstracts of {{len .Articles}} biomedical articles on a shared topic. Write a synthesis that identifies the common findings, the points of disagreement, and the open questions. Refer to articles by their number.

{{range $i, $a := .Articles}}[{{inc $i}}] {{$a.Title}}{{if $a.Journal}} ({{$a.Journal}}){{end}}
{{$a.Abstract}}

{{end}}`))

var keyPointsTmpl = template.Must(template.New("keypoints").Parse(`Extract the key points from the following article as a bullet list. One finding per bullet, no more than {{.MaxPoints}} bullets, most important first.

Title: {{.Title}}
Abstract:
{{.Abstract}}
`))

var answerTmpl = template.Must(template.New("answer").Funcs(promptFuncs).Parse(`Answer the question using only the provided article abstracts. Cite supporting articles by their number. If the abstracts do not contain the answer, say so.

Question: {{.Question}}

{{range $i, $a := .Articles}}[{{inc $i}}] {{$a.Title}}
{{$a.Abstract}}

{{end}}`))

// Analyzer runs analysis prompts through a provider router.
type Analyzer struct {
	router *provider.Router
}

// NewAnalyzer builds an Analyzer over the given router.
func NewAnalyzer(router *provider.Router) *Analyzer {
	return &Analyzer{router: router}
}

// SummarizeArticle summarizes one article in the given style. An unknown
// style falls back to concise. providerName chooses the model backend;
// empty uses the router default.
func (a *Analyzer) SummarizeArticle(ctx context.Context, article types.Article, style, providerName string) types.GenerateResponse {
	instruction, ok := styleInstructions[strings.ToLower(style)]
	if !ok {
		instruction = styleInstructions[StyleConcise]
	}

	prompt, err := render(summarizeTmpl, map[string]any{
		"Instruction": instruction,
		"Title":       article.Title,
		"Journal":     article.Journal,
		"Abstract":    article.Abstract,
	})
	if err != nil {
		return types.GenerateResponse{Error: err.Error()}
	}

	return a.router.GenerateForOperation(ctx, types.GenerateRequest{
		Prompt:       prompt,
		Provider:     providerName,
		SystemPrompt: analysisSystemPrompt,
	}, "summarize")
}

// SynthesizeMultiple writes a cross-article synthesis over the given
// articles.
func (a *Analyzer) SynthesizeMultiple(ctx context.Context, articles []types.Article, providerName string) types.GenerateResponse {
	if len(articles) == 0 {
		return types.GenerateResponse{Error: "no articles to synthesize"}
	}

	prompt, err := render(synthesizeTmpl, map[string]any{"Articles": articles})
	if err != nil {
		return types.GenerateResponse{Error: err.Error()}
	}

	return a.router.GenerateForOperation(ctx, types.GenerateRequest{
		Prompt:       prompt,
		Provider:     providerName,
		SystemPrompt: analysisSystemPrompt,
		MaxTokens:    2048,
	}, "synthesize")
}

// ExtractKeyPoints pulls up to maxPoints findings out of one article.
func (a *Analyzer) ExtractKeyPoints(ctx context.Context, article types.Article, maxPoints int, providerName string) types.GenerateResponse {
	if maxPoints <= 0 {
		maxPoints = 5
	}

	prompt, err := render(keyPointsTmpl, map[string]any{
		"Title":     article.Title,
		"Abstract":  article.Abstract,
		"MaxPoints": maxPoints,
	})
	if err != nil {
		return types.GenerateResponse{Error: err.Error()}
	}

	return a.router.GenerateForOperation(ctx, types.GenerateRequest{
		Prompt:       prompt,
		Provider:     providerName,
		SystemPrompt: analysisSystemPrompt,
	}, "key_points")
}

// AnswerQuestion answers a free-form question against the given article
// abstracts.
func (a *Analyzer) AnswerQuestion(ctx context.Context, question string, articles []types.Article, providerName string) types.GenerateResponse {
	if len(articles) == 0 {
		return types.GenerateResponse{Error: "no articles to answer from"}
	}

	prompt, err := render(answerTmpl, map[string]any{
		"Question": question,
		"Articles": articles,
	})
	if err != nil {
		return types.GenerateResponse{Error: err.Error()}
	}

	return a.router.GenerateForOperation(ctx, types.GenerateRequest{
		Prompt:       prompt,
		Provider:     providerName,
		SystemPrompt: analysisSystemPrompt,
		MaxTokens:    2048,
	}, "qa")
}

// render executes a prompt template against its data.
func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return buf.String(), nil
}
