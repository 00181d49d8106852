// Package classifier implements the Classifier / Function Windowing of
// spec.md §4.5: given a natural-language query and a tool universe, return
// an ordered subset of at most N tools. The reference strategy is a single
// LLM call (llmClassifier); a deterministic allToolsFallback takes over
// automatically when the LLM call errors or GENESIS_CLASSIFIER is "off",
// since rule-based keyword matching alone is explicitly disallowed as a
// sole strategy per spec.md §4.5.
package classifier

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/genesis-run/genesis/internal/llmadapter"
	"github.com/genesis-run/genesis/internal/telemetry"
)

// DefaultWindow is N in spec.md §4.5, overridden by GENESIS_CLASSIFIER_WINDOW.
const DefaultWindow = 10

// Candidate is one entry in the tool universe offered to the Classifier.
// ToolSpec, ClassificationTags, Specializations and DefaultCapable carry the
// advertisement data the Classifier ranks on without importing the
// advertisement package, so the Orchestrator is free to classify over
// internal tools too.
type Candidate struct {
	ToolSpec           llmadapter.ToolSpec
	ClassificationTags []string
	Specializations    []string
	DefaultCapable     bool
}

// Classifier narrows a tool universe to a bounded, ordered candidate set.
type Classifier interface {
	Classify(ctx context.Context, query string, universe []Candidate, window int) ([]Candidate, error)
}

// New constructs the reference Classifier: an llmClassifier that falls back
// to allToolsFallback whenever the LLM call errors. Passing enabled=false
// (GENESIS_CLASSIFIER=off) skips the LLM call entirely and always uses the
// fallback.
func New(adapter llmadapter.Adapter, logger telemetry.Logger, enabled bool) Classifier {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &llmClassifier{adapter: adapter, logger: logger, enabled: enabled}
}

type llmClassifier struct {
	adapter llmadapter.Adapter
	logger  telemetry.Logger
	enabled bool
}

const classifierSystemPrompt = `You rank candidate tools by relevance to a user query.
Respond by calling the "select_tools" function with the names of the most relevant tools,
ordered from most to least relevant. Include a tool only if it could plausibly help answer
the query.`

func (c *llmClassifier) Classify(ctx context.Context, query string, universe []Candidate, window int) ([]Candidate, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	if !c.enabled || c.adapter == nil || len(universe) == 0 {
		return allToolsFallback(universe, window), nil
	}

	ranked, err := c.classifyViaLLM(ctx, query, universe, window)
	if err != nil {
		c.logger.Warn(ctx, "classifier falling back to all-tools", "error", err)
		return allToolsFallback(universe, window), nil
	}
	return withDefaultCapable(ranked, universe, window), nil
}

func (c *llmClassifier) classifyViaLLM(ctx context.Context, query string, universe []Candidate, window int) ([]Candidate, error) {
	byName := make(map[string]Candidate, len(universe))
	descriptions := make([]string, 0, len(universe))
	for _, cand := range universe {
		byName[cand.ToolSpec.Name] = cand
		descriptions = append(descriptions, "- "+cand.ToolSpec.Name+": "+cand.ToolSpec.Description)
	}

	selectTool := llmadapter.ToolSpec{
		Name:        "select_tools",
		Description: "Select and order the relevant tool names",
		ParameterSchema: json.RawMessage(`{
			"type":"object",
			"properties":{"names":{"type":"array","items":{"type":"string"}}},
			"required":["names"]
		}`),
	}

	messages := []llmadapter.Message{
		{Role: llmadapter.RoleSystem, Text: classifierSystemPrompt},
		{Role: llmadapter.RoleUser, Text: query + "\n\nCandidate tools:\n" + strings.Join(descriptions, "\n")},
	}

	resp, err := c.adapter.Call(ctx, messages, []llmadapter.ToolSpec{selectTool}, llmadapter.ToolChoiceRequired)
	if err != nil {
		return nil, err
	}
	calls := c.adapter.ExtractToolCalls(resp)
	if len(calls) == 0 {
		return nil, errNoSelection
	}

	var args struct {
		Names []string `json:"names"`
	}
	if err := json.Unmarshal(calls[0].Arguments, &args); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(args.Names))
	seen := make(map[string]bool, len(args.Names))
	for _, name := range args.Names {
		if seen[name] {
			continue
		}
		if cand, ok := byName[name]; ok {
			out = append(out, cand)
			seen[name] = true
		}
		if len(out) >= window {
			break
		}
	}
	return out, nil
}

// withDefaultCapable guarantees the default_capable agent is present per
// spec.md §4.5's condition (ii), appending it (and trimming to window) if
// the LLM's selection omitted it.
func withDefaultCapable(ranked []Candidate, universe []Candidate, window int) []Candidate {
	for _, cand := range ranked {
		if cand.DefaultCapable {
			return ranked
		}
	}
	for _, cand := range universe {
		if !cand.DefaultCapable {
			continue
		}
		if len(ranked) >= window {
			ranked = ranked[:window-1]
		}
		return append(ranked, cand)
	}
	return ranked
}

// allToolsFallback is the deterministic "match all" behavior spec.md §4.5
// requires when the ranker fails or is disabled: every candidate, ordered
// lexically by name for test stability, truncated to window. When truncation
// drops the default_capable candidate, it takes the last slot.
func allToolsFallback(universe []Candidate, window int) []Candidate {
	out := make([]Candidate, len(universe))
	copy(out, universe)
	sort.Slice(out, func(i, j int) bool { return out[i].ToolSpec.Name < out[j].ToolSpec.Name })
	if window > 0 && len(out) > window {
		out = withDefaultCapable(out[:window], universe, window)
	}
	return out
}

var errNoSelection = classifierError("classifier: llm returned no tool selection")

type classifierError string

func (e classifierError) Error() string { return string(e) }
