// Package ragtool exposes the local knowledge index as the rag tool.
package ragtool

import (
	"context"
	"fmt"

	"github.com/EanHD/kai/internal/knowledge"
	"github.com/EanHD/kai/internal/tools"
)

// ParamsSchema declares the rag input contract.
const ParamsSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "minLength": 1},
    "top_k": {"type": "integer", "minimum": 1, "maximum": 20}
  },
  "required": ["query"]
}`

// Tool retrieves snippets from the knowledge index.
type Tool struct {
	index   *knowledge.Index
	enabled bool
}

// New creates the rag tool over an opened knowledge index.
func New(index *knowledge.Index, enabled bool) *Tool {
	return &Tool{index: index, enabled: enabled}
}

// Name implements tools.Tool.
func (t *Tool) Name() string { return "rag" }

// Enabled implements tools.Disabler.
func (t *Tool) Enabled() bool { return t.enabled && t.index != nil }

// Execute implements tools.Tool.
func (t *Tool) Execute(ctx context.Context, params map[string]any) (tools.Result, error) {
	if err := tools.ValidateParams(ParamsSchema, params); err != nil {
		return tools.Result{}, err
	}
	if t.index == nil {
		return tools.Result{}, fmt.Errorf("knowledge index not configured")
	}

	query, _ := params["query"].(string)
	topK := 5
	if v, ok := params["top_k"].(float64); ok {
		topK = int(v)
	}

	snippets, err := t.index.Search(ctx, query, topK)
	if err != nil {
		return tools.Result{}, err
	}

	results := make([]any, 0, len(snippets))
	citations := make([]any, 0, len(snippets))
	for _, s := range snippets {
		results = append(results, map[string]any{
			"path":  s.Path,
			"title": s.Title,
			"text":  s.Text,
			"score": s.Score,
		})
		citations = append(citations, map[string]any{
			"title": s.Title,
			"url":   s.Path,
		})
	}

	return tools.Result{
		Status: tools.StatusSuccess,
		Data: map[string]any{
			"query":     query,
			"results":   results,
			"citations": citations,
		},
	}, nil
}

// Fallback implements tools.Tool. Retrieval has no degraded mode: a
// broken index is a failed step.
func (t *Tool) Fallback(_ context.Context, _ map[string]any, execErr error) (tools.Result, error) {
	return tools.Result{
		Status: tools.StatusFailed,
		Data:   map[string]any{},
		Error:  fmt.Sprintf("knowledge retrieval unavailable: %v", execErr),
	}, nil
}
