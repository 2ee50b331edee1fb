// Package present turns structured execution evidence into the
// user-facing answer.
package present

import (
	"context"
	"encoding/json"
	"log"
	"sort"

	"github.com/EanHD/kai/internal/llm"
	"github.com/EanHD/kai/internal/prompts"
)

const (
	presenterTemperature = 0.5
	presenterMaxTokens   = 1500
)

// FinalizationOutput is the terminal product of a query.
type FinalizationOutput struct {
	FinalAnswer   string         `json:"final_answer"`
	ShortSummary  string         `json:"short_summary"`
	CitationsUsed []int          `json:"citations_used"`
	DebugInfo     map[string]any `json:"debug_info"`
}

// Input bundles everything the presenter needs for one finalization.
type Input struct {
	OriginalQuery     string
	Plan              map[string]any
	ToolResults       map[string]map[string]any
	SpecialistResults map[string]map[string]any
	StyleProfile      string
}

// Presenter generates final answers with the local model. The answer
// must be grounded: the system prompt forbids numbers absent from the
// inputs, and the fallback path only ever echoes collected data.
type Presenter struct {
	connector llm.Connector
	registry  *prompts.Registry
}

// NewPresenter creates a presenter bound to the local connector.
func NewPresenter(connector llm.Connector, registry *prompts.Registry) *Presenter {
	return &Presenter{connector: connector, registry: registry}
}

// Finalize produces the answer. It never fails and never returns an
// empty final_answer: parse or transport problems take the fallback
// path.
func (p *Presenter) Finalize(ctx context.Context, in Input) FinalizationOutput {
	citationMap := buildCitationMap(in.ToolResults, in.SpecialistResults)

	payload, err := p.buildPayload(in, citationMap)
	if err != nil {
		log.Printf("[presenter] payload marshal failed: %v", err)
		return p.fallbackOutput(in, citationMap)
	}

	prompt, err := p.registry.GetLatest(prompts.IDPresenter)
	if err != nil {
		log.Printf("[presenter] missing prompt: %v", err)
		return p.fallbackOutput(in, citationMap)
	}

	resp, err := p.connector.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: prompt.Content},
		{Role: llm.RoleUser, Content: payload},
	}, llm.Options{
		Temperature: presenterTemperature,
		MaxTokens:   presenterMaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		log.Printf("[presenter] generate failed: %v", err)
		return p.fallbackOutput(in, citationMap)
	}

	doc := llm.ExtractJSON(resp.Content)
	if doc == nil {
		log.Printf("[presenter] unparseable finalization response, using fallback")
		return p.fallbackOutput(in, citationMap)
	}

	answer, _ := doc["final_answer"].(string)
	if answer == "" {
		return p.fallbackOutput(in, citationMap)
	}
	summary, _ := doc["short_summary"].(string)

	var citationsUsed []int
	if raw, ok := doc["citations_used"].([]any); ok {
		for _, v := range raw {
			if f, ok := v.(float64); ok {
				citationsUsed = append(citationsUsed, int(f))
			}
		}
	}

	return FinalizationOutput{
		FinalAnswer:   answer,
		ShortSummary:  summary,
		CitationsUsed: citationsUsed,
		DebugInfo:     p.debugInfo(in, citationMap),
	}
}

// FinalizeStream streams finalization prose chunk by chunk. The prompt
// is the prose variant (no JSON envelope) so chunks are directly
// user-visible. If the stream fails before any chunk arrives it degrades
// to the synchronous path and emits the whole answer as one chunk; a
// stream that fails after some chunks ends with the chunks already sent.
func (p *Presenter) FinalizeStream(ctx context.Context, in Input) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		citationMap := buildCitationMap(in.ToolResults, in.SpecialistResults)
		payload, err := p.buildPayload(in, citationMap)
		if err != nil {
			p.emitFallback(ctx, out, in)
			return
		}

		prompt, err := p.registry.GetLatest(prompts.IDPresenter)
		if err != nil {
			p.emitFallback(ctx, out, in)
			return
		}

		system := prompt.Content + "\n\nStreaming mode: respond with the final answer as plain prose only. No JSON, no extra fields."

		chunks, errCh := p.connector.Stream(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: payload},
		}, llm.Options{
			Temperature: presenterTemperature,
			MaxTokens:   presenterMaxTokens,
		})

		emitted := false
		for chunk := range chunks {
			emitted = true
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err := <-errCh; err != nil {
			log.Printf("[presenter] stream failed: %v", err)
			if !emitted {
				p.emitFallback(ctx, out, in)
			}
		}
	}()

	return out
}

func (p *Presenter) emitFallback(ctx context.Context, out chan<- string, in Input) {
	fallback := p.Finalize(ctx, in)
	select {
	case out <- fallback.FinalAnswer:
	case <-ctx.Done():
	}
}

func (p *Presenter) buildPayload(in Input, citationMap []map[string]any) (string, error) {
	style := in.StyleProfile
	if style == "" {
		style = "kai_default"
	}

	payload := map[string]any{
		"task":               "finalize_answer",
		"style_profile":      style,
		"original_query":     in.OriginalQuery,
		"plan":               in.Plan,
		"tool_results":       in.ToolResults,
		"specialist_results": in.SpecialistResults,
		"citation_map":       citationMap,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *Presenter) debugInfo(in Input, citationMap []map[string]any) map[string]any {
	toolKeys := sortedKeys(in.ToolResults)
	specialistKeys := sortedKeys(in.SpecialistResults)

	info := map[string]any{
		"used_tools":       toolKeys,
		"used_specialists": specialistKeys,
		"citation_count":   len(citationMap),
	}
	if extra, ok := in.Plan["extra"]; ok {
		info["analyzer_extra"] = extra
	}
	return info
}

// buildCitationMap walks tool results for citations arrays and the
// verification result for verified sources, assigning ids from 1 in
// deterministic step order.
func buildCitationMap(toolResults, specialistResults map[string]map[string]any) []map[string]any {
	citations := []map[string]any{}
	nextID := 1

	for _, stepID := range sortedKeys(toolResults) {
		result := toolResults[stepID]
		if result["status"] != "success" {
			continue
		}
		data, _ := result["data"].(map[string]any)
		if data == nil {
			continue
		}
		raw, _ := data["citations"].([]any)
		for _, c := range raw {
			cm, _ := c.(map[string]any)
			if cm == nil {
				continue
			}
			label, _ := cm["title"].(string)
			if label == "" {
				label = "Source"
			}
			url, _ := cm["url"].(string)
			citations = append(citations, map[string]any{
				"id":    nextID,
				"label": label,
				"url":   url,
			})
			nextID++
		}
	}

	if verification, ok := specialistResults["verification"]; ok {
		if specs, ok := verification["verified_specs"].(map[string]any); ok {
			sources, _ := specs["sources"].([]any)
			for _, s := range sources {
				sm, _ := s.(map[string]any)
				if sm == nil {
					continue
				}
				label, _ := sm["label"].(string)
				url, _ := sm["url"].(string)
				citations = append(citations, map[string]any{
					"id":    nextID,
					"label": label,
					"url":   url,
				})
				nextID++
			}
		}
	}

	return citations
}

func sortedKeys[M ~map[string]map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
