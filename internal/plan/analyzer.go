package plan

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/EanHD/kai/internal/llm"
	"github.com/EanHD/kai/internal/prompts"
)

const (
	analyzerTemperature = 0.3
	analyzerMaxTokens   = 1500
)

// Analyzer turns a query into a typed Plan via constrained LLM output.
type Analyzer struct {
	connector llm.Connector
	registry  *prompts.Registry
}

// NewAnalyzer creates a plan analyzer bound to the local connector.
func NewAnalyzer(connector llm.Connector, registry *prompts.Registry) *Analyzer {
	return &Analyzer{connector: connector, registry: registry}
}

// Analyze generates an execution plan for the query. It never fails:
// any parse or transport problem yields the fallback plan. Complexity and
// safety are reported for downstream routing, never used to refuse or
// downgrade the query.
//
// The code_exec injection heuristic runs here, at analyze time; the
// executor only validates plans and never mutates them.
func (a *Analyzer) Analyze(ctx context.Context, queryText, source string, sessionContext []llm.Message) *Plan {
	prompt, err := a.registry.GetLatest(prompts.IDAnalyzer)
	if err != nil {
		log.Printf("[analyzer] missing prompt: %v", err)
		return a.fallbackPlan(queryText, source)
	}

	messages := make([]llm.Message, 0, len(sessionContext)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: prompt.Content})
	messages = append(messages, sessionContext...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: queryText})

	resp, err := a.connector.Generate(ctx, messages, llm.Options{
		Temperature: analyzerTemperature,
		MaxTokens:   analyzerMaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		log.Printf("[analyzer] generate failed: %v", err)
		return a.fallbackPlan(queryText, source)
	}

	doc := llm.ExtractJSON(resp.Content)
	if doc == nil {
		log.Printf("[analyzer] could not parse plan JSON from response (%d chars)", len(resp.Content))
		return a.fallbackPlan(queryText, source)
	}
	if err := ValidateWire(doc); err != nil {
		log.Printf("[analyzer] plan rejected: %v", err)
		return a.fallbackPlan(queryText, source)
	}

	p := a.fromWire(doc, queryText, source)
	InjectCodeExec(p)
	return p
}

// fromWire coerces a parsed analyzer response into a Plan. Unknown enum
// values become safe defaults rather than failures.
func (a *Analyzer) fromWire(doc map[string]any, queryText, source string) *Plan {
	p := &Plan{
		PlanID:      uuid.NewString(),
		Version:     "1.0",
		UserQuery:   queryText,
		Source:      source,
		Intent:      getString(doc, "intent", "unknown"),
		Complexity:  CoerceComplexity(getString(doc, "complexity", "")),
		Priority:    coercePriority(getString(doc, "priority", "")),
		SafetyLevel: CoerceSafety(getString(doc, "safety_level", "")),
		Budget:      defaultBudget(),
		Extra:       extraFields(doc),
	}

	if b, ok := doc["budget"].(map[string]any); ok {
		if v, ok := b["max_external_usd"].(float64); ok {
			p.Budget.MaxExternalUSD = v
		}
		p.Budget.LatencyTier = CoerceLatencyTier(getString(b, "latency_tier", ""))
	}

	if caps, ok := doc["capabilities"].([]any); ok {
		for _, c := range caps {
			if s, ok := c.(string); ok {
				p.Capabilities = append(p.Capabilities, s)
			}
		}
	}

	rawSteps, _ := doc["steps"].([]any)
	for i, raw := range rawSteps {
		sd, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		step := Step{
			ID:          getString(sd, "id", ""),
			Type:        CoerceStepType(getString(sd, "type", "")),
			Tool:        getString(sd, "tool", ""),
			Model:       getString(sd, "model", ""),
			Description: getString(sd, "description", ""),
			Input:       map[string]any{},
			Required:    true,
		}
		if step.ID == "" {
			step.ID = defaultStepID(i)
		}
		if in, ok := sd["input"].(map[string]any); ok {
			step.Input = in
		}
		if deps, ok := sd["depends_on"].([]any); ok {
			for _, d := range deps {
				if s, ok := d.(string); ok {
					step.DependsOn = append(step.DependsOn, s)
				}
			}
		}
		if req, ok := sd["required"].(bool); ok {
			step.Required = req
		}
		if skip, ok := sd["can_skip_if_unavailable"].(bool); ok {
			step.CanSkipIfUnavailable = skip
		}

		p.Steps = append(p.Steps, step)
	}

	return p
}

// fallbackPlan is the total fallback: a single finalization step that
// hands the raw query to the presenter.
func (a *Analyzer) fallbackPlan(queryText, source string) *Plan {
	return &Plan{
		PlanID:      uuid.NewString(),
		Version:     "1.0",
		UserQuery:   queryText,
		Source:      source,
		Intent:      "answer_query",
		Complexity:  ComplexitySimple,
		Priority:    "normal",
		SafetyLevel: SafetyNormal,
		Budget:      defaultBudget(),
		Steps: []Step{
			{
				ID:          "finalize",
				Type:        StepFinalization,
				Description: "Answer query directly",
				Input:       map[string]any{"query": queryText},
				Required:    true,
			},
		},
	}
}

func defaultBudget() Budget {
	return Budget{MaxExternalUSD: 0.03, LatencyTier: LatencyBalanced}
}

func coercePriority(s string) string {
	switch s {
	case "low", "normal", "high":
		return s
	default:
		return "normal"
	}
}

func getString(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return fallback
}

// extraFields preserves unknown analyzer fields verbatim so the
// presenter can surface them in debug metadata.
func extraFields(doc map[string]any) map[string]any {
	known := map[string]bool{
		"intent": true, "complexity": true, "safety_level": true,
		"priority": true, "capabilities": true, "budget": true, "steps": true,
	}
	var extra map[string]any
	for k, v := range doc {
		if !known[k] {
			if extra == nil {
				extra = make(map[string]any)
			}
			extra[k] = v
		}
	}
	return extra
}

func defaultStepID(i int) string {
	return fmt.Sprintf("step_%d", i)
}
