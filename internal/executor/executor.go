// Package executor runs a plan's steps in dependency order and collects
// the evidence the presenter turns into an answer.
package executor

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/EanHD/kai/internal/plan"
	"github.com/EanHD/kai/internal/sanity"
	"github.com/EanHD/kai/internal/specialist"
	"github.com/EanHD/kai/internal/tools"
)

// VerificationKey is where a sanity-triggered escalation lands in
// specialist results.
const VerificationKey = "verification"

// Outcome aggregates everything a plan execution produced. Both maps
// are in wire shape, keyed by step id (plus VerificationKey for
// sanity-triggered escalations).
type Outcome struct {
	ToolResults       map[string]map[string]any
	SpecialistResults map[string]map[string]any
}

// Executor coordinates tools, sanity checks and specialist escalation.
type Executor struct {
	tools    tools.Registry
	checker  *sanity.Checker
	verifier *specialist.Verifier
}

// New creates a plan executor.
func New(registry tools.Registry, checker *sanity.Checker, verifier *specialist.Verifier) *Executor {
	return &Executor{tools: registry, checker: checker, verifier: verifier}
}

// Execute runs the plan and returns the aggregated results. A
// validation failure produces a synthetic validation_error tool result
// and zero step executions. The only error returned is ctx
// cancellation; every other failure is data in the outcome.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan, queryID, sessionID string) (Outcome, error) {
	out := Outcome{
		ToolResults:       make(map[string]map[string]any),
		SpecialistResults: make(map[string]map[string]any),
	}

	log.Printf("[executor] executing plan %s with %d steps", p.PlanID, len(p.Steps))

	if err := Validate(p); err != nil {
		log.Printf("[executor] plan validation failed: %v", err)
		out.ToolResults["validation_error"] = map[string]any{
			"status": string(tools.StatusFailed),
			"error":  err.Error(),
			"data":   map[string]any{},
		}
		return out, nil
	}

	ordered, ok := topoSort(p.Steps)
	if !ok {
		// Unreachable after Validate, kept as a belt against future edits
		out.ToolResults["validation_error"] = map[string]any{
			"status": string(tools.StatusFailed),
			"error":  "plan contains circular dependencies",
			"data":   map[string]any{},
		}
		return out, nil
	}

	var lastSanity *sanity.Result

	for _, step := range ordered {
		if err := ctx.Err(); err != nil {
			return Outcome{}, fmt.Errorf("execution cancelled: %w", err)
		}

		log.Printf("[executor] step %s (%s)", step.ID, step.Type)

		switch step.Type {
		case plan.StepToolCall:
			out.ToolResults[step.ID] = e.runToolStep(ctx, step, out.ToolResults)

		case plan.StepSanityCheck:
			result := e.runSanityStep(step, out.ToolResults, p.UserQuery)
			lastSanity = &result
			out.ToolResults[step.ID] = result.ToMap()

			if result.Suspicious {
				log.Printf("[executor] sanity check flagged %d issues (severity=%s)", len(result.Issues), result.Severity)
				useStrong := p.SafetyLevel != plan.SafetyNormal || result.Severity == sanity.SeverityHigh
				verification := e.verify(ctx, p, out.ToolResults, result.ToMap(), queryID, sessionID, useStrong)
				out.SpecialistResults[VerificationKey] = verification.ToMap()
			}

		case plan.StepModelCall:
			sanityMap := map[string]any{"suspicious": false, "issues": []any{}}
			if lastSanity != nil {
				sanityMap = lastSanity.ToMap()
			}
			useStrong := p.SafetyLevel != plan.SafetyNormal
			verification := e.verify(ctx, p, out.ToolResults, sanityMap, queryID, sessionID, useStrong)
			out.SpecialistResults[step.ID] = verification.ToMap()

		case plan.StepFinalization:
			// Owned by the presenter
		}
	}

	return out, nil
}

// runToolStep resolves the step's inputs, invokes the tool and returns
// the wire-shaped result.
func (e *Executor) runToolStep(ctx context.Context, step plan.Step, prior map[string]map[string]any) map[string]any {
	tool, ok := e.tools[step.Tool]
	if !ok || step.Tool == "" {
		log.Printf("[executor] tool '%s' not available (step=%s, available=%v)", step.Tool, step.ID, e.tools.Names())

		if step.Required && !step.CanSkipIfUnavailable {
			return map[string]any{
				"status": string(tools.StatusFailed),
				"error":  fmt.Sprintf("Required tool '%s' not available. Available tools: %v", step.Tool, e.tools.Names()),
				"data":   map[string]any{},
			}
		}
		return map[string]any{
			"status": string(tools.StatusSkipped),
			"error":  fmt.Sprintf("Optional tool '%s' not available", step.Tool),
			"data":   map[string]any{},
		}
	}

	input := ResolveInputs(step.Input, prior)
	result := tools.ExecuteWithFallback(ctx, tool, input)
	result.StepID = step.ID
	return result.ToMap()
}

// runSanityStep gathers the text accumulated by the steps listed in
// input.context_step_ids and checks it against the query.
func (e *Executor) runSanityStep(step plan.Step, prior map[string]map[string]any, query string) sanity.Result {
	var contextIDs []string
	if raw, ok := step.Input["context_step_ids"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				contextIDs = append(contextIDs, s)
			}
		}
	}

	var parts []string
	for _, id := range contextIDs {
		result, ok := prior[id]
		if !ok || result["status"] != string(tools.StatusSuccess) {
			continue
		}
		data, _ := result["data"].(map[string]any)
		if data == nil {
			continue
		}
		if stdout, ok := data["stdout"].(string); ok {
			parts = append(parts, stdout)
		} else if results, ok := data["results"]; ok {
			parts = append(parts, fmt.Sprintf("%v", results))
		}
	}

	return e.checker.Check(strings.Join(parts, "\n"), query)
}

func (e *Executor) verify(ctx context.Context, p *plan.Plan, toolResults map[string]map[string]any, sanityMap map[string]any, queryID, sessionID string, useStrong bool) *specialist.Result {
	wireResults := make(map[string]any, len(toolResults))
	for k, v := range toolResults {
		wireResults[k] = v
	}

	return e.verifier.Verify(ctx, specialist.Request{
		QueryID:       queryID,
		SessionID:     sessionID,
		OriginalQuery: p.UserQuery,
		Plan:          p.ToMap(),
		ToolResults:   wireResults,
		Sanity:        sanityMap,
		UseStrong:     useStrong,
		Critical:      p.SafetyLevel == plan.SafetyCritical,
	})
}
