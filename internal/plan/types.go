// Package plan defines the typed execution plan produced by the analyzer
// and consumed by the executor.
package plan

// StepType is the kind of work a plan step performs.
type StepType string

const (
	StepToolCall     StepType = "tool_call"
	StepSanityCheck  StepType = "sanity_check"
	StepModelCall    StepType = "model_call"
	StepFinalization StepType = "finalization"
)

// Complexity classifies the query for downstream routing. It is an
// analyzer output, never an input gate.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Safety is the declared safety level of a plan.
type Safety string

const (
	SafetyNormal   Safety = "normal"
	SafetyHigh     Safety = "high"
	SafetyCritical Safety = "critical"
)

// LatencyTier is the declared latency budget.
type LatencyTier string

const (
	LatencyFast     LatencyTier = "fast"
	LatencyBalanced LatencyTier = "balanced"
	LatencyThorough LatencyTier = "thorough"
)

// Budget caps the external spend and latency of one plan.
type Budget struct {
	MaxExternalUSD float64     `json:"max_external_usd"`
	LatencyTier    LatencyTier `json:"latency_tier"`
}

// Step is a single node in the plan DAG.
type Step struct {
	ID                   string         `json:"id"`
	Type                 StepType       `json:"type"`
	Tool                 string         `json:"tool,omitempty"`
	Model                string         `json:"model,omitempty"`
	Description          string         `json:"description"`
	Input                map[string]any `json:"input"`
	DependsOn            []string       `json:"depends_on"`
	Required             bool           `json:"required"`
	CanSkipIfUnavailable bool           `json:"can_skip_if_unavailable"`
}

// Plan is the complete execution plan for one query.
type Plan struct {
	PlanID       string     `json:"plan_id"`
	Version      string     `json:"version"`
	UserQuery    string     `json:"user_query"`
	Source       string     `json:"source"` // "cli" or "api", informational
	Intent       string     `json:"intent"`
	Complexity   Complexity `json:"complexity"`
	Priority     string     `json:"priority"` // "low" | "normal" | "high"
	SafetyLevel  Safety     `json:"safety_level"`
	Budget       Budget     `json:"budget"`
	Capabilities []string   `json:"capabilities"`
	Steps        []Step     `json:"steps"`
	// Unknown analyzer fields are preserved for debug metadata but
	// ignored by the executor.
	Extra map[string]any `json:"-"`
}

// CoerceComplexity maps an arbitrary string onto a valid Complexity,
// defaulting to moderate.
func CoerceComplexity(s string) Complexity {
	switch Complexity(s) {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return Complexity(s)
	default:
		return ComplexityModerate
	}
}

// CoerceSafety maps an arbitrary string onto a valid Safety, defaulting
// to normal.
func CoerceSafety(s string) Safety {
	switch Safety(s) {
	case SafetyNormal, SafetyHigh, SafetyCritical:
		return Safety(s)
	default:
		return SafetyNormal
	}
}

// CoerceStepType maps an arbitrary string onto a valid StepType,
// defaulting to tool_call.
func CoerceStepType(s string) StepType {
	switch StepType(s) {
	case StepToolCall, StepSanityCheck, StepModelCall, StepFinalization:
		return StepType(s)
	default:
		return StepToolCall
	}
}

// CoerceLatencyTier maps an arbitrary string onto a valid LatencyTier,
// defaulting to balanced.
func CoerceLatencyTier(s string) LatencyTier {
	switch LatencyTier(s) {
	case LatencyFast, LatencyBalanced, LatencyThorough:
		return LatencyTier(s)
	default:
		return LatencyBalanced
	}
}

// ToMap renders the plan as a plain map, the wire shape sent to the
// specialist and the presenter.
func (p *Plan) ToMap() map[string]any {
	steps := make([]any, 0, len(p.Steps))
	for _, s := range p.Steps {
		steps = append(steps, map[string]any{
			"id":                      s.ID,
			"type":                    string(s.Type),
			"tool":                    s.Tool,
			"model":                   s.Model,
			"description":             s.Description,
			"input":                   s.Input,
			"depends_on":              s.DependsOn,
			"required":                s.Required,
			"can_skip_if_unavailable": s.CanSkipIfUnavailable,
		})
	}

	m := map[string]any{
		"plan_id":      p.PlanID,
		"version":      p.Version,
		"user_query":   p.UserQuery,
		"source":       p.Source,
		"intent":       p.Intent,
		"complexity":   string(p.Complexity),
		"priority":     p.Priority,
		"safety_level": string(p.SafetyLevel),
		"budget": map[string]any{
			"max_external_usd": p.Budget.MaxExternalUSD,
			"latency_tier":     string(p.Budget.LatencyTier),
		},
		"capabilities": p.Capabilities,
		"steps":        steps,
	}
	if len(p.Extra) > 0 {
		m["extra"] = p.Extra
	}
	return m
}

// HasCodeExec reports whether any tool_call step invokes code_exec.
func (p *Plan) HasCodeExec() bool {
	for _, s := range p.Steps {
		if s.Type == StepToolCall && s.Tool == "code_exec" {
			return true
		}
	}
	return false
}
