package plan

import (
	"log"
	"regexp"
	"strconv"
)

// Small local models are unreliable at mental arithmetic, so any query
// that smells like pack math must route through code_exec. The analyzer
// is nudged that way by its prompt, but when the generated plan still
// lacks a code_exec step we inject one here. This is the single
// injection site; the executor validates plans without mutating them.

var (
	packShorthandRe = regexp.MustCompile(`(?i)\b(\d+)\s*s\s*(\d+)\s*p\b`)
	unitTokenRe     = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:mah|ah|wh|kwh|v|volts?|watts?|w|miles?|km|mph|hours?)\b`)
)

// NeedsCalculation reports whether the query carries strong indicators
// that numeric work is required.
func NeedsCalculation(query string) bool {
	return packShorthandRe.MatchString(query) || unitTokenRe.MatchString(query)
}

// InjectCodeExec adds a code_exec step to a plan that needs calculation
// but has none, wiring the terminal finalization to wait for it. The
// step's input encodes the task parameters parsed from the query.
func InjectCodeExec(p *Plan) {
	if !NeedsCalculation(p.UserQuery) || p.HasCodeExec() {
		return
	}

	step := Step{
		ID:          "injected_code_exec",
		Type:        StepToolCall,
		Tool:        "code_exec",
		Description: "Compute the numeric result instead of relying on mental math",
		Input:       codeExecInput(p.UserQuery),
		Required:    true,
	}

	// Insert before the terminal finalization so it stays last; the
	// finalization picks up a dependency on the injected step.
	inserted := false
	for i := range p.Steps {
		if p.Steps[i].Type == StepFinalization {
			p.Steps = append(p.Steps[:i], append([]Step{step}, p.Steps[i:]...)...)
			p.Steps[i+1].DependsOn = append(p.Steps[i+1].DependsOn, step.ID)
			inserted = true
			break
		}
	}
	if !inserted {
		p.Steps = append(p.Steps, step)
	}

	if !contains(p.Capabilities, "code_exec") {
		p.Capabilities = append(p.Capabilities, "code_exec")
	}

	log.Printf("[analyzer] injected code_exec step into plan %s", p.PlanID)
}

// codeExecInput builds the canonical code_exec task input from whatever
// pack parameters the query exposes.
func codeExecInput(query string) map[string]any {
	input := map[string]any{
		"language": "python",
		"mode":     "task",
		"task":     "battery_pack_energy",
	}

	vars := map[string]any{}
	if m := packShorthandRe.FindStringSubmatch(query); m != nil {
		series, _ := strconv.Atoi(m[1])
		parallel, _ := strconv.Atoi(m[2])
		vars["series_cells"] = series
		vars["parallel_cells"] = parallel
	}
	if mah := findUnitValue(query, "mah"); mah > 0 {
		vars["cell_capacity_ah"] = mah / 1000.0
	} else if ah := findUnitValue(query, "ah"); ah > 0 {
		vars["cell_capacity_ah"] = ah
	}
	if v := findUnitValue(query, "v"); v > 0 {
		vars["cell_voltage_v"] = v
	}
	if len(vars) > 0 {
		input["variables"] = vars
	} else {
		// No parseable parameters; hand the raw query to the tool.
		input["variables"] = map[string]any{"query": query}
	}

	return input
}

func findUnitValue(query, unit string) float64 {
	re := regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*` + unit + `\b`)
	if m := re.FindStringSubmatch(query); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v
		}
	}
	return 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
