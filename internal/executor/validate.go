package executor

import (
	"fmt"

	"github.com/EanHD/kai/internal/plan"
)

// ValidationError describes a structurally broken plan. It reaches the
// caller as data (a synthetic tool result), never as a panic.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validate rejects plans with duplicate step ids, unknown depends_on
// references, dependency cycles, or malformed code_exec inputs.
// Validation is pure: running it twice on the same plan yields the same
// verdict, and it never mutates the plan.
func Validate(p *plan.Plan) error {
	ids := make(map[string]bool, len(p.Steps))
	for _, step := range p.Steps {
		if ids[step.ID] {
			return &ValidationError{Reason: fmt.Sprintf("duplicate step id '%s'", step.ID)}
		}
		ids[step.ID] = true
	}

	for _, step := range p.Steps {
		for _, dep := range step.DependsOn {
			if !ids[dep] {
				return &ValidationError{Reason: fmt.Sprintf("step '%s' depends on unknown step '%s'", step.ID, dep)}
			}
			if dep == step.ID {
				return &ValidationError{Reason: fmt.Sprintf("step '%s' depends on itself", step.ID)}
			}
		}
	}

	if _, ok := topoSort(p.Steps); !ok {
		return &ValidationError{Reason: "plan contains circular dependencies"}
	}

	for _, step := range p.Steps {
		if step.Type != plan.StepToolCall || step.Tool != "code_exec" {
			continue
		}
		if err := validateCodeExecInput(step); err != nil {
			return err
		}
	}

	return nil
}

// validateCodeExecInput enforces the canonical code_exec contract:
// language=python, mode=task|raw_code, and the fields of that mode
// (task and variables for mode=task, code for mode=raw_code). Fields
// belonging to the other mode are not rejected.
func validateCodeExecInput(step plan.Step) error {
	input := step.Input
	if input == nil {
		input = map[string]any{}
	}

	if _, ok := input["language"]; !ok {
		return &ValidationError{Reason: fmt.Sprintf("step '%s': code_exec missing 'language' field", step.ID)}
	}
	if lang, _ := input["language"].(string); lang != "python" {
		return &ValidationError{Reason: fmt.Sprintf("step '%s': code_exec 'language' must be 'python', got '%v'", step.ID, input["language"])}
	}
	mode, ok := input["mode"].(string)
	if !ok {
		return &ValidationError{Reason: fmt.Sprintf("step '%s': code_exec missing 'mode' field", step.ID)}
	}

	switch mode {
	case "task":
		if _, ok := input["task"]; !ok {
			return &ValidationError{Reason: fmt.Sprintf("step '%s': code_exec mode='task' requires 'task' field", step.ID)}
		}
		if _, ok := input["variables"]; !ok {
			return &ValidationError{Reason: fmt.Sprintf("step '%s': code_exec mode='task' requires 'variables' field", step.ID)}
		}
	case "raw_code":
		if _, ok := input["code"]; !ok {
			return &ValidationError{Reason: fmt.Sprintf("step '%s': code_exec mode='raw_code' requires 'code' field", step.ID)}
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("step '%s': code_exec mode must be 'task' or 'raw_code', got '%s'", step.ID, mode)}
	}

	return nil
}

// topoSort orders steps with Kahn's algorithm. Ties break by insertion
// order, so independent steps keep the analyzer's sequence. Returns
// false when a cycle prevents consuming every step.
func topoSort(steps []plan.Step) ([]plan.Step, bool) {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		index[s.ID] = i
	}

	inDegree := make([]int, len(steps))
	dependents := make(map[string][]int, len(steps))
	for i, s := range steps {
		for _, dep := range s.DependsOn {
			j, ok := index[dep]
			if !ok || j == i {
				continue // Validate reports these; sort stays total
			}
			inDegree[i]++
			dependents[dep] = append(dependents[dep], i)
		}
	}

	// queue holds ready step indices in insertion order
	var queue []int
	for i := range steps {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	ordered := make([]plan.Step, 0, len(steps))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		ordered = append(ordered, steps[i])

		for _, j := range dependents[steps[i].ID] {
			inDegree[j]--
			if inDegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(ordered) != len(steps) {
		return nil, false
	}
	return ordered, true
}
