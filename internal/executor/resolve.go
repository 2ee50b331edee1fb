package executor

import (
	"log"
	"strings"
)

const refPrefix = "FROM_"

// ResolveInputs substitutes cross-step references in a step's input.
// A string value "FROM_<id>" becomes the referenced step's result data
// (or the whole result when it has no data field). Unresolved
// references pass through unchanged with a logged warning, so a
// dangling analyzer reference degrades instead of failing the step.
//
// This is the whole reference interpreter; nothing else in the kernel
// looks for the magic prefix.
func ResolveInputs(input map[string]any, prior map[string]map[string]any) map[string]any {
	resolved := make(map[string]any, len(input))

	for key, value := range input {
		str, ok := value.(string)
		if !ok || !strings.HasPrefix(str, refPrefix) {
			resolved[key] = value
			continue
		}

		stepID := strings.TrimPrefix(str, refPrefix)
		result, ok := prior[stepID]
		if !ok {
			log.Printf("[executor] reference to unknown step: %s", stepID)
			resolved[key] = value
			continue
		}

		if data, ok := result["data"]; ok {
			resolved[key] = data
		} else {
			resolved[key] = result
		}
	}

	return resolved
}
