package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Models rarely honor "JSON only" perfectly: they wrap the object in
// markdown fences or prepend prose. ExtractJSON recovers the object in
// three tiers: direct parse, first fenced ```json block, then the span
// from the first '{' to the last '}'. Returns nil if every tier fails.
//
// This is a contract of the kernel, not an implementation detail: the
// analyzer, verifier and presenter all parse through here so that no
// component depends on a provider's structured-output feature.

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON parses a JSON object out of raw model output.
func ExtractJSON(response string) map[string]any {
	// Tier 1: direct parse
	var obj map[string]any
	if err := json.Unmarshal([]byte(response), &obj); err == nil {
		return obj
	}

	// Tier 2: first fenced code block
	if m := fencedJSON.FindStringSubmatch(response); m != nil {
		obj = nil
		if err := json.Unmarshal([]byte(m[1]), &obj); err == nil {
			return obj
		}
	}

	// Tier 3: first '{' to last '}'
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end > start {
		obj = nil
		if err := json.Unmarshal([]byte(response[start:end+1]), &obj); err == nil {
			return obj
		}
	}

	return nil
}
