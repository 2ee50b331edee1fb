package plan

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// WireSchema is the canonical JSON shape of an analyzer plan. It is
// intentionally loose on enum values (coercion handles those) and strict
// on structure: steps must be an array of objects with string ids.
const WireSchema = `{
  "type": "object",
  "properties": {
    "intent": {"type": "string"},
    "complexity": {"type": "string"},
    "safety_level": {"type": "string"},
    "priority": {"type": "string"},
    "capabilities": {"type": "array", "items": {"type": "string"}},
    "budget": {
      "type": "object",
      "properties": {
        "max_external_usd": {"type": "number"},
        "latency_tier": {"type": "string"}
      }
    },
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "type": {"type": "string"},
          "tool": {"type": ["string", "null"]},
          "model": {"type": ["string", "null"]},
          "description": {"type": "string"},
          "input": {"type": "object"},
          "depends_on": {"type": "array", "items": {"type": "string"}},
          "required": {"type": "boolean"},
          "can_skip_if_unavailable": {"type": "boolean"}
        },
        "required": ["id"]
      }
    }
  },
  "required": ["steps"]
}`

// ValidateWire checks a parsed analyzer response against WireSchema.
// A schema miss is not fatal to the query; the analyzer falls back.
func ValidateWire(doc map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(WireSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("plan does not match wire schema: %v", msgs)
	}
	return nil
}
