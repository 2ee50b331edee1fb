package llm

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string // key that must be present, "" means expect nil
	}{
		{
			name:    "direct parse",
			input:   `{"intent": "greet"}`,
			wantKey: "intent",
		},
		{
			name:    "fenced json block",
			input:   "Here is the plan:\n```json\n{\"intent\": \"calc\"}\n```\nDone.",
			wantKey: "intent",
		},
		{
			name:    "fenced block without language tag",
			input:   "```\n{\"steps\": []}\n```",
			wantKey: "steps",
		},
		{
			name:    "prose around braces",
			input:   `Sure! The answer is {"final_answer": "42"} hope that helps`,
			wantKey: "final_answer",
		},
		{
			name:    "no json at all",
			input:   "I cannot produce a plan for that.",
			wantKey: "",
		},
		{
			name:    "malformed everywhere",
			input:   "```json\n{broken\n```\nand {also broken",
			wantKey: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.input)
			if tt.wantKey == "" {
				if got != nil {
					t.Errorf("ExtractJSON() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ExtractJSON() = nil, want object with %q", tt.wantKey)
			}
			if _, ok := got[tt.wantKey]; !ok {
				t.Errorf("ExtractJSON() missing key %q: %v", tt.wantKey, got)
			}
		})
	}
}

func TestExtractJSONNestedBraces(t *testing.T) {
	input := `plan: {"steps": [{"id": "s1", "input": {"x": 1}}]}`
	got := ExtractJSON(input)
	if got == nil {
		t.Fatal("ExtractJSON() = nil for nested object")
	}
	steps, ok := got["steps"].([]any)
	if !ok || len(steps) != 1 {
		t.Errorf("steps not recovered: %v", got)
	}
}
