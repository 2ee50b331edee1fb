package sentiment

import (
	"context"
	"testing"

	"github.com/EanHD/kai/internal/tools"
)

func TestScoreLabels(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"this is great, thanks!", "positive"},
		{"this is broken and useless", "negative"},
		{"the pack has 13 series cells", "neutral"},
		{"not great, honestly", "negative"},
		{"it doesn't crash anymore", "positive"},
	}

	for _, tt := range tests {
		label, _, _ := score(tt.text)
		if label != tt.want {
			t.Errorf("score(%q) label = %q, want %q", tt.text, label, tt.want)
		}
	}
}

func TestExecute(t *testing.T) {
	tool := New(true)

	res, err := tool.Execute(context.Background(), map[string]any{"text": "I love it"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Status != tools.StatusSuccess || res.Data["label"] != "positive" {
		t.Errorf("result = %+v", res)
	}

	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Error("missing text must be rejected")
	}
}
