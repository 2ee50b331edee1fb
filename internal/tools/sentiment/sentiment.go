// Package sentiment implements a small lexicon-based sentiment scorer.
// It exists so the analyzer can route "how do I feel about this"
// queries without an external call.
package sentiment

import (
	"context"
	"strings"

	"github.com/EanHD/kai/internal/tools"
)

// ParamsSchema declares the sentiment input contract.
const ParamsSchema = `{
  "type": "object",
  "properties": {
    "text": {"type": "string", "minLength": 1}
  },
  "required": ["text"]
}`

// Tool scores text polarity.
type Tool struct {
	enabled bool
}

// New creates the sentiment tool.
func New(enabled bool) *Tool {
	return &Tool{enabled: enabled}
}

// Name implements tools.Tool.
func (t *Tool) Name() string { return "sentiment" }

// Enabled implements tools.Disabler.
func (t *Tool) Enabled() bool { return t.enabled }

// Execute implements tools.Tool.
func (t *Tool) Execute(_ context.Context, params map[string]any) (tools.Result, error) {
	if err := tools.ValidateParams(ParamsSchema, params); err != nil {
		return tools.Result{}, err
	}

	text, _ := params["text"].(string)
	label, score, hits := score(text)

	return tools.Result{
		Status: tools.StatusSuccess,
		Data: map[string]any{
			"label":       label,
			"score":       score,
			"signal_hits": hits,
		},
	}, nil
}

// Fallback implements tools.Tool. The scorer has no failure mode worth
// degrading to; report neutral.
func (t *Tool) Fallback(_ context.Context, _ map[string]any, _ error) (tools.Result, error) {
	return tools.Result{
		Status: tools.StatusSuccess,
		Data:   map[string]any{"label": "neutral", "score": 0.0, "signal_hits": 0},
	}, nil
}

// score sums lexicon weights over the tokens. Negators within two
// tokens of a hit flip its sign.
func score(text string) (string, float64, int) {
	tokens := tokenize(text)

	var total float64
	hits := 0
	for i, tok := range tokens {
		weight, ok := lexicon[tok]
		if !ok {
			continue
		}
		hits++
		if negatedAt(tokens, i) {
			weight = -weight
		}
		total += weight
	}

	if hits > 0 {
		total /= float64(hits)
	}

	switch {
	case total >= 0.25:
		return "positive", total, hits
	case total <= -0.25:
		return "negative", total, hits
	default:
		return "neutral", total, hits
	}
}

func negatedAt(tokens []string, i int) bool {
	for j := i - 2; j < i; j++ {
		if j >= 0 && negators[tokens[j]] {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.Trim(f, ".,!?;:\"'()"))
	}
	return tokens
}
