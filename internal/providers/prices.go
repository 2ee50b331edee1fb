package providers

import "strings"

// Price is USD per 1000 tokens. Connectors compute call cost from
// their own table; the kernel never guesses prices.
type Price struct {
	InputPer1k  float64
	OutputPer1k float64
}

// priceTable maps model-id prefixes to prices. Local models are free.
var priceTable = map[string]Price{
	// Anthropic
	"claude-3-5-sonnet": {InputPer1k: 0.003, OutputPer1k: 0.015},
	"claude-3-5-haiku":  {InputPer1k: 0.0008, OutputPer1k: 0.004},
	"claude-3-opus":     {InputPer1k: 0.015, OutputPer1k: 0.075},
	"claude":            {InputPer1k: 0.003, OutputPer1k: 0.015},

	// x.ai
	"grok-beta": {InputPer1k: 0.0005, OutputPer1k: 0.0015},
	"grok":      {InputPer1k: 0.0005, OutputPer1k: 0.0015},

	// OpenAI
	"gpt-4o-mini": {InputPer1k: 0.00015, OutputPer1k: 0.0006},
	"gpt-4o":      {InputPer1k: 0.0025, OutputPer1k: 0.01},

	// Local runtimes
	"granite": {},
	"llama":   {},
	"local":   {},
}

// priceFor resolves the price for a model id by longest matching
// prefix. Unknown models are treated as free so local deployments of
// arbitrary models never inflate the ledger.
func priceFor(modelID string) Price {
	lower := strings.ToLower(modelID)

	var best string
	var price Price
	for prefix, p := range priceTable {
		if strings.HasPrefix(lower, prefix) && len(prefix) > len(best) {
			best = prefix
			price = p
		}
	}
	return price
}
