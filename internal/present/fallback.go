package present

import (
	"fmt"
	"strings"
)

const apologyAnswer = "I encountered an issue processing your request. Please try rephrasing your question or try again later."

// fallbackOutput synthesizes an answer without the model: stdout from
// successful tool steps, then any specialist error messages, then a
// generic apology when nothing else is available. It introduces no
// numbers of its own, which keeps the groundedness property intact on
// the degraded path.
func (p *Presenter) fallbackOutput(in Input, citationMap []map[string]any) FinalizationOutput {
	var parts []string

	for _, stepID := range sortedKeys(in.ToolResults) {
		result := in.ToolResults[stepID]
		if result["status"] != "success" {
			continue
		}
		data, _ := result["data"].(map[string]any)
		if data == nil {
			continue
		}
		if stdout, ok := data["stdout"].(string); ok && strings.TrimSpace(stdout) != "" {
			parts = append(parts, strings.TrimSpace(stdout))
		}
	}

	for _, key := range sortedKeys(in.SpecialistResults) {
		result := in.SpecialistResults[key]
		errObj, _ := result["error"].(map[string]any)
		if errObj == nil {
			continue
		}
		if msg, ok := errObj["message"].(string); ok && msg != "" {
			parts = append(parts, fmt.Sprintf("Note: verification was not available (%s).", msg))
		}
	}

	answer := strings.Join(parts, "\n\n")
	summary := "Results assembled from tool output."
	if answer == "" {
		answer = apologyAnswer
		summary = "Processing failed; no usable results."
	}

	debug := p.debugInfo(in, citationMap)
	debug["fallback"] = true

	return FinalizationOutput{
		FinalAnswer:   answer,
		ShortSummary:  summary,
		CitationsUsed: []int{},
		DebugInfo:     debug,
	}
}
