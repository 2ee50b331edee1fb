package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/EanHD/kai/internal/cost"
	"github.com/EanHD/kai/internal/llm"
	"github.com/EanHD/kai/internal/prompts"
)

const (
	verifierTemperature = 0.3
	verifierMaxTokens   = 1000

	// Rough input size assumed when estimating spend for the cost gate;
	// payloads are plan + tool results and land in this ballpark.
	estimatedInputTokens = 2500
)

// Request carries everything a verification call needs.
type Request struct {
	QueryID       string
	SessionID     string
	OriginalQuery string
	Plan          map[string]any
	ToolResults   map[string]any
	Sanity        map[string]any
	UseStrong     bool
	// Critical marks queries that may use the manual cost override.
	Critical bool
}

// Verifier holds the two external connector slots. Either may be nil;
// an unconfigured slot yields a structured no_connector error rather
// than a silent success.
type Verifier struct {
	fast     llm.Connector
	strong   llm.Connector
	registry *prompts.Registry
	tracker  *cost.Tracker
}

// NewVerifier creates a verifier over the fast/strong connector slots.
func NewVerifier(fast, strong llm.Connector, registry *prompts.Registry, tracker *cost.Tracker) *Verifier {
	return &Verifier{fast: fast, strong: strong, registry: registry, tracker: tracker}
}

// Verify sends the escalation payload to the chosen specialist and
// parses the structured result. All failure paths return a Result with
// an error payload; Verify itself never fails.
//
// The budget gate runs before invocation: a denied call returns
// error.type=cost_blocked and no tokens are spent.
func (v *Verifier) Verify(ctx context.Context, req Request) *Result {
	connector := v.fast
	slot := "fast"
	if req.UseStrong {
		connector = v.strong
		slot = "strong"
	}

	if connector == nil {
		log.Printf("[specialist] no %s connector configured, skipping verification", slot)
		return errorResult("no_connector",
			"External model not configured",
			"Answer with available data and note uncertainty")
	}

	if v.tracker != nil {
		estimate := connector.EstimateCost(estimatedInputTokens, verifierMaxTokens)
		allow, reason := v.tracker.CanProceed(req.SessionID, estimate, req.Critical)
		if !allow {
			log.Printf("[specialist] %s call denied by cost gate (%s)", slot, reason)
			return errorResult("cost_blocked",
				fmt.Sprintf("External call denied: %s", reason),
				"Answer with locally available information and note the budget limit")
		}
		if reason == cost.ReasonSoftCapWarning {
			log.Printf("[specialist] proceeding under soft cap warning (session=%s)", req.SessionID)
		}
	}

	prompt, err := v.registry.GetLatest(prompts.IDVerifier)
	if err != nil {
		return errorResult("exception", err.Error(), "Answer with available data and note uncertainty")
	}

	payload := map[string]any{
		"task":           "verify_and_correct_battery_analysis",
		"mode":           "json_only",
		"original_query": req.OriginalQuery,
		"plan":           req.Plan,
		"tool_results":   req.ToolResults,
		"sanity":         req.Sanity,
		"constraints": map[string]any{
			"response_format": "json",
			"no_prose":        true,
			"max_tokens":      800,
			"strict_fields":   true,
		},
	}

	payloadJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errorResult("exception", err.Error(), "Answer with available data and note uncertainty")
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompt.Content},
		{Role: llm.RoleUser, Content: string(payloadJSON)},
	}

	log.Printf("[specialist] calling %s model (%s) for verification", slot, connector.ModelID())

	resp, err := connector.Generate(ctx, messages, llm.Options{
		Temperature: verifierTemperature,
		MaxTokens:   verifierMaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return errorResult("exception", err.Error(), "Answer with available data and note uncertainty")
	}

	if v.tracker != nil {
		v.tracker.Track(cost.Record{
			QueryID:      req.QueryID,
			SessionID:    req.SessionID,
			ModelID:      resp.ModelUsed,
			InputTokens:  resp.TokenCount.Input,
			OutputTokens: resp.TokenCount.Output,
			Cost:         resp.Cost,
		})
	}

	doc := llm.ExtractJSON(resp.Content)
	if doc == nil {
		log.Printf("[specialist] unparseable verification response (%d chars)", len(resp.Content))
		return errorResult("parse_error",
			"Specialist returned invalid JSON",
			"Use available data with uncertainty note")
	}

	if rawErr, ok := doc["error"].(map[string]any); ok {
		return &Result{
			Confidence: defaultConfidence(),
			Err: &VerificationError{
				Type:            stringField(rawErr, "type", "verification_failed"),
				Message:         stringField(rawErr, "message", ""),
				SuggestedAction: stringField(rawErr, "suggested_action", ""),
			},
		}
	}

	return fromWire(doc)
}

// HasFast reports whether the fast slot is configured.
func (v *Verifier) HasFast() bool { return v.fast != nil }

// HasStrong reports whether the strong slot is configured.
func (v *Verifier) HasStrong() bool { return v.strong != nil }

// fromWire coerces a parsed specialist response into a Result.
func fromWire(doc map[string]any) *Result {
	r := &Result{Confidence: defaultConfidence()}

	if specs, ok := doc["verified_specs"].(map[string]any); ok {
		vs := &VerifiedSpecs{
			CellType:               stringField(specs, "cell_type", ""),
			NominalVoltageV:        floatField(specs, "nominal_voltage_v"),
			NominalCapacityAh:      floatField(specs, "nominal_capacity_ah"),
			AllowedCapacityRangeAh: map[string]float64{},
		}
		if rng, ok := specs["allowed_capacity_range_ah"].(map[string]any); ok {
			for k, raw := range rng {
				if f, ok := raw.(float64); ok {
					vs.AllowedCapacityRangeAh[k] = f
				}
			}
		}
		if sources, ok := specs["sources"].([]any); ok {
			for _, raw := range sources {
				sd, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				vs.Sources = append(vs.Sources, Source{
					Label:      stringField(sd, "label", ""),
					URL:        stringField(sd, "url", ""),
					Type:       stringField(sd, "type", "other"),
					TrustLevel: coerceTrust(stringField(sd, "trust_level", "")),
				})
			}
		}
		r.VerifiedSpecs = vs
	}

	if calc, ok := doc["pack_calculation"].(map[string]any); ok {
		r.PackCalculation = &PackCalculation{
			SeriesCells:         intField(calc, "series_cells"),
			ParallelCells:       intField(calc, "parallel_cells"),
			PackNominalVoltageV: floatField(calc, "pack_nominal_voltage_v"),
			PackTotalAh:         floatField(calc, "pack_total_ah"),
			PackTotalWh:         floatField(calc, "pack_total_wh"),
			PackTotalKWh:        floatField(calc, "pack_total_kwh"),
		}
	}

	if est, ok := doc["range_estimate"].(map[string]any); ok {
		r.RangeEstimate = &RangeEstimate{
			UsableWh:            floatField(est, "usable_wh"),
			RuntimeHours:        floatField(est, "runtime_hours"),
			IdealRangeMiles:     floatField(est, "ideal_range_miles"),
			RealisticRangeMiles: floatField(est, "realistic_range_miles"),
		}
	}

	if issues, ok := doc["issues"].([]any); ok {
		for _, raw := range issues {
			id, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			r.Issues = append(r.Issues, Issue{
				Field:    stringField(id, "field", ""),
				Problem:  stringField(id, "problem", ""),
				Severity: stringField(id, "severity", "info"),
			})
		}
	}

	if conf, ok := doc["confidence"].(map[string]any); ok {
		r.Confidence = Confidence{
			Overall: coerceConfidence(stringField(conf, "overall", "")),
			Specs:   coerceConfidence(stringField(conf, "specs", "")),
			Math:    coerceConfidence(stringField(conf, "math", "")),
			Range:   coerceConfidence(stringField(conf, "range", "")),
		}
	}

	return r
}

func stringField(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return fallback
}

func floatField(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

func intField(m map[string]any, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}
