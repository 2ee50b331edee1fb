// Package specialist routes verification work to external models and
// parses their structured output.
package specialist

// ConfidenceLevel grades how much a specialist trusts a field.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// TrustLevel grades a cited source.
type TrustLevel string

const (
	TrustLow    TrustLevel = "low"
	TrustMedium TrustLevel = "medium"
	TrustHigh   TrustLevel = "high"
)

// Source is a citation backing verified specs.
type Source struct {
	Label      string     `json:"label"`
	URL        string     `json:"url"`
	Type       string     `json:"type"` // datasheet | distributor | third_party_test | official | other
	TrustLevel TrustLevel `json:"trust_level"`
}

// VerifiedSpecs holds specialist-verified cell specifications.
type VerifiedSpecs struct {
	CellType               string             `json:"cell_type"`
	NominalVoltageV        float64            `json:"nominal_voltage_v"`
	NominalCapacityAh      float64            `json:"nominal_capacity_ah"`
	AllowedCapacityRangeAh map[string]float64 `json:"allowed_capacity_range_ah"`
	Sources                []Source           `json:"sources"`
}

// PackCalculation holds verified battery-pack math.
type PackCalculation struct {
	SeriesCells         int     `json:"series_cells"`
	ParallelCells       int     `json:"parallel_cells"`
	PackNominalVoltageV float64 `json:"pack_nominal_voltage_v"`
	PackTotalAh         float64 `json:"pack_total_ah"`
	PackTotalWh         float64 `json:"pack_total_wh"`
	PackTotalKWh        float64 `json:"pack_total_kwh"`
}

// RangeEstimate holds a verified vehicle range estimation.
type RangeEstimate struct {
	UsableWh            float64 `json:"usable_wh"`
	RuntimeHours        float64 `json:"runtime_hours"`
	IdealRangeMiles     float64 `json:"ideal_range_miles"`
	RealisticRangeMiles float64 `json:"realistic_range_miles"`
}

// Issue is a problem the specialist flagged.
type Issue struct {
	Field    string `json:"field"`
	Problem  string `json:"problem"`
	Severity string `json:"severity"` // info | warning | error
}

// Confidence is the per-aspect confidence block.
type Confidence struct {
	Overall ConfidenceLevel `json:"overall"`
	Specs   ConfidenceLevel `json:"specs"`
	Math    ConfidenceLevel `json:"math"`
	Range   ConfidenceLevel `json:"range"`
}

// VerificationError is the structured failure payload. Error kinds:
// no_connector, cost_blocked, parse_error, exception,
// verification_failed (model-declared).
type VerificationError struct {
	Type            string `json:"type"`
	Message         string `json:"message"`
	SuggestedAction string `json:"suggested_action"`
}

// Result is the outcome of one verification: either a typed payload or
// an error object, never both.
type Result struct {
	VerifiedSpecs   *VerifiedSpecs     `json:"verified_specs,omitempty"`
	PackCalculation *PackCalculation   `json:"pack_calculation,omitempty"`
	RangeEstimate   *RangeEstimate     `json:"range_estimate,omitempty"`
	Issues          []Issue            `json:"issues"`
	Confidence      Confidence         `json:"confidence"`
	Err             *VerificationError `json:"error,omitempty"`
}

// Failed reports whether the result carries an error payload.
func (r *Result) Failed() bool { return r.Err != nil }

// ToMap renders the result in the wire shape consumed by the presenter.
func (r *Result) ToMap() map[string]any {
	if r.Err != nil {
		return map[string]any{
			"error": map[string]any{
				"type":             r.Err.Type,
				"message":          r.Err.Message,
				"suggested_action": r.Err.SuggestedAction,
			},
		}
	}

	issues := make([]any, 0, len(r.Issues))
	for _, i := range r.Issues {
		issues = append(issues, map[string]any{
			"field":    i.Field,
			"problem":  i.Problem,
			"severity": i.Severity,
		})
	}

	out := map[string]any{
		"issues": issues,
		"confidence": map[string]any{
			"overall": string(r.Confidence.Overall),
			"specs":   string(r.Confidence.Specs),
			"math":    string(r.Confidence.Math),
			"range":   string(r.Confidence.Range),
		},
	}

	if r.VerifiedSpecs != nil {
		sources := make([]any, 0, len(r.VerifiedSpecs.Sources))
		for _, s := range r.VerifiedSpecs.Sources {
			sources = append(sources, map[string]any{
				"label":       s.Label,
				"url":         s.URL,
				"type":        s.Type,
				"trust_level": string(s.TrustLevel),
			})
		}
		out["verified_specs"] = map[string]any{
			"cell_type":                 r.VerifiedSpecs.CellType,
			"nominal_voltage_v":         r.VerifiedSpecs.NominalVoltageV,
			"nominal_capacity_ah":       r.VerifiedSpecs.NominalCapacityAh,
			"allowed_capacity_range_ah": r.VerifiedSpecs.AllowedCapacityRangeAh,
			"sources":                   sources,
		}
	}

	if r.PackCalculation != nil {
		out["pack_calculation"] = map[string]any{
			"series_cells":           r.PackCalculation.SeriesCells,
			"parallel_cells":         r.PackCalculation.ParallelCells,
			"pack_nominal_voltage_v": r.PackCalculation.PackNominalVoltageV,
			"pack_total_ah":          r.PackCalculation.PackTotalAh,
			"pack_total_wh":          r.PackCalculation.PackTotalWh,
			"pack_total_kwh":         r.PackCalculation.PackTotalKWh,
		}
	}

	if r.RangeEstimate != nil {
		out["range_estimate"] = map[string]any{
			"usable_wh":             r.RangeEstimate.UsableWh,
			"runtime_hours":         r.RangeEstimate.RuntimeHours,
			"ideal_range_miles":     r.RangeEstimate.IdealRangeMiles,
			"realistic_range_miles": r.RangeEstimate.RealisticRangeMiles,
		}
	}

	return out
}

func errorResult(errType, message, action string) *Result {
	return &Result{
		Confidence: defaultConfidence(),
		Err: &VerificationError{
			Type:            errType,
			Message:         message,
			SuggestedAction: action,
		},
	}
}

func defaultConfidence() Confidence {
	return Confidence{
		Overall: ConfidenceMedium,
		Specs:   ConfidenceMedium,
		Math:    ConfidenceMedium,
		Range:   ConfidenceMedium,
	}
}

func coerceConfidence(s string) ConfidenceLevel {
	switch ConfidenceLevel(s) {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return ConfidenceLevel(s)
	default:
		return ConfidenceMedium
	}
}

func coerceTrust(s string) TrustLevel {
	switch TrustLevel(s) {
	case TrustLow, TrustMedium, TrustHigh:
		return TrustLevel(s)
	default:
		return TrustMedium
	}
}
