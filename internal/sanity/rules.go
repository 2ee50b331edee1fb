package sanity

import "regexp"

// DefaultRules is the built-in plausibility table for the battery/EV
// domain. Kept as data so deployments can extend or replace it without
// touching the checker.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "21700_cell_capacity",
			Trigger:   regexp.MustCompile(`21700`),
			Extractor: regexp.MustCompile(`(\d+(?:\.\d+)?)\s*ah\b`),
			Min:       2.5,
			Max:       6.0,
			Hard:      true,
			Message:   "Unrealistic 21700 cell capacity: %gAh (realistic range: %g-%gAh). Highest production cells are ~5.5Ah.",
		},
		{
			Name:      "18650_cell_capacity",
			Trigger:   regexp.MustCompile(`18650`),
			Extractor: regexp.MustCompile(`(\d+(?:\.\d+)?)\s*ah\b`),
			Min:       1.5,
			Max:       3.6,
			Hard:      true,
			Message:   "Unrealistic 18650 cell capacity: %gAh (realistic range: %g-%gAh)",
		},
		{
			Name:      "21700_cell_capacity_mah",
			Trigger:   regexp.MustCompile(`21700`),
			Extractor: regexp.MustCompile(`(\d+(?:,\d+)?)\s*mah\b`),
			Min:       2.5,
			Max:       6.0,
			Divisor:   1000,
			Hard:      true,
			Message:   "Unrealistic 21700 cell capacity: %gAh (realistic range: %g-%gAh)",
		},
		{
			Name:      "cell_voltage",
			Trigger:   regexp.MustCompile(`\bcells?\b`),
			Extractor: regexp.MustCompile(`(\d+(?:\.\d+)?)\s*v\b`),
			Min:       2.5,
			Max:       4.5,
			Message:   "Implausible lithium cell voltage: %gV (expected %g-%gV)",
		},
		{
			Name:      "ebike_range",
			Trigger:   regexp.MustCompile(`e-?bike|electric bike`),
			Extractor: regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:miles?|mi\b)`),
			Min:       10,
			Max:       100,
			Hard:      true,
			Message:   "Unrealistic e-bike range: %g miles (typical range: %g-%g miles). Double-check battery capacity and motor power.",
		},
		{
			Name:      "escooter_range",
			Trigger:   regexp.MustCompile(`e-?scooter|scooter`),
			Extractor: regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:miles?|mi\b)`),
			Min:       5,
			Max:       60,
			Hard:      true,
			Message:   "Unrealistic e-scooter range: %g miles (typical range: %g-%g miles)",
		},
		{
			// No trigger: any Wh figure in the response is checked.
			Name:      "battery_wh",
			Extractor: regexp.MustCompile(`(\d+(?:,\d+)?(?:\.\d+)?)\s*wh\b`),
			Min:       100,
			Max:       10000,
			Message:   "Unusually sized battery pack: %gWh. Verify the calculation (typical consumer range: %g-%gWh)",
		},
		{
			Name:      "motor_watts",
			Trigger:   regexp.MustCompile(`motor`),
			Extractor: regexp.MustCompile(`(\d+(?:,\d+)?)\s*(?:watts|w)\b`),
			Min:       100,
			Max:       10000,
			Message:   "Implausible motor power: %gW (consumer motors: %g-%gW)",
		},
	}
}
