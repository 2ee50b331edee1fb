// Package sanity runs fast, stateless plausibility checks over
// accumulated response text before it reaches the user.
package sanity

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// Severity of a sanity result.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Result of one check pass.
type Result struct {
	Suspicious bool     `json:"suspicious"`
	Issues     []string `json:"issues"`
	Severity   Severity `json:"severity"`
}

// Rule is one data-driven plausibility rule: when the trigger matches
// the query or response, every value the extractor finds in the response
// is tested against [Min, Max]. Out-of-range values emit an issue built
// from the message template (args: value, min, max).
type Rule struct {
	Name      string
	Trigger   *regexp.Regexp // fires the rule; tested against query and response
	Extractor *regexp.Regexp // first capture group must be the numeric value
	Min       float64
	Max       float64
	Hard      bool   // any hard rule firing makes the whole result high severity
	Message   string // fmt template with three %v/%g slots: value, min, max
	// Divisor rescales the extracted value before the range test
	// (e.g. 1000 to read mAh as Ah). Zero means no rescale.
	Divisor float64
}

// Checker evaluates a rule table. A checker with no rules is valid and
// never flags anything.
type Checker struct {
	rules []Rule
}

// NewChecker creates a checker over the given rule table.
func NewChecker(rules []Rule) *Checker {
	return &Checker{rules: rules}
}

// NewDefaultChecker creates a checker with the built-in battery domain
// rules.
func NewDefaultChecker() *Checker {
	return NewChecker(DefaultRules())
}

// Check scans responseText for implausible values in the context of the
// query. severity=none iff no issues fired; high iff any hard rule fired.
func (c *Checker) Check(responseText, queryText string) Result {
	var issues []string
	hardFired := false

	lowerResponse := strings.ToLower(responseText)
	lowerQuery := strings.ToLower(queryText)

	for _, rule := range c.rules {
		if rule.Trigger != nil && !rule.Trigger.MatchString(lowerQuery) && !rule.Trigger.MatchString(lowerResponse) {
			continue
		}

		for _, m := range rule.Extractor.FindAllStringSubmatch(lowerResponse, -1) {
			raw := strings.ReplaceAll(m[1], ",", "")
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			if rule.Divisor > 0 {
				value /= rule.Divisor
			}
			if value < rule.Min || value > rule.Max {
				issues = append(issues, fmt.Sprintf(rule.Message, value, rule.Min, rule.Max))
				if rule.Hard {
					hardFired = true
				}
				log.Printf("[sanity] rule %s fired: value %g outside [%g, %g]", rule.Name, value, rule.Min, rule.Max)
			}
		}
	}

	severity := SeverityNone
	if len(issues) > 0 {
		severity = SeverityMedium
		if hardFired {
			severity = SeverityHigh
		}
	}

	return Result{
		Suspicious: len(issues) > 0,
		Issues:     issues,
		Severity:   severity,
	}
}

// ShouldEscalate reports whether the result warrants routing to a
// stronger specialist model.
func ShouldEscalate(r Result) bool {
	return r.Suspicious && r.Severity == SeverityHigh
}

// ToMap renders the result as the wire shape passed to specialists.
func (r Result) ToMap() map[string]any {
	issues := make([]any, 0, len(r.Issues))
	for _, i := range r.Issues {
		issues = append(issues, i)
	}
	return map[string]any{
		"suspicious": r.Suspicious,
		"issues":     issues,
		"severity":   string(r.Severity),
	}
}
