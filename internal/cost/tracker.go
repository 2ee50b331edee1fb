// Package cost tracks per-session and global LLM spend and gates
// escalation to external models behind soft and hard caps.
package cost

import (
	"fmt"
	"sync"
	"time"
)

// Reason values returned by CanProceed.
const (
	ReasonOK              = "ok"
	ReasonSoftCapWarning  = "soft_cap_warning"
	ReasonHardCapExceeded = "hard_cap_exceeded"
	ReasonManualOverride  = "manual_override"
)

// capEpsilon absorbs float rounding in cap comparisons, so a cost of
// exactly 0.08 reaches the soft cap of a 0.10 limit at fraction 0.8.
const capEpsilon = 1e-9

// Record is one append-only cost entry for a single LLM call.
type Record struct {
	QueryID      string    `json:"query_id"`
	SessionID    string    `json:"session_id"`
	ModelID      string    `json:"model_id"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost"`
	Timestamp    time.Time `json:"timestamp"`
}

// Limit is the cap configuration applied to a session (or globally).
type Limit struct {
	TotalLimit      float64 // USD
	SoftCapFraction float64 // in [0,1)
	ManualOverride  bool    // allow critical queries past the hard cap
}

// Journal receives every tracked record, e.g. for sqlite persistence.
// Append must not block for long; errors are the journal's problem.
type Journal interface {
	Append(r Record) error
}

// CapError indicates a denied external call. It is data, not a panic:
// the executor converts it into a structured verification error.
type CapError struct {
	SessionID string
	Projected float64
	Limit     float64
}

func (e *CapError) Error() string {
	return fmt.Sprintf("hard cap exceeded for session %s: projected $%.4f >= limit $%.2f", e.SessionID, e.Projected, e.Limit)
}

// IsCapError checks if an error is a CapError.
func IsCapError(err error) bool {
	_, ok := err.(*CapError)
	return ok
}

// Tracker accumulates cost records. Track and CanProceed share one mutex
// so concurrent step execution observes a consistent projection.
type Tracker struct {
	mu           sync.Mutex
	limit        Limit
	sessionCosts map[string]float64
	records      []Record
	total        float64
	journal      Journal
}

// NewTracker creates a tracker with the given limit configuration.
func NewTracker(totalLimit, softCapFraction float64) *Tracker {
	return &Tracker{
		limit: Limit{
			TotalLimit:      totalLimit,
			SoftCapFraction: softCapFraction,
		},
		sessionCosts: make(map[string]float64),
	}
}

// SetJournal attaches a persistence sink for tracked records.
func (t *Tracker) SetJournal(j Journal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.journal = j
}

// CalculateCost computes USD cost from token counts and per-1k prices.
func CalculateCost(inputTokens, outputTokens int, pricePer1kInput, pricePer1kOutput float64) float64 {
	return float64(inputTokens)/1000.0*pricePer1kInput + float64(outputTokens)/1000.0*pricePer1kOutput
}

// Track appends a record and updates the session and global totals.
func (t *Tracker) Track(r Record) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	t.records = append(t.records, r)
	t.total += r.Cost
	t.sessionCosts[r.SessionID] += r.Cost
	journal := t.journal
	t.mu.Unlock()

	if journal != nil {
		if err := journal.Append(r); err != nil {
			// The in-memory ledger is authoritative; persistence is best effort.
			logf("cost journal append failed: %v", err)
		}
	}
}

// SessionCost returns the accumulated cost for one session.
func (t *Tracker) SessionCost(sessionID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionCosts[sessionID]
}

// TotalCost returns accumulated cost across all sessions.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// SoftCapReached reports whether the session (or the global total when
// sessionID is empty) has reached the soft threshold.
func (t *Tracker) SoftCapReached(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.costLocked(sessionID) >= t.limit.TotalLimit*t.limit.SoftCapFraction-capEpsilon
}

// HardCapReached reports whether the session (or the global total when
// sessionID is empty) has reached the hard limit.
func (t *Tracker) HardCapReached(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.costLocked(sessionID) >= t.limit.TotalLimit-capEpsilon
}

func (t *Tracker) costLocked(sessionID string) float64 {
	if sessionID == "" {
		return t.total
	}
	return t.sessionCosts[sessionID]
}

// CanProceed decides whether an external call of the estimated cost may
// run. Projection = current session cost + estimate. Hard cap denies
// unless the query is critical and manual override is enabled; soft cap
// allows with a warning reason.
func (t *Tracker) CanProceed(sessionID string, estimatedUSD float64, critical bool) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	projected := t.sessionCosts[sessionID] + estimatedUSD

	if projected >= t.limit.TotalLimit-capEpsilon {
		if critical && t.limit.ManualOverride {
			logf("manual override: allowing critical call despite hard cap ($%.4f >= $%.2f)", projected, t.limit.TotalLimit)
			return true, ReasonManualOverride
		}
		return false, ReasonHardCapExceeded
	}

	if projected >= t.limit.TotalLimit*t.limit.SoftCapFraction-capEpsilon {
		return true, ReasonSoftCapWarning
	}

	return true, ReasonOK
}

// EnableManualOverride toggles the critical-query escape hatch.
func (t *Tracker) EnableManualOverride(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limit.ManualOverride = enabled
}

// RemainingBudget returns USD left before the hard cap.
func (t *Tracker) RemainingBudget(sessionID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	remaining := t.limit.TotalLimit - t.costLocked(sessionID)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Summary returns cost statistics for a session, or globally when
// sessionID is empty.
func (t *Tracker) Summary(sessionID string) map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	var count int
	if sessionID == "" {
		count = len(t.records)
	} else {
		for _, r := range t.records {
			if r.SessionID == sessionID {
				count++
			}
		}
	}

	current := t.costLocked(sessionID)
	remaining := t.limit.TotalLimit - current
	if remaining < 0 {
		remaining = 0
	}

	return map[string]any{
		"total_cost":              current,
		"query_count":             count,
		"limit":                   t.limit.TotalLimit,
		"remaining":               remaining,
		"soft_cap_reached":        current >= t.limit.TotalLimit*t.limit.SoftCapFraction-capEpsilon,
		"hard_cap_reached":        current >= t.limit.TotalLimit-capEpsilon,
		"manual_override_enabled": t.limit.ManualOverride,
	}
}
