package cost

import (
	"math"
	"sync"
	"testing"
)

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name                 string
		inTokens, outTokens  int
		priceIn, priceOut    float64
		want                 float64
	}{
		{"zero tokens", 0, 0, 0.003, 0.015, 0},
		{"input only", 1000, 0, 0.003, 0.015, 0.003},
		{"mixed", 2000, 500, 0.003, 0.015, 0.0135},
		{"free local model", 5000, 5000, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCost(tt.inTokens, tt.outTokens, tt.priceIn, tt.priceOut)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalculateCost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrackUpdatesTotals(t *testing.T) {
	tr := NewTracker(1.0, 0.8)

	tr.Track(Record{QueryID: "q1", SessionID: "s1", ModelID: "m", Cost: 0.02})
	tr.Track(Record{QueryID: "q2", SessionID: "s1", ModelID: "m", Cost: 0.03})
	tr.Track(Record{QueryID: "q3", SessionID: "s2", ModelID: "m", Cost: 0.01})

	if got := tr.SessionCost("s1"); math.Abs(got-0.05) > 1e-9 {
		t.Errorf("SessionCost(s1) = %v, want 0.05", got)
	}
	if got := tr.TotalCost(); math.Abs(got-0.06) > 1e-9 {
		t.Errorf("TotalCost() = %v, want 0.06", got)
	}
}

func TestCapThresholds(t *testing.T) {
	tr := NewTracker(0.10, 0.8)

	if tr.SoftCapReached("s") || tr.HardCapReached("s") {
		t.Fatal("caps reached on fresh tracker")
	}

	tr.Track(Record{SessionID: "s", Cost: 0.08})
	if !tr.SoftCapReached("s") {
		t.Error("soft cap should be reached at 0.08 of 0.10")
	}
	if tr.HardCapReached("s") {
		t.Error("hard cap should not be reached at 0.08")
	}

	tr.Track(Record{SessionID: "s", Cost: 0.02})
	if !tr.HardCapReached("s") {
		t.Error("hard cap should be reached at 0.10")
	}

	// P4: hard cap is monotonic until reset; further spend cannot clear it.
	tr.Track(Record{SessionID: "s", Cost: 0.01})
	if !tr.HardCapReached("s") {
		t.Error("hard cap must stay reached")
	}
}

func TestCanProceed(t *testing.T) {
	tests := []struct {
		name      string
		spent     float64
		estimate  float64
		critical  bool
		override  bool
		wantAllow bool
		wantWhy   string
	}{
		{"well under", 0.01, 0.01, false, false, true, ReasonOK},
		{"projected into soft cap", 0.07, 0.02, false, false, true, ReasonSoftCapWarning},
		{"projected into hard cap", 0.09, 0.02, false, false, false, ReasonHardCapExceeded},
		{"critical without override", 0.09, 0.02, true, false, false, ReasonHardCapExceeded},
		{"critical with override", 0.09, 0.02, true, true, true, ReasonManualOverride},
		{"non-critical with override", 0.09, 0.02, false, true, false, ReasonHardCapExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(0.10, 0.8)
			tr.EnableManualOverride(tt.override)
			if tt.spent > 0 {
				tr.Track(Record{SessionID: "s", Cost: tt.spent})
			}

			allow, why := tr.CanProceed("s", tt.estimate, tt.critical)
			if allow != tt.wantAllow || why != tt.wantWhy {
				t.Errorf("CanProceed() = (%v, %q), want (%v, %q)", allow, why, tt.wantAllow, tt.wantWhy)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	tr := NewTracker(1.0, 0.8)
	tr.Track(Record{QueryID: "q1", SessionID: "s1", Cost: 0.25})
	tr.Track(Record{QueryID: "q2", SessionID: "s2", Cost: 0.10})

	s := tr.Summary("s1")
	if s["query_count"].(int) != 1 {
		t.Errorf("query_count = %v, want 1", s["query_count"])
	}
	if got := s["remaining"].(float64); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("remaining = %v, want 0.75", got)
	}

	global := tr.Summary("")
	if global["query_count"].(int) != 2 {
		t.Errorf("global query_count = %v, want 2", global["query_count"])
	}
}

type recordingJournal struct {
	mu      sync.Mutex
	records []Record
}

func (j *recordingJournal) Append(r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, r)
	return nil
}

func TestTrackConcurrent(t *testing.T) {
	tr := NewTracker(1000, 0.8)
	j := &recordingJournal{}
	tr.SetJournal(j)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Track(Record{SessionID: "s", Cost: 0.01})
			tr.CanProceed("s", 0.01, false)
		}()
	}
	wg.Wait()

	if got := tr.SessionCost("s"); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("SessionCost = %v, want 0.5", got)
	}
	if len(j.records) != 50 {
		t.Errorf("journal got %d records, want 50", len(j.records))
	}
}
