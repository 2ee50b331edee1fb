package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/EanHD/kai/internal/cost"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRememberRecall(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Remember(ctx, "s1", "user", "what is a 21700 cell?"); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if err := s.Remember(ctx, "s1", "assistant", "a cylindrical li-ion cell, 21mm x 70mm"); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if err := s.Remember(ctx, "other", "user", "unrelated"); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}

	got, err := s.Recall(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d exchanges, want 2", len(got))
	}
	if got[0].Role != "user" || got[1].Role != "assistant" {
		t.Errorf("order wrong: %+v", got)
	}
}

func TestRecallLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Remember(ctx, "s1", "user", "turn"); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recall(ctx, "s1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("got %d exchanges, want 3", len(got))
	}
}

func TestCostJournal(t *testing.T) {
	s := openTestStore(t)

	var j cost.Journal = s
	if err := j.Append(cost.Record{QueryID: "q1", SessionID: "s1", ModelID: "m", InputTokens: 100, OutputTokens: 50, Cost: 0.01}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cost_records`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("journal rows = %d, want 1", count)
	}
}
