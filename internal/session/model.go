// Package session models a user session: its identity, cost limit and
// recent conversation context.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/EanHD/kai/internal/llm"
)

// Session is the minimal contract the orchestrator requires: an id and
// a cost limit. History rides along so the analyzer can see recent
// turns.
type Session struct {
	ID        string        `json:"id"`
	CostLimit float64       `json:"cost_limit"`
	Title     string        `json:"title,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	History   []llm.Message `json:"history"`
}

// Meta is a lightweight representation for listings.
type Meta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a fresh session with the given cost limit.
func New(costLimit float64) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		CostLimit: costLimit,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append records a conversation turn and bumps UpdatedAt.
func (s *Session) Append(role llm.MessageRole, content string) {
	s.History = append(s.History, llm.Message{Role: role, Content: content})
	s.UpdatedAt = time.Now().UTC()
}

// RecentContext returns up to n of the latest turns for prompt
// injection.
func (s *Session) RecentContext(n int) []llm.Message {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}
