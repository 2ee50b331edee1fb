// Package memory persists episodic exchanges and the cost journal in a
// local sqlite database.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/EanHD/kai/internal/cost"
)

// Exchange is one remembered query/answer pair.
type Exchange struct {
	ID        string
	SessionID string
	Role      string // "user" or "assistant"
	Text      string
	CreatedAt time.Time
}

// Store provides vault and journal operations. Append-only: rows are
// never updated in place.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at dbPath.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	// WAL mode allows readers alongside the single writer
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite tolerates one writer; keep the pool at a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS exchanges (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, created_at);

CREATE TABLE IF NOT EXISTS cost_records (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	query_id      TEXT NOT NULL,
	session_id    TEXT NOT NULL,
	model_id      TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd      REAL NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cost_session ON cost_records(session_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Remember appends one exchange to the vault.
func (s *Store) Remember(ctx context.Context, sessionID, role, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, session_id, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, role, text, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store exchange: %w", err)
	}
	return nil
}

// Recall returns the most recent exchanges for a session, oldest
// first, capped at limit.
func (s *Store) Recall(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, text, created_at
		 FROM exchanges WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Role, &e.Text, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Append implements cost.Journal.
func (s *Store) Append(r cost.Record) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO cost_records (query_id, session_id, model_id, input_tokens, output_tokens, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.QueryID, r.SessionID, r.ModelID, r.InputTokens, r.OutputTokens, r.Cost, ts.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to journal cost record: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
