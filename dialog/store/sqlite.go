package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jmorenobl/soni-sub010/dialog"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file durable dialog.Store, suitable for a single
// process needing cross-restart survivability without a database server.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path and
// ensures the dialogue_states table exists. path may be ":memory:" for a
// process-local, non-durable instance.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite supports one writer at a time

	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS dialogue_states (
			user_key TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create dialogue_states table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the persisted state for userKey, if any.
func (s *SQLiteStore) Load(ctx context.Context, userKey string) (dialog.DialogueState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stateJSON string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM dialogue_states WHERE user_key = ?`, userKey).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return dialog.DialogueState{}, false, nil
	}
	if err != nil {
		return dialog.DialogueState{}, false, fmt.Errorf("load state for %q: %w", userKey, err)
	}

	var state dialog.DialogueState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return dialog.DialogueState{}, false, fmt.Errorf("unmarshal state for %q: %w", userKey, err)
	}
	return state, true, nil
}

// Save atomically upserts state for userKey.
func (s *SQLiteStore) Save(ctx context.Context, userKey string, state dialog.DialogueState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state for %q: %w", userKey, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dialogue_states (user_key, state)
		VALUES (?, ?)
		ON CONFLICT(user_key) DO UPDATE SET
			state = excluded.state,
			updated_at = CURRENT_TIMESTAMP
	`, userKey, string(stateJSON))
	if err != nil {
		return fmt.Errorf("save state for %q: %w", userKey, err)
	}
	return nil
}
