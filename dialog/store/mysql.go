package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmorenobl/soni-sub010/dialog"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a durable, multi-process dialog.Store for production
// deployments sharding conversations by user key across workers.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection pool against dsn and ensures the
// dialogue_states table exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS dialogue_states (
			user_key VARCHAR(255) NOT NULL PRIMARY KEY,
			state JSON NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create dialogue_states table: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (m *MySQLStore) Close() error {
	return m.db.Close()
}

// Load reads the persisted state for userKey, if any.
func (m *MySQLStore) Load(ctx context.Context, userKey string) (dialog.DialogueState, bool, error) {
	var stateJSON []byte
	err := m.db.QueryRowContext(ctx, `SELECT state FROM dialogue_states WHERE user_key = ?`, userKey).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return dialog.DialogueState{}, false, nil
	}
	if err != nil {
		return dialog.DialogueState{}, false, fmt.Errorf("load state for %q: %w", userKey, err)
	}

	var state dialog.DialogueState
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return dialog.DialogueState{}, false, fmt.Errorf("unmarshal state for %q: %w", userKey, err)
	}
	return state, true, nil
}

// Save atomically upserts state for userKey within one statement.
func (m *MySQLStore) Save(ctx context.Context, userKey string, state dialog.DialogueState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state for %q: %w", userKey, err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO dialogue_states (user_key, state)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE
			state = VALUES(state)
	`, userKey, stateJSON)
	if err != nil {
		return fmt.Errorf("save state for %q: %w", userKey, err)
	}
	return nil
}
