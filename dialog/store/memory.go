// Package store provides checkpoint backends for the dialogue engine: an
// in-memory store for tests/dev, a SQLite store for durable single-process
// use, and a MySQL store for durable, cross-process deployments.
package store

import (
	"context"
	"sync"

	"github.com/jmorenobl/soni-sub010/dialog"
)

// MemStore is an in-memory dialog.Store keyed by user key. Data is lost
// on process exit; intended for tests and single-process development.
type MemStore struct {
	mu    sync.RWMutex
	states map[string]dialog.DialogueState
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{states: make(map[string]dialog.DialogueState)}
}

// Load returns the stored state for userKey, or (zero, false, nil) if the
// key has never been saved.
func (m *MemStore) Load(_ context.Context, userKey string) (dialog.DialogueState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[userKey]
	return state, ok, nil
}

// Save overwrites the stored state for userKey.
func (m *MemStore) Save(_ context.Context, userKey string, state dialog.DialogueState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userKey] = state
	return nil
}
