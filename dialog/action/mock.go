package action

import (
	"context"
	"sync"
)

// MockHandler is a deterministic test implementation of dialog.ActionHandler.
// It returns a configured sequence of responses (repeating the last one
// once exhausted) and records every call for assertions.
type MockHandler struct {
	// HandlerName is the identifier returned by Name().
	HandlerName string

	// Responses is the sequence of outputs returned in order; once
	// exhausted, the last response repeats.
	Responses []map[string]any

	// Err, if set, is returned instead of a response.
	Err error

	// Calls records every invocation's input, in order.
	Calls []map[string]any

	mu        sync.Mutex
	callIndex int
}

// Name implements dialog.ActionHandler.
func (m *MockHandler) Name() string { return m.HandlerName }

// Call implements dialog.ActionHandler.
func (m *MockHandler) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, input)

	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return map[string]any{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears call history and rewinds the response index, for reuse
// across test cases.
func (m *MockHandler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of times Call has been invoked.
func (m *MockHandler) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
