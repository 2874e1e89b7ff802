package nlu

import (
	"context"
	"sync"

	"github.com/jmorenobl/soni-sub010/dialog"
)

// MockChatModel is a test implementation of ChatModel: a configurable
// response sequence plus call history, with no network calls.
type MockChatModel struct {
	Responses []ChatOut
	Err       error
	Calls     []MockChatCall

	mu        sync.Mutex
	callIndex int
}

// MockChatCall records one Chat invocation.
type MockChatCall struct {
	Messages []Message
	Tools    []ToolSpec
}

// Chat implements ChatModel.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockChatCall{Messages: messages, Tools: tools})

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears call history and rewinds the response index.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of Chat invocations so far.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockProvider implements dialog.NLUProvider directly, bypassing the tool
// call translation layer, for tests that want to assert on exact
// NLUOutput values keyed off the raw user message.
type MockProvider struct {
	mu       sync.Mutex
	Outputs  map[string]dialog.NLUOutput
	Default  dialog.NLUOutput
	Err      error
	Messages []string
}

// Understand implements dialog.NLUProvider, looking up a canned output by
// the exact user message text, falling back to Default.
func (p *MockProvider) Understand(ctx context.Context, userMessage string, _ dialog.NLUContext) (dialog.NLUOutput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, userMessage)

	if p.Err != nil {
		return dialog.NLUOutput{}, p.Err
	}
	if out, ok := p.Outputs[userMessage]; ok {
		return out, nil
	}
	return p.Default, nil
}
