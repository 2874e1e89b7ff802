// Package nlu provides dialog.NLUProvider adapters over three LLM chat
// backends (Anthropic, OpenAI, Google) plus a deterministic mock for
// tests. Each adapter offers the model a single "emit_commands" tool
// whose schema covers dialog.Command's fields except seed_slots, so
// Understand can translate
// the tool call's arguments straight into structured commands without a
// free-text parsing step.
package nlu

import "context"

// ChatModel is the common shape across LLM chat providers: send a
// conversation plus optional tool specs, get back text and/or tool
// calls, so Anthropic/OpenAI/Google plug in behind one Adapter.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn of an LLM conversation.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes one function the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is what Chat returns: generated text and/or requested tool calls.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is one function-call request from the model.
type ToolCall struct {
	Name  string
	Input map[string]any
}
