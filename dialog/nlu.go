package dialog

import "context"

// NLUProvider is the dialogue-specific narrowing of a chat model: given a
// raw user message and the bounded context the scope manager assembled, it
// returns a structured NLUOutput. Declared here,
// rather than in a provider subpackage, so adapters can satisfy it
// structurally without importing this package.
type NLUProvider interface {
	Understand(ctx context.Context, userMessage string, nctx NLUContext) (NLUOutput, error)
}

// NLUContext is the bounded context handed to the NLU provider on every
// call.
type NLUContext struct {
	ActiveFlowName  string
	InScopeSlots    []ScopedSlot
	InScopeActions  []string
	RecentMessages  []Message
	Awaiting        Awaiting
	CurrentTime     string
}
