package emit

import "context"

// Emitter receives and processes observability events from turn
// processing.
//
// Implementations should be non-blocking and thread-safe: turns for
// different user keys run concurrently and each may emit independently.
type Emitter interface {
	// Emit sends an observability event to the configured backend. Emit
	// should not panic; errors should be logged internally.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation, preserving order.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until all buffered events are sent, or ctx expires.
	Flush(ctx context.Context) error
}
