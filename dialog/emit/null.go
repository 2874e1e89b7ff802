package emit

import "context"

// NullEmitter implements Emitter by discarding all events. Safe for
// concurrent use and has zero overhead — the right default for tests and
// for deployments where event capture is unwanted.
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (n *NullEmitter) Emit(Event) {}

func (n *NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

func (n *NullEmitter) Flush(context.Context) error { return nil }
