// Package dialog implements the dialogue orchestration core: a flow
// compiler, command layer, flow-stack orchestrator, checkpointed execution
// engine, and slot/scope manager for task-oriented conversations.
package dialog

import "time"

// LifecycleState is the set of states a FlowContext can be in.
type LifecycleState string

const (
	LifecycleActive    LifecycleState = "active"
	LifecyclePaused    LifecycleState = "paused"
	LifecycleCompleted LifecycleState = "completed"
	LifecycleCancelled LifecycleState = "cancelled"
	LifecycleError     LifecycleState = "error"
	LifecycleAbandoned LifecycleState = "abandoned"
)

// Message is one turn of conversation history (user or assistant).
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Awaiting describes what kind of input, if any, the conversation is
// suspended waiting for. The zero value (AwaitKind "") means not awaiting.
type AwaitKind string

const (
	AwaitNone    AwaitKind = ""
	AwaitCollect AwaitKind = "collect"
	AwaitConfirm AwaitKind = "confirm"
	AwaitInform  AwaitKind = "inform_ack"
)

// Awaiting carries the pending-task detail needed to synthesize a command
// from the next raw user message, plus the prompt
// text last shown so a Clarify command can re-emit it unchanged.
type Awaiting struct {
	Kind   AwaitKind `json:"kind"`
	Slot   string    `json:"slot,omitempty"` // populated when Kind == AwaitCollect
	Prompt string    `json:"prompt,omitempty"`
}

// CommandLogEntry records one executed (or skipped, or failed) command
// for audit, replay, and the command-log-completeness guarantee: every
// command a turn processes must appear here regardless of outcome.
type CommandLogEntry struct {
	Turn      int            `json:"turn"`
	Kind      CommandKind    `json:"kind"`
	Command   Command        `json:"command"`
	Result    string         `json:"result"` // "success" | "skipped" | "error"
	Reason    string         `json:"reason,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// ArchiveEntry is a terminated flow instance moved off the stack, retained
// for cross-flow data handoff.
type ArchiveEntry struct {
	FlowContext
}

// Metadata carries per-conversation bookkeeping that is not itself dialogue
// data: turn counter, last error seen, and pruning markers.
type Metadata struct {
	TurnCounter    int       `json:"turn_counter"`
	LastError      string    `json:"last_error,omitempty"`
	LastPrunedAt   time.Time `json:"last_pruned_at,omitempty"`
	SchemaVersion  int       `json:"schema_version"`
}

// CurrentSchemaVersion is the schema_version written by this build.
const CurrentSchemaVersion = 1

// FlowContext is one entry on the flow stack.
type FlowContext struct {
	InstanceID  string            `json:"instance_id"`
	FlowName    string            `json:"flow_name"`
	State       LifecycleState    `json:"state"`
	CurrentStep string            `json:"current_step,omitempty"`
	Outputs     map[string]any    `json:"outputs,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	PausedAt    *time.Time        `json:"paused_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Context     string            `json:"context,omitempty"`
}

// DialogueState is the per-conversation record persisted across turns.
// It is a plain record: every operation on it is a pure function
// producing a Delta, never an in-place mutation.
type DialogueState struct {
	UserKey     string                        `json:"user_key"`
	Messages    []Message                     `json:"messages"`
	FlowStack   []FlowContext                 `json:"flow_stack"`
	SlotHeap    map[string]map[string]any     `json:"slot_heap"` // flow instance id -> slot name -> value
	Archive     []ArchiveEntry                `json:"archive"`
	CommandLog  []CommandLogEntry             `json:"command_log"`
	LastNLU     *NLUOutput                    `json:"last_nlu,omitempty"`
	Awaiting    Awaiting                      `json:"awaiting"`
	Meta        Metadata                      `json:"meta"`
}

// NewDialogueState returns a freshly initialized state for a user key:
// empty stack, empty heap, counters at zero.
func NewDialogueState(userKey string) DialogueState {
	return DialogueState{
		UserKey:   userKey,
		Messages:  []Message{},
		FlowStack: []FlowContext{},
		SlotHeap:  map[string]map[string]any{},
		Archive:   []ArchiveEntry{},
		CommandLog: []CommandLogEntry{},
		Meta:      Metadata{SchemaVersion: CurrentSchemaVersion},
	}
}

// ActiveFlow returns the top-of-stack active instance, or nil if the stack
// is empty. It never returns a paused instance: the invariant is that the
// active instance, when one exists, is always the top.
func (s *DialogueState) ActiveFlow() *FlowContext {
	if len(s.FlowStack) == 0 {
		return nil
	}
	top := &s.FlowStack[len(s.FlowStack)-1]
	if top.State != LifecycleActive {
		return nil
	}
	return top
}

// CloneShallow returns a value copy of the state deep enough that mutating
// the copy's slices/maps never affects the original. ApplyDelta uses this
// to build the next state without touching the one it was given.
func (s DialogueState) CloneShallow() DialogueState {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	out.FlowStack = append([]FlowContext(nil), s.FlowStack...)
	out.Archive = append([]ArchiveEntry(nil), s.Archive...)
	out.CommandLog = append([]CommandLogEntry(nil), s.CommandLog...)
	out.SlotHeap = make(map[string]map[string]any, len(s.SlotHeap))
	for k, v := range s.SlotHeap {
		inner := make(map[string]any, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		out.SlotHeap[k] = inner
	}
	return out
}
