package dialog

// CommandKind is the closed, versioned vocabulary of intents a command
// executor understands.
type CommandKind string

const (
	StartFlow          CommandKind = "start_flow"
	CancelFlow         CommandKind = "cancel_flow"
	SetSlot            CommandKind = "set_slot"
	CorrectSlot        CommandKind = "correct_slot"
	AffirmConfirmation CommandKind = "affirm_confirmation"
	DenyConfirmation   CommandKind = "deny_confirmation"
	Clarify            CommandKind = "clarify"
	HumanHandoff       CommandKind = "human_handoff"
)

// Command is one structured intent produced by an NLU provider and
// consumed by the command executor. Commands are pure data — handlers own
// all behavior.
type Command struct {
	Kind       CommandKind    `json:"kind"`
	FlowName   string         `json:"flow_name,omitempty"`
	SlotName   string         `json:"slot_name,omitempty"`
	Value      any            `json:"value,omitempty"`
	Topic      string         `json:"topic,omitempty"`
	SeedSlots  map[string]any `json:"seed_slots,omitempty"`
	Confidence float64        `json:"confidence"`
}

// NLUOutput is the result of one `understand` call.
type NLUOutput struct {
	Commands   []Command `json:"commands"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
}

// PendingTaskKind is the tagged variant of a pending task.
type PendingTaskKind string

const (
	PendingCollect PendingTaskKind = "collect"
	PendingConfirm PendingTaskKind = "confirm"
	PendingInform  PendingTaskKind = "inform"
)

// PendingTask is a structured signal emitted by a subgraph node requesting
// user interaction. Only Collect and Confirm, and Inform with WaitForAck,
// cause suspension.
type PendingTask struct {
	Kind       PendingTaskKind `json:"kind"`
	Slot       string          `json:"slot,omitempty"`
	Prompt     string          `json:"prompt,omitempty"`
	WaitForAck bool            `json:"wait_for_ack,omitempty"`
}

// RequiresInput reports whether this pending task must suspend the turn
// awaiting a user response. Only tasks that require input cause
// suspension.
func (p PendingTask) RequiresInput() bool {
	switch p.Kind {
	case PendingCollect, PendingConfirm:
		return true
	case PendingInform:
		return p.WaitForAck
	default:
		return false
	}
}

// Delta is an immutable record describing changes to apply to dialogue
// state; produced by handlers and flow-manager operations, merged by the
// orchestrator via ApplyDelta. A nil field means "no change to that part
// of state", with two exceptions: FlowStack and Archive replace their part
// only when FlowStackSet / ArchiveSet is true (a nil slice with the flag
// set empties it), and SlotHeap is merged as a sparse overlay keyed by
// flow instance id so that setting one instance's slot never touches
// another instance's slots.
type Delta struct {
	FlowStack  []FlowContext             `json:"flow_stack,omitempty"`
	FlowStackSet bool                    `json:"flow_stack_set,omitempty"`
	SlotHeap   map[string]map[string]any `json:"slot_heap,omitempty"`
	SlotHeapUnset map[string][]string   `json:"slot_heap_unset,omitempty"` // instance id -> slot names to remove
	Archive    []ArchiveEntry            `json:"archive,omitempty"`
	ArchiveSet bool                      `json:"archive_set,omitempty"`
	CommandLogAppend []CommandLogEntry   `json:"command_log_append,omitempty"`
	MessagesAppend   []Message           `json:"messages_append,omitempty"`
	Awaiting   *Awaiting                 `json:"awaiting,omitempty"`
	LastNLU    *NLUOutput                `json:"last_nlu,omitempty"`
	LastError  *string                   `json:"last_error,omitempty"`
	BumpTurn   bool                      `json:"bump_turn,omitempty"` // increments Meta.TurnCounter by one
}

// ApplyDelta merges a delta into a state, returning a new state. It never
// mutates its inputs: every touched slice/map is copied before assignment.
// This is the one place delta-merge logic lives, matching the discipline
// set out for push_flow/pop_flow/set_slot.
func ApplyDelta(state DialogueState, d Delta) DialogueState {
	out := state.CloneShallow()

	if d.FlowStackSet {
		out.FlowStack = append([]FlowContext(nil), d.FlowStack...)
	}
	if d.ArchiveSet {
		out.Archive = append([]ArchiveEntry(nil), d.Archive...)
	}
	for instanceID, slots := range d.SlotHeap {
		existing, ok := out.SlotHeap[instanceID]
		if !ok {
			existing = map[string]any{}
		} else {
			merged := make(map[string]any, len(existing))
			for k, v := range existing {
				merged[k] = v
			}
			existing = merged
		}
		for slotName, value := range slots {
			existing[slotName] = value
		}
		out.SlotHeap[instanceID] = existing
	}
	for instanceID, names := range d.SlotHeapUnset {
		existing, ok := out.SlotHeap[instanceID]
		if !ok {
			continue
		}
		merged := make(map[string]any, len(existing))
		for k, v := range existing {
			merged[k] = v
		}
		for _, n := range names {
			delete(merged, n)
		}
		out.SlotHeap[instanceID] = merged
	}
	if len(d.CommandLogAppend) > 0 {
		out.CommandLog = append(out.CommandLog, d.CommandLogAppend...)
	}
	if len(d.MessagesAppend) > 0 {
		out.Messages = append(out.Messages, d.MessagesAppend...)
	}
	if d.Awaiting != nil {
		out.Awaiting = *d.Awaiting
	}
	if d.LastNLU != nil {
		out.LastNLU = d.LastNLU
	}
	if d.LastError != nil {
		out.Meta.LastError = *d.LastError
	}
	if d.BumpTurn {
		out.Meta.TurnCounter++
	}
	return out
}

// MergeDelta combines two deltas produced within the same turn so later
// commands see the effect of earlier ones, per the command executor's
// "locally accumulated state view". `next` wins on any
// scalar field it sets; slice appends and slot overlays concatenate/merge.
func MergeDelta(base, next Delta) Delta {
	out := base
	if next.FlowStackSet {
		out.FlowStack = next.FlowStack
		out.FlowStackSet = true
	}
	if next.ArchiveSet {
		out.Archive = next.Archive
		out.ArchiveSet = true
	}
	if len(next.SlotHeap) > 0 {
		if out.SlotHeap == nil {
			out.SlotHeap = map[string]map[string]any{}
		}
		for instanceID, slots := range next.SlotHeap {
			existing, ok := out.SlotHeap[instanceID]
			if !ok {
				existing = map[string]any{}
			}
			merged := make(map[string]any, len(existing)+len(slots))
			for k, v := range existing {
				merged[k] = v
			}
			for k, v := range slots {
				merged[k] = v
			}
			out.SlotHeap[instanceID] = merged
		}
	}
	if len(next.SlotHeapUnset) > 0 {
		if out.SlotHeapUnset == nil {
			out.SlotHeapUnset = map[string][]string{}
		}
		for instanceID, names := range next.SlotHeapUnset {
			out.SlotHeapUnset[instanceID] = append(append([]string(nil), out.SlotHeapUnset[instanceID]...), names...)
		}
	}
	out.CommandLogAppend = append(append([]CommandLogEntry(nil), out.CommandLogAppend...), next.CommandLogAppend...)
	out.MessagesAppend = append(append([]Message(nil), out.MessagesAppend...), next.MessagesAppend...)
	if next.Awaiting != nil {
		out.Awaiting = next.Awaiting
	}
	if next.LastNLU != nil {
		out.LastNLU = next.LastNLU
	}
	if next.LastError != nil {
		out.LastError = next.LastError
	}
	if next.BumpTurn {
		out.BumpTurn = true
	}
	return out
}
