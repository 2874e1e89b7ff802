package dialog

import "time"

// FlowManager exposes the only blessed ways to mutate flow structure.
// Every operation returns a Delta rather than mutating state; the caller
// merges it via ApplyDelta.
type FlowManager struct {
	newInstanceID func() string
	now           func() time.Time
}

// NewFlowManager constructs a FlowManager. idGen generates a unique flow
// instance id per call; clock returns the current time. Both are
// injectable so tests can assert on exact ids/timestamps.
func NewFlowManager(idGen func() string, clock func() time.Time) *FlowManager {
	if clock == nil {
		clock = time.Now
	}
	return &FlowManager{newInstanceID: idGen, now: clock}
}

// PushFlow assigns a new unique instance id, pauses any currently active
// instance, appends a new active FlowContext, and seeds its slot heap
// entry with the provided inputs.
func (m *FlowManager) PushFlow(state DialogueState, flowName string, inputs map[string]any) Delta {
	stack := append([]FlowContext(nil), state.FlowStack...)
	if len(stack) > 0 && stack[len(stack)-1].State == LifecycleActive {
		now := m.now()
		stack[len(stack)-1].State = LifecyclePaused
		stack[len(stack)-1].PausedAt = &now
		stack[len(stack)-1].Context = "paused: another flow was started"
	}

	instanceID := m.newInstanceID()
	stack = append(stack, FlowContext{
		InstanceID: instanceID,
		FlowName:   flowName,
		State:      LifecycleActive,
		StartedAt:  m.now(),
	})

	d := Delta{FlowStack: stack, FlowStackSet: true}
	if len(inputs) > 0 {
		d.SlotHeap = map[string]map[string]any{instanceID: inputs}
	}
	return d
}

// PopResult is the terminal lifecycle result of PopFlow.
type PopResult string

const (
	PopCompleted PopResult = "completed"
	PopCancelled PopResult = "cancelled"
	PopError     PopResult = "error"
)

// PopFlow marks the top instance with the given terminal state, moves it
// (with its outputs) into the archive, and reactivates the instance below
// it, if any. The archive entry holds no copy of the instance's slots;
// they stay in SlotHeap under its instance id. Requires a non-empty stack.
func (m *FlowManager) PopFlow(state DialogueState, outputs map[string]any, result PopResult) (Delta, error) {
	if len(state.FlowStack) == 0 {
		return Delta{}, newContractError(KindNoActiveFlow, "pop_flow called with empty stack")
	}

	stack := append([]FlowContext(nil), state.FlowStack...)
	top := stack[len(stack)-1]
	stack = stack[:len(stack)-1]

	now := m.now()
	top.State = LifecycleState(result)
	top.CompletedAt = &now
	if outputs != nil {
		top.Outputs = outputs
	}

	if len(stack) > 0 {
		revived := stack[len(stack)-1]
		revived.State = LifecycleActive
		revived.PausedAt = nil
		stack[len(stack)-1] = revived
	}

	archive := append([]ArchiveEntry(nil), state.Archive...)
	archive = append(archive, ArchiveEntry{FlowContext: top})

	return Delta{
		FlowStack:    stack,
		FlowStackSet: true,
		Archive:      archive,
		ArchiveSet:   true,
	}, nil
}

// GetActive returns the top-of-stack active instance, or nil.
func (m *FlowManager) GetActive(state *DialogueState) *FlowContext {
	return state.ActiveFlow()
}

// GetSlot reads a slot value from the active instance's scope. Returns
// (nil, false) if there is no active flow or the slot is unset.
func (m *FlowManager) GetSlot(state *DialogueState, name string) (any, bool) {
	active := state.ActiveFlow()
	if active == nil {
		return nil, false
	}
	slots, ok := state.SlotHeap[active.InstanceID]
	if !ok {
		return nil, false
	}
	v, ok := slots[name]
	return v, ok
}

// SetSlot writes a value under the active instance's id. Fails with
// no_active_flow if the stack is empty.
func (m *FlowManager) SetSlot(state DialogueState, name string, value any) (Delta, error) {
	active := state.ActiveFlow()
	if active == nil {
		return Delta{}, newContractError(KindNoActiveFlow, "set_slot called with no active flow")
	}
	return Delta{SlotHeap: map[string]map[string]any{active.InstanceID: {name: value}}}, nil
}
