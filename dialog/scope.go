package dialog

// ScopeManager computes, for the active flow, which slots remain to be
// filled and which actions are plausible — both pure queries over state
// plus compiled definitions, with no I/O.
type ScopeManager struct {
	Flows map[string]*CompiledFlow
}

// NewScopeManager constructs a ScopeManager over the compiled flow set.
func NewScopeManager(flows map[string]*CompiledFlow) *ScopeManager {
	return &ScopeManager{Flows: flows}
}

// ScopedSlot is one entry of the in-scope slot listing consumed by the
// NLU context builder.
type ScopedSlot struct {
	Name     string
	Type     SlotType
	IsFilled bool
}

// InScopeSlots returns the active flow's declared slot set, each flagged
// with whether the active instance has already filled it. Returns nil if
// there is no active flow.
func (s *ScopeManager) InScopeSlots(state *DialogueState) []ScopedSlot {
	active := state.ActiveFlow()
	if active == nil {
		return nil
	}
	cf, ok := s.Flows[active.FlowName]
	if !ok {
		return nil
	}
	filled := state.SlotHeap[active.InstanceID]
	out := make([]ScopedSlot, 0, len(cf.Slots))
	for name, def := range cf.Slots {
		_, isFilled := filled[name]
		out = append(out, ScopedSlot{Name: name, Type: def.Type, IsFilled: isFilled})
	}
	return out
}

// conversationPatternActions are always plausible regardless of which
// flow (if any) is active — they let the user start a new flow, cancel
// the current one, ask for clarification, or request a human at any time.
var conversationPatternActions = []string{"start_flow", "cancel_flow", "clarify", "human_handoff"}

// InScopeActions returns the set of action names referenced by the active
// flow's steps, plus the conversation-pattern actions always available
//. Returns just the conversation
// patterns if there is no active flow.
func (s *ScopeManager) InScopeActions(state *DialogueState) []string {
	out := append([]string(nil), conversationPatternActions...)
	active := state.ActiveFlow()
	if active == nil {
		return out
	}
	cf, ok := s.Flows[active.FlowName]
	if !ok {
		return out
	}
	seen := make(map[string]bool, len(out))
	for _, a := range out {
		seen[a] = true
	}
	for _, step := range cf.Steps {
		if step.Def.Kind == StepAction && !seen[step.Def.Handler] {
			seen[step.Def.Handler] = true
			out = append(out, step.Def.Handler)
		}
	}
	return out
}
