package dialog

import (
	"sort"
	"testing"
)

func scopeTestFlows() map[string]*CompiledFlow {
	return map[string]*CompiledFlow{
		"book_flight": {
			Name: "book_flight",
			Slots: map[string]SlotDef{
				"origin":      {Name: "origin", Type: SlotString},
				"destination": {Name: "destination", Type: SlotString},
			},
			Steps: map[string]*CompiledStep{
				"search": {Def: StepDef{ID: "search", Kind: StepAction, Handler: "search_flights"}},
			},
			InitialStep: "collect_origin",
		},
	}
}

func TestInScopeSlotsReflectsFilledState(t *testing.T) {
	sm := NewScopeManager(scopeTestFlows())
	fm := NewFlowManager(sequentialIDs("i1"), nil)
	state := NewDialogueState("u1")
	state = ApplyDelta(state, fm.PushFlow(state, "book_flight", map[string]any{"origin": "NYC"}))

	slots := sm.InScopeSlots(&state)
	byName := map[string]ScopedSlot{}
	for _, s := range slots {
		byName[s.Name] = s
	}
	if !byName["origin"].IsFilled {
		t.Fatalf("expected origin to be filled")
	}
	if byName["destination"].IsFilled {
		t.Fatalf("expected destination to be unfilled")
	}
}

func TestInScopeSlotsNilWithoutActiveFlow(t *testing.T) {
	sm := NewScopeManager(scopeTestFlows())
	state := NewDialogueState("u1")
	if slots := sm.InScopeSlots(&state); slots != nil {
		t.Fatalf("expected nil in-scope slots with no active flow, got %+v", slots)
	}
}

func TestInScopeActionsIncludesConversationPatternsAndFlowActions(t *testing.T) {
	sm := NewScopeManager(scopeTestFlows())
	fm := NewFlowManager(sequentialIDs("i1"), nil)
	state := NewDialogueState("u1")
	state = ApplyDelta(state, fm.PushFlow(state, "book_flight", nil))

	actions := sm.InScopeActions(&state)
	sort.Strings(actions)
	want := []string{"cancel_flow", "clarify", "human_handoff", "search_flights", "start_flow"}
	sort.Strings(want)
	if len(actions) != len(want) {
		t.Fatalf("InScopeActions() = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("InScopeActions() = %v, want %v", actions, want)
		}
	}
}

func TestInScopeActionsWithoutActiveFlowIsJustConversationPatterns(t *testing.T) {
	sm := NewScopeManager(scopeTestFlows())
	state := NewDialogueState("u1")
	actions := sm.InScopeActions(&state)
	if len(actions) != 4 {
		t.Fatalf("expected only the four conversation-pattern actions, got %v", actions)
	}
}
