package dialog

import "testing"

func boolValidator(value any) (any, bool) {
	s, ok := value.(string)
	if !ok {
		return nil, false
	}
	return s, len(s) > 0
}

func testDeps() (*HandlerDeps, map[string]*CompiledFlow) {
	flows := map[string]*CompiledFlow{
		"book_flight": {
			Name: "book_flight",
			Slots: map[string]SlotDef{
				"origin":      {Name: "origin", Type: SlotString, Validator: "nonempty"},
				"destination": {Name: "destination", Type: SlotString},
			},
			Steps: map[string]*CompiledStep{
				"collect_origin":      {Def: StepDef{ID: "collect_origin", Kind: StepCollect, Slot: "origin", Next: "collect_destination"}},
				"collect_destination": {Def: StepDef{ID: "collect_destination", Kind: StepCollect, Slot: "destination", Next: "confirm"}},
				"confirm":             {Def: StepDef{ID: "confirm", Kind: StepConfirm, Next: "done"}},
				"done":                {Def: StepDef{ID: "done", Kind: StepEnd}},
			},
			InitialStep: "collect_origin",
		},
	}
	fm := NewFlowManager(sequentialIDs("i1", "i2", "i3"), nil)
	deps := &HandlerDeps{
		Flows:      flows,
		FlowMgr:    fm,
		Validators: map[string]ValidatorFunc{"nonempty": boolValidator},
	}
	return deps, flows
}

func TestHandleStartFlowUnknownFlow(t *testing.T) {
	deps, _ := testDeps()
	state := NewDialogueState("u1")
	_, _, err := handleStartFlow(Command{Kind: StartFlow, FlowName: "nope"}, state, deps)
	if err == nil {
		t.Fatalf("expected an unknown_flow error")
	}
}

func TestHandleSetSlotValidationFailureReprompts(t *testing.T) {
	deps, _ := testDeps()
	state := NewDialogueState("u1")
	d := deps.FlowMgr.PushFlow(state, "book_flight", nil)
	state = ApplyDelta(state, d)

	delta, _, err := handleSetSlot(Command{Kind: SetSlot, SlotName: "origin", Value: ""}, state, deps)
	if err == nil {
		t.Fatalf("expected an invalid_slot_value error for an empty string")
	}
	if len(delta.MessagesAppend) == 0 {
		t.Fatalf("expected a reprompt message on validation failure")
	}
}

func TestHandleSetSlotAccepted(t *testing.T) {
	deps, _ := testDeps()
	state := NewDialogueState("u1")
	state = ApplyDelta(state, deps.FlowMgr.PushFlow(state, "book_flight", nil))

	delta, _, err := handleSetSlot(Command{Kind: SetSlot, SlotName: "origin", Value: "NYC"}, state, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state = ApplyDelta(state, delta)
	if v, _ := deps.FlowMgr.GetSlot(&state, "origin"); v != "NYC" {
		t.Fatalf("origin = %v, want NYC", v)
	}
}

func TestHandleCorrectSlotRewindsToCollectStep(t *testing.T) {
	deps, _ := testDeps()
	state := NewDialogueState("u1")
	state = ApplyDelta(state, deps.FlowMgr.PushFlow(state, "book_flight", nil))
	state = ApplyDelta(state, mustDelta(handleSetSlot(Command{Kind: SetSlot, SlotName: "origin", Value: "NYC"}, state, deps)))
	state = ApplyDelta(state, mustDelta(handleSetSlot(Command{Kind: SetSlot, SlotName: "destination", Value: "LAX"}, state, deps)))
	state.ActiveFlow().CurrentStep = "confirm"

	delta, extra, err := handleCorrectSlot(Command{Kind: CorrectSlot, SlotName: "origin", Value: "SFO"}, state, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extra["prior_value"] != "NYC" {
		t.Fatalf("prior_value = %v, want NYC", extra["prior_value"])
	}
	state = ApplyDelta(state, delta)
	if got := state.ActiveFlow().CurrentStep; got != "collect_origin" {
		t.Fatalf("CurrentStep = %q, want collect_origin (rewind)", got)
	}
}

func TestCommandExecutorUnknownCommandLoggedNotFatal(t *testing.T) {
	deps, _ := testDeps()
	ce := NewCommandExecutor(deps)
	state := NewDialogueState("u1")

	delta := ce.Execute([]Command{{Kind: "nonexistent_kind"}}, state, 1)
	if len(delta.CommandLogAppend) != 1 {
		t.Fatalf("expected one command log entry, got %d", len(delta.CommandLogAppend))
	}
	if delta.CommandLogAppend[0].Result != "error" {
		t.Fatalf("expected result=error for an unknown command kind")
	}
}

func TestCommandExecutorLaterCommandsSeeEarlierEffects(t *testing.T) {
	deps, _ := testDeps()
	ce := NewCommandExecutor(deps)
	state := NewDialogueState("u1")

	delta := ce.Execute([]Command{
		{Kind: StartFlow, FlowName: "book_flight"},
		{Kind: SetSlot, SlotName: "origin", Value: "NYC"},
	}, state, 1)

	state = ApplyDelta(state, delta)
	if v, ok := deps.FlowMgr.GetSlot(&state, "origin"); !ok || v != "NYC" {
		t.Fatalf("expected origin=NYC after sequential start_flow + set_slot, got (%v, %v)", v, ok)
	}
	if len(state.CommandLog) != 2 {
		t.Fatalf("expected two command log entries, got %d", len(state.CommandLog))
	}
}

func mustDelta(d Delta, _ map[string]any, err error) Delta {
	if err != nil {
		panic(err)
	}
	return d
}
