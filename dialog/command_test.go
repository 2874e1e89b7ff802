package dialog

import "testing"

func TestApplyDeltaSlotHeapIsolatedByInstance(t *testing.T) {
	state := NewDialogueState("u1")
	d := Delta{SlotHeap: map[string]map[string]any{
		"instance-a": {"origin": "NYC"},
		"instance-b": {"origin": "SFO", "destination": "LAX"},
	}}
	out := ApplyDelta(state, d)

	if out.SlotHeap["instance-a"]["origin"] != "NYC" {
		t.Fatalf("instance-a origin = %v, want NYC", out.SlotHeap["instance-a"]["origin"])
	}
	if out.SlotHeap["instance-b"]["origin"] != "SFO" {
		t.Fatalf("instance-b origin = %v, want SFO", out.SlotHeap["instance-b"]["origin"])
	}
	if _, ok := out.SlotHeap["instance-a"]["destination"]; ok {
		t.Fatalf("instance-a should not see instance-b's keys")
	}
}

func TestApplyDeltaNeverMutatesInput(t *testing.T) {
	state := NewDialogueState("u1")
	state = ApplyDelta(state, Delta{SlotHeap: map[string]map[string]any{"i1": {"a": 1}}})
	original := state.SlotHeap["i1"]["a"]

	_ = ApplyDelta(state, Delta{SlotHeap: map[string]map[string]any{"i1": {"a": 2}}})

	if state.SlotHeap["i1"]["a"] != original {
		t.Fatalf("ApplyDelta mutated its input state")
	}
}

func TestApplyDeltaSlotHeapUnset(t *testing.T) {
	state := NewDialogueState("u1")
	state = ApplyDelta(state, Delta{SlotHeap: map[string]map[string]any{"i1": {"destination": "LAX"}}})
	state = ApplyDelta(state, Delta{SlotHeapUnset: map[string][]string{"i1": {"destination"}}})

	if _, ok := state.SlotHeap["i1"]["destination"]; ok {
		t.Fatalf("expected destination slot to be unset")
	}
}

func TestApplyDeltaBumpTurn(t *testing.T) {
	state := NewDialogueState("u1")
	state = ApplyDelta(state, Delta{BumpTurn: true})
	if state.Meta.TurnCounter != 1 {
		t.Fatalf("TurnCounter = %d, want 1", state.Meta.TurnCounter)
	}
}

func TestMergeDeltaAccumulatesCommandLog(t *testing.T) {
	a := Delta{CommandLogAppend: []CommandLogEntry{{Kind: StartFlow, Result: "success"}}}
	b := Delta{CommandLogAppend: []CommandLogEntry{{Kind: SetSlot, Result: "error"}}}
	merged := MergeDelta(a, b)

	if len(merged.CommandLogAppend) != 2 {
		t.Fatalf("len(CommandLogAppend) = %d, want 2", len(merged.CommandLogAppend))
	}
	if merged.CommandLogAppend[0].Kind != StartFlow || merged.CommandLogAppend[1].Kind != SetSlot {
		t.Fatalf("command log entries out of order: %+v", merged.CommandLogAppend)
	}
}

func TestMergeDeltaLaterAwaitingWins(t *testing.T) {
	a := Delta{Awaiting: &Awaiting{Kind: AwaitCollect, Slot: "origin"}}
	b := Delta{Awaiting: &Awaiting{Kind: AwaitConfirm}}
	merged := MergeDelta(a, b)

	if merged.Awaiting.Kind != AwaitConfirm {
		t.Fatalf("Awaiting.Kind = %v, want AwaitConfirm", merged.Awaiting.Kind)
	}
}

func TestPendingTaskRequiresInput(t *testing.T) {
	cases := []struct {
		task PendingTask
		want bool
	}{
		{PendingTask{Kind: PendingCollect}, true},
		{PendingTask{Kind: PendingConfirm}, true},
		{PendingTask{Kind: PendingInform, WaitForAck: false}, false},
		{PendingTask{Kind: PendingInform, WaitForAck: true}, true},
	}
	for _, c := range cases {
		if got := c.task.RequiresInput(); got != c.want {
			t.Errorf("RequiresInput(%+v) = %v, want %v", c.task, got, c.want)
		}
	}
}
