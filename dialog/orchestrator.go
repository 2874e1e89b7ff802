package dialog

import (
	"context"
	"strings"
	"time"

	"github.com/jmorenobl/soni-sub010/dialog/emit"
)

// Orchestrator runs one turn end to end: pending-task synthesis, NLU,
// command execution, and repeated subgraph execution across flow
// boundaries.
type Orchestrator struct {
	Scope      *ScopeManager
	Commands   *CommandExecutor
	Subgraph   *SubgraphExecutor
	NLU        NLUProvider
	Emitter    emit.Emitter
	TurnBudget int // max subgraph executions per turn

	// HistoryWindow bounds how many recent messages are handed to the NLU
	// provider as context.
	HistoryWindow int

	now func() time.Time
}

// NewOrchestrator constructs an Orchestrator. A TurnBudget <= 0 defaults
// to 8; a HistoryWindow <= 0 defaults to 10.
func NewOrchestrator(scope *ScopeManager, commands *CommandExecutor, subgraph *SubgraphExecutor, nlu NLUProvider, emitter emit.Emitter, turnBudget, historyWindow int) *Orchestrator {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	if turnBudget <= 0 {
		turnBudget = 8
	}
	if historyWindow <= 0 {
		historyWindow = 10
	}
	return &Orchestrator{
		Scope:         scope,
		Commands:      commands,
		Subgraph:      subgraph,
		NLU:           nlu,
		Emitter:       emitter,
		TurnBudget:    turnBudget,
		HistoryWindow: historyWindow,
		now:           time.Now,
	}
}

// TurnResult is what RunTurn returns: the accumulated delta for the whole
// turn (the caller's responsibility to persist via the checkpoint engine)
// and the buffered response-sink messages.
type TurnResult struct {
	Delta    Delta
	Messages []Message
	Err      error
}

// RunTurn executes one full turn against the given (already loaded)
// state and raw user message. It never mutates state; the caller applies
// the returned delta and saves.
func (o *Orchestrator) RunTurn(ctx context.Context, state DialogueState, userMessage string) TurnResult {
	acc := Delta{}
	working := state

	turn := working.Meta.TurnCounter + 1

	userMsg := Message{Role: "user", Content: userMessage, Timestamp: o.now()}
	appendUser := Delta{MessagesAppend: []Message{userMsg}}
	acc = MergeDelta(acc, appendUser)
	working = ApplyDelta(working, appendUser)

	var commands []Command
	if synth, ok := synthesizeCommand(working.Awaiting, userMessage); ok {
		commands = append(commands, synth)
	}

	var nluFallback []Message
	var nluErr error
	nctx := o.buildContext(&working)
	nluOut, err := o.NLU.Understand(ctx, userMessage, nctx)
	if err != nil {
		wrapped := newExternalError(KindNLUError, "nlu provider failed", err)
		nluErr = wrapped
		errMsg := Delta{LastError: strPtr(wrapped.Error())}
		if fallback := o.Commands.Fallback[KindNLUError]; fallback != "" {
			nluFallback = []Message{{Role: "assistant", Content: fallback}}
			errMsg.MessagesAppend = nluFallback
		}
		acc = MergeDelta(acc, errMsg)
		working = ApplyDelta(working, errMsg)
		o.Emitter.Emit(emit.Event{Msg: "nlu_error", Turn: turn, Meta: map[string]any{"error": err.Error()}})
	} else {
		nluDelta := Delta{LastNLU: &nluOut}
		acc = MergeDelta(acc, nluDelta)
		working = ApplyDelta(working, nluDelta)
		// An orthogonal NLU command overrides the synthesized one.
		for _, c := range nluOut.Commands {
			switch c.Kind {
			case StartFlow, CancelFlow, Clarify, CorrectSlot:
				commands = nil
			}
		}
		commands = append(commands, nluOut.Commands...)
	}

	cmdDelta := o.Commands.Execute(commands, working, turn)
	acc = MergeDelta(acc, cmdDelta)
	working = ApplyDelta(working, cmdDelta)

	// The pending task is answered once its slot is filled, an inform is
	// acknowledged, or the active flow changed: stop awaiting so the
	// subgraph resumes.
	if working.Awaiting.Kind != AwaitNone {
		prev, cur := state.ActiveFlow(), working.ActiveFlow()
		answered := working.Awaiting.Kind == AwaitInform || cur == nil || prev == nil || cur.InstanceID != prev.InstanceID
		if !answered && working.Awaiting.Kind == AwaitCollect {
			_, answered = working.SlotHeap[cur.InstanceID][working.Awaiting.Slot]
		}
		if answered {
			clear := Delta{Awaiting: &Awaiting{Kind: AwaitNone}}
			acc = MergeDelta(acc, clear)
			working = ApplyDelta(working, clear)
		}
	}

	messages := append(append([]Message(nil), nluFallback...), cmdDelta.MessagesAppend...)

	var turnErr error
executions:
	for i := 0; i < o.TurnBudget; i++ {
		if working.ActiveFlow() == nil || working.Awaiting.Kind != AwaitNone {
			break
		}

		result := o.Subgraph.Run(ctx, working)
		acc = MergeDelta(acc, result.Delta)
		working = ApplyDelta(working, result.Delta)
		messages = append(messages, result.Messages...)

		switch result.Outcome {
		case OutcomeSuspend, OutcomeError, OutcomeIdle:
			turnErr = result.Err
			break executions
		case OutcomeFlowCompleted:
			if result.Err != nil && turnErr == nil {
				turnErr = result.Err
			}
		}
	}
	if turnErr == nil {
		turnErr = nluErr
	}
	if working.ActiveFlow() != nil && working.Awaiting.Kind == AwaitNone && turnErr == nil {
		turnErr = newSafetyError(KindTurnBudget, "turn exceeded subgraph execution budget")
	}

	acc = MergeDelta(acc, Delta{BumpTurn: true})

	return TurnResult{Delta: acc, Messages: messages, Err: turnErr}
}

func strPtr(s string) *string { return &s }

// synthesizeCommand builds the command implied by a pending task before
// the raw message reaches NLU: collect -> SetSlot on
// the awaited slot; confirm -> Affirm or Deny depending on a simple
// keyword parse; inform-ack -> no synthesized command (a no-op).
func synthesizeCommand(awaiting Awaiting, userMessage string) (Command, bool) {
	switch awaiting.Kind {
	case AwaitCollect:
		return Command{Kind: SetSlot, SlotName: awaiting.Slot, Value: userMessage}, true
	case AwaitConfirm:
		if isAffirmative(userMessage) {
			return Command{Kind: AffirmConfirmation}, true
		}
		if isNegative(userMessage) {
			return Command{Kind: DenyConfirmation}, true
		}
		return Command{}, false
	default:
		return Command{}, false
	}
}

var affirmativeWords = []string{"yes", "yeah", "yep", "correct", "right", "confirm", "sure", "affirmative", "ok", "okay"}
var negativeWords = []string{"no", "nope", "wrong", "incorrect", "cancel", "negative", "deny"}

func isAffirmative(msg string) bool {
	return containsAnyWord(msg, affirmativeWords)
}

func isNegative(msg string) bool {
	return containsAnyWord(msg, negativeWords)
}

func containsAnyWord(msg string, words []string) bool {
	lower := strings.ToLower(strings.TrimSpace(msg))
	for _, w := range words {
		if lower == w || strings.HasPrefix(lower, w+" ") || strings.HasPrefix(lower, w+",") {
			return true
		}
	}
	return false
}

// buildContext assembles the NLU context block from current state and
// the scope manager.
func (o *Orchestrator) buildContext(state *DialogueState) NLUContext {
	active := state.ActiveFlow()
	flowName := ""
	if active != nil {
		flowName = active.FlowName
	}
	recent := state.Messages
	if len(recent) > o.HistoryWindow {
		recent = recent[len(recent)-o.HistoryWindow:]
	}
	return NLUContext{
		ActiveFlowName: flowName,
		InScopeSlots:   o.Scope.InScopeSlots(state),
		InScopeActions: o.Scope.InScopeActions(state),
		RecentMessages: recent,
		Awaiting:       state.Awaiting,
		CurrentTime:    o.now().Format(time.RFC3339),
	}
}
