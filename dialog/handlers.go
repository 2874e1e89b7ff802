package dialog

import "fmt"

// HandlerDeps bundles the read-only-after-startup collaborators command
// handlers need: the compiled flow set, the flow manager, and the
// validator registry. Handlers never hold state themselves — everything
// they need beyond the command and current state view comes from here.
type HandlerDeps struct {
	Flows      map[string]*CompiledFlow
	FlowMgr    *FlowManager
	Validators map[string]ValidatorFunc
}

// CommandHandler is the handler contract: given the command, the current
// state, and shared dependencies, it returns a delta, optional extra
// fields for the command log entry, and an error. Handlers never mutate
// the passed state.
type CommandHandler func(cmd Command, state DialogueState, deps *HandlerDeps) (Delta, map[string]any, error)

// defaultHandlers returns the closed vocabulary's handler registry.
// NewCommandExecutor populates its registry from it once;
// callers may add entries for forward-compatible command kinds without
// touching the executor.
func defaultHandlers() map[CommandKind]CommandHandler {
	return map[CommandKind]CommandHandler{
		StartFlow:          handleStartFlow,
		CancelFlow:         handleCancelFlow,
		SetSlot:            handleSetSlot,
		CorrectSlot:        handleCorrectSlot,
		AffirmConfirmation: handleAffirmConfirmation,
		DenyConfirmation:   handleDenyConfirmation,
		Clarify:            handleClarify,
		HumanHandoff:       handleHumanHandoff,
	}
}

func handleStartFlow(cmd Command, state DialogueState, deps *HandlerDeps) (Delta, map[string]any, error) {
	if _, ok := deps.Flows[cmd.FlowName]; !ok {
		return Delta{}, nil, newContractError(KindUnknownFlow, fmt.Sprintf("start_flow references unknown flow %q", cmd.FlowName))
	}
	return deps.FlowMgr.PushFlow(state, cmd.FlowName, cmd.SeedSlots), nil, nil
}

func handleCancelFlow(_ Command, state DialogueState, deps *HandlerDeps) (Delta, map[string]any, error) {
	if state.ActiveFlow() == nil {
		return Delta{}, nil, newContractError(KindNoActiveFlow, "cancel_flow with no active flow")
	}
	d, err := deps.FlowMgr.PopFlow(state, nil, PopCancelled)
	return d, nil, err
}

// validateSlotValue looks up the active flow's declared slot and applies
// its validator (if any), returning the normalized value or an error that
// callers turn into a local reprompt.
func validateSlotValue(state DialogueState, deps *HandlerDeps, slotName string, value any) (any, *FlowContext, *CompiledFlow, *Error) {
	active := state.ActiveFlow()
	if active == nil {
		return nil, nil, nil, newContractError(KindNoActiveFlow, "set_slot with no active flow")
	}
	cf, ok := deps.Flows[active.FlowName]
	if !ok {
		return nil, nil, nil, newContractError(KindUnknownFlow, fmt.Sprintf("active flow %q has no compiled definition", active.FlowName))
	}
	slotDef, ok := cf.Slots[slotName]
	if !ok {
		return nil, nil, nil, newContractError(KindUnknownCommand, fmt.Sprintf("slot %q is not declared in flow %q", slotName, active.FlowName))
	}
	if slotDef.Validator != "" {
		if vfn, ok := deps.Validators[slotDef.Validator]; ok {
			normalized, valid := vfn(value)
			if !valid {
				return nil, nil, nil, newInputError(KindInvalidSlotValue, fmt.Sprintf("value for slot %q failed validation %q", slotName, slotDef.Validator))
			}
			return normalized, active, cf, nil
		}
	}
	return value, active, cf, nil
}

func handleSetSlot(cmd Command, state DialogueState, deps *HandlerDeps) (Delta, map[string]any, error) {
	normalized, active, _, verr := validateSlotValue(state, deps, cmd.SlotName, cmd.Value)
	if verr != nil {
		if verr.Kind == KindInvalidSlotValue {
			reprompt := rerenderCollectPrompt(state, deps, cmd.SlotName)
			return Delta{MessagesAppend: []Message{{Role: "assistant", Content: reprompt}}}, nil, verr
		}
		return Delta{}, nil, verr
	}
	d := Delta{SlotHeap: map[string]map[string]any{active.InstanceID: {cmd.SlotName: normalized}}}
	return d, nil, nil
}

func handleCorrectSlot(cmd Command, state DialogueState, deps *HandlerDeps) (Delta, map[string]any, error) {
	prior, _ := deps.FlowMgr.GetSlot(&state, cmd.SlotName)

	normalized, active, cf, verr := validateSlotValue(state, deps, cmd.SlotName, cmd.Value)
	if verr != nil {
		if verr.Kind == KindInvalidSlotValue {
			reprompt := rerenderCollectPrompt(state, deps, cmd.SlotName)
			return Delta{MessagesAppend: []Message{{Role: "assistant", Content: reprompt}}}, nil, verr
		}
		return Delta{}, nil, verr
	}

	d := Delta{SlotHeap: map[string]map[string]any{active.InstanceID: {cmd.SlotName: normalized}}}

	if collectStepID, ok := findCollectStep(cf, cmd.SlotName); ok && collectStepID != active.CurrentStep {
		rewind := Delta{FlowStack: setCurrentStep(state.FlowStack, active.InstanceID, collectStepID), FlowStackSet: true}
		d = MergeDelta(d, rewind)
	}

	extra := map[string]any{"prior_value": prior}
	return d, extra, nil
}

func handleAffirmConfirmation(_ Command, state DialogueState, deps *HandlerDeps) (Delta, map[string]any, error) {
	active, _, step, err := confirmStepAt(state, deps)
	if err != nil {
		return Delta{}, nil, err
	}
	d := Delta{
		FlowStack:    setCurrentStep(state.FlowStack, active.InstanceID, step.Next),
		FlowStackSet: true,
		Awaiting:     &Awaiting{Kind: AwaitNone},
	}
	return d, nil, nil
}

func handleDenyConfirmation(cmd Command, state DialogueState, deps *HandlerDeps) (Delta, map[string]any, error) {
	active, cf, _, err := confirmStepAt(state, deps)
	if err != nil {
		return Delta{}, nil, err
	}

	d := Delta{Awaiting: &Awaiting{Kind: AwaitNone}}
	if cmd.SlotName != "" {
		if collectStepID, ok := findCollectStep(cf, cmd.SlotName); ok {
			rewind := Delta{
				FlowStack:     setCurrentStep(state.FlowStack, active.InstanceID, collectStepID),
				FlowStackSet:  true,
				SlotHeapUnset: map[string][]string{active.InstanceID: {cmd.SlotName}},
			}
			d = MergeDelta(d, rewind)
		}
	}
	return d, nil, nil
}

func handleClarify(_ Command, state DialogueState, _ *HandlerDeps) (Delta, map[string]any, error) {
	msg := "Let me help — " + state.Awaiting.Prompt
	if state.Awaiting.Kind == AwaitNone {
		msg = "I'm not sure what you need help with right now."
	}
	return Delta{MessagesAppend: []Message{{Role: "assistant", Content: msg}}}, nil, nil
}

func handleHumanHandoff(_ Command, _ DialogueState, _ *HandlerDeps) (Delta, map[string]any, error) {
	d := Delta{MessagesAppend: []Message{{Role: "assistant", Content: "Connecting you with a human agent."}}}
	return d, map[string]any{"handoff": true}, nil
}

// confirmStepAt resolves the active flow instance and the compiled
// confirm step it is currently suspended at. Returns a contract error if
// there is no active flow or it is not suspended at a confirm step.
func confirmStepAt(state DialogueState, deps *HandlerDeps) (*FlowContext, *CompiledFlow, *StepDef, error) {
	active := state.ActiveFlow()
	if active == nil {
		return nil, nil, nil, newContractError(KindNoActiveFlow, "confirmation command with no active flow")
	}
	cf, ok := deps.Flows[active.FlowName]
	if !ok {
		return nil, nil, nil, newContractError(KindUnknownFlow, fmt.Sprintf("active flow %q has no compiled definition", active.FlowName))
	}
	step, ok := cf.Steps[active.CurrentStep]
	if !ok || step.Def.Kind != StepConfirm {
		return nil, nil, nil, newContractError(KindUnknownCommand, "confirmation command while not awaiting a confirm step")
	}
	return active, cf, &step.Def, nil
}

func findCollectStep(cf *CompiledFlow, slotName string) (string, bool) {
	for id, step := range cf.Steps {
		if step.Def.Kind == StepCollect && step.Def.Slot == slotName {
			return id, true
		}
	}
	return "", false
}

func rerenderCollectPrompt(state DialogueState, deps *HandlerDeps, slotName string) string {
	active := state.ActiveFlow()
	if active == nil {
		return DefaultFallbackMessages()[KindInvalidSlotValue]
	}
	cf, ok := deps.Flows[active.FlowName]
	if !ok {
		return DefaultFallbackMessages()[KindInvalidSlotValue]
	}
	if slotDef, ok := cf.Slots[slotName]; ok && slotDef.Prompt != "" {
		return slotDef.Prompt
	}
	return DefaultFallbackMessages()[KindInvalidSlotValue]
}

// CommandExecutor is a thin coordinator that runs commands in the order
// produced by NLU, merging each delta into a locally accumulated state
// view so later commands see earlier ones' effects.
type CommandExecutor struct {
	Handlers map[CommandKind]CommandHandler
	Deps     *HandlerDeps
	Fallback map[Kind]string
}

// NewCommandExecutor constructs a CommandExecutor with the default
// handler registry. Callers may add/override entries in the returned
// executor's Handlers map before first use.
func NewCommandExecutor(deps *HandlerDeps) *CommandExecutor {
	return &CommandExecutor{Handlers: defaultHandlers(), Deps: deps, Fallback: DefaultFallbackMessages()}
}

// Execute runs every command in order, returning the accumulated delta
// plus queued messages. It never mutates the input state. Unknown command
// kinds yield unknown_command and are logged but never abort the turn.
func (ce *CommandExecutor) Execute(commands []Command, state DialogueState, turn int) Delta {
	acc := Delta{}
	working := state

	for _, cmd := range commands {
		var delta Delta
		var extra map[string]any
		var result string
		var reason string

		handler, ok := ce.Handlers[cmd.Kind]
		if !ok {
			result = "error"
			reason = string(KindUnknownCommand)
			delta = Delta{}
		} else {
			d, ex, err := handler(cmd, working, ce.Deps)
			delta = d
			extra = ex
			if err != nil {
				result = "error"
				reason = err.Error()
				if len(delta.MessagesAppend) == 0 {
					if derr, ok2 := err.(*Error); ok2 {
						if msg, ok3 := ce.Fallback[derr.Kind]; ok3 && msg != "" {
							delta.MessagesAppend = append(delta.MessagesAppend, Message{Role: "assistant", Content: msg})
						}
					}
				}
			} else {
				result = "success"
			}
		}

		delta.CommandLogAppend = append(delta.CommandLogAppend, CommandLogEntry{
			Turn:    turn,
			Kind:    cmd.Kind,
			Command: cmd,
			Result:  result,
			Reason:  reason,
			Extra:   extra,
		})

		acc = MergeDelta(acc, delta)
		working = ApplyDelta(working, delta)
	}

	return acc
}
