package dialog

import (
	"context"
	"fmt"

	"github.com/jmorenobl/soni-sub010/dialog/emit"
)

// ActionHandler is the dialogue-specific narrowing of an executable
// action: a name plus a call signature taking/returning string-keyed
// maps. Any type satisfying this
// shape — including adapters in the action subpackage — can be
// registered without an import cycle.
type ActionHandler interface {
	Name() string
	Call(ctx context.Context, input map[string]any) (map[string]any, error)
}

// ActionRegistry is a read-only-after-startup map of action name to
// handler.
type ActionRegistry struct {
	handlers map[string]ActionHandler
}

// NewActionRegistry constructs an empty registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{handlers: map[string]ActionHandler{}}
}

// Register adds a handler under its own Name(). Intended to be called
// during process startup, before any turn is processed.
func (r *ActionRegistry) Register(h ActionHandler) {
	r.handlers[h.Name()] = h
}

func (r *ActionRegistry) get(name string) (ActionHandler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// StepOutcome is the result tag of one subgraph-executor run.
type StepOutcome string

const (
	OutcomeContinue      StepOutcome = "continue"
	OutcomeSuspend       StepOutcome = "suspend"
	OutcomeFlowCompleted StepOutcome = "flow_completed"
	OutcomeIdle          StepOutcome = "idle" // stack emptied with no new active flow
	OutcomeError         StepOutcome = "error"
)

// ExecResult is what SubgraphExecutor.Run returns: the accumulated delta
// of every node it ran, the outcome tag, any rendered messages, and an
// error if the run aborted abnormally (step budget, unhandled action
// failure).
type ExecResult struct {
	Outcome  StepOutcome
	Delta    Delta
	Messages []Message
	Err      error
}

// SubgraphExecutor runs one compiled flow to completion or to the next
// human-input boundary.
type SubgraphExecutor struct {
	Flows       map[string]*CompiledFlow
	Validators  map[string]ValidatorFunc
	Actions     *ActionRegistry
	FlowMgr     *FlowManager
	Emitter     emit.Emitter
	StepBudget  int
	RetryPolicy RetryPolicy
	Fallback    map[Kind]string
	Metrics     *Metrics
}

// NewSubgraphExecutor constructs an executor. A StepBudget <= 0 defaults
// to 1000. metrics may be nil, in which case step counts go unobserved.
func NewSubgraphExecutor(flows map[string]*CompiledFlow, validators map[string]ValidatorFunc, actions *ActionRegistry, fm *FlowManager, emitter emit.Emitter, stepBudget int, metrics *Metrics) *SubgraphExecutor {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	if stepBudget <= 0 {
		stepBudget = 1000
	}
	return &SubgraphExecutor{Flows: flows, Validators: validators, Actions: actions, FlowMgr: fm, Emitter: emitter, StepBudget: stepBudget, RetryPolicy: DefaultRetryPolicy(), Fallback: DefaultFallbackMessages(), Metrics: metrics}
}

// Run steps the active flow's compiled subgraph, starting at its
// CurrentStep (or InitialStep if unset), until it suspends, the flow
// completes (end node / unhandled action error), or the step budget is
// exhausted.
func (x *SubgraphExecutor) Run(ctx context.Context, state DialogueState) ExecResult {
	acc := Delta{}
	working := state

	active := working.ActiveFlow()
	if active == nil {
		return ExecResult{Outcome: OutcomeIdle, Delta: acc}
	}
	cf, ok := x.Flows[active.FlowName]
	if !ok {
		err := newContractError(KindUnknownFlow, fmt.Sprintf("active flow %q has no compiled definition", active.FlowName))
		return ExecResult{Outcome: OutcomeError, Delta: acc, Err: err}
	}

	stepID := active.CurrentStep
	if stepID == "" {
		stepID = cf.InitialStep
	}

	var messages []Message
	steps := 0
	defer func() {
		if x.Metrics != nil {
			x.Metrics.SubgraphSteps.Observe(float64(steps))
		}
	}()
	for i := 0; i < x.StepBudget; i++ {
		select {
		case <-ctx.Done():
			return ExecResult{Outcome: OutcomeError, Delta: acc, Messages: messages, Err: ctx.Err()}
		default:
		}

		steps++
		step, ok := cf.Steps[stepID]
		if !ok {
			err := newDefinitionError(cf.Name, stepID, "current step vanished from compiled flow")
			return ExecResult{Outcome: OutcomeError, Delta: acc, Messages: messages, Err: err}
		}

		x.Emitter.Emit(emit.Event{Step: cf.Name + "/" + stepID, Msg: "node_start"})

		outcome, nextStep, stepDelta, msg, stepErr := x.runStep(ctx, cf, active.InstanceID, step.Def, working)
		if msg != "" {
			messages = append(messages, Message{Content: msg, Role: "assistant"})
			stepDelta.MessagesAppend = append(stepDelta.MessagesAppend, Message{Content: msg, Role: "assistant"})
		}
		acc = MergeDelta(acc, stepDelta)
		working = ApplyDelta(working, stepDelta)
		active = working.ActiveFlow()

		x.Emitter.Emit(emit.Event{Step: cf.Name + "/" + stepID, Msg: "routing_decision", Meta: map[string]any{"outcome": string(outcome), "next": nextStep}})

		switch outcome {
		case OutcomeSuspend:
			advance := Delta{FlowStack: setCurrentStep(working.FlowStack, active.InstanceID, stepID), FlowStackSet: true}
			acc = MergeDelta(acc, advance)
			return ExecResult{Outcome: OutcomeSuspend, Delta: acc, Messages: messages}
		case OutcomeFlowCompleted:
			newActive := working.ActiveFlow()
			if newActive == nil {
				return ExecResult{Outcome: OutcomeIdle, Delta: acc, Messages: messages, Err: stepErr}
			}
			return ExecResult{Outcome: OutcomeFlowCompleted, Delta: acc, Messages: messages, Err: stepErr}
		case OutcomeError:
			return ExecResult{Outcome: OutcomeError, Delta: acc, Messages: messages, Err: stepErr}
		default: // continue
			stepID = nextStep
			if active != nil {
				advance := Delta{FlowStack: setCurrentStep(working.FlowStack, active.InstanceID, stepID), FlowStackSet: true}
				acc = MergeDelta(acc, advance)
				working = ApplyDelta(working, advance)
			}
		}
	}

	err := newSafetyError(KindStepBudget, fmt.Sprintf("flow %q exceeded step budget of %d", cf.Name, x.StepBudget))
	return ExecResult{Outcome: OutcomeError, Delta: acc, Messages: messages, Err: err}
}

func setCurrentStep(stack []FlowContext, instanceID, stepID string) []FlowContext {
	out := append([]FlowContext(nil), stack...)
	for i := range out {
		if out[i].InstanceID == instanceID {
			out[i].CurrentStep = stepID
		}
	}
	return out
}

// runStep executes exactly one node and returns a continue/suspend/
// complete/error outcome, the next step id (when continuing), any delta
// to merge, a rendered message (if any), and an error (if any).
func (x *SubgraphExecutor) runStep(ctx context.Context, cf *CompiledFlow, instanceID string, s StepDef, state DialogueState) (StepOutcome, string, Delta, string, error) {
	slots := state.SlotHeap[instanceID]

	switch s.Kind {
	case StepCollect:
		if _, ok := slots[s.Slot]; ok {
			return OutcomeContinue, s.Next, Delta{}, "", nil
		}
		slotDef := cf.Slots[s.Slot]
		d := Delta{Awaiting: &Awaiting{Kind: AwaitCollect, Slot: s.Slot, Prompt: slotDef.Prompt}}
		return OutcomeSuspend, "", d, slotDef.Prompt, nil

	case StepSay:
		return OutcomeContinue, s.Next, Delta{}, s.Template, nil

	case StepInform:
		if !s.WaitForAck {
			return OutcomeContinue, s.Next, Delta{}, s.Template, nil
		}
		d := Delta{Awaiting: &Awaiting{Kind: AwaitInform, Prompt: s.Template}}
		return OutcomeSuspend, "", d, s.Template, nil

	case StepConfirm:
		d := Delta{Awaiting: &Awaiting{Kind: AwaitConfirm, Prompt: s.Template}}
		return OutcomeSuspend, "", d, s.Template, nil

	case StepAction:
		handler, ok := x.Actions.get(s.Handler)
		if !ok {
			err := newExternalError(KindActionError, fmt.Sprintf("action %q is not registered", s.Handler), nil)
			return OutcomeError, "", Delta{}, x.Fallback[KindActionError], err
		}
		input := make(map[string]any, len(s.InputMapping))
		for actionKey, slotName := range s.InputMapping {
			input[actionKey] = slots[slotName]
		}
		output, err := CallWithRetry(ctx, x.RetryPolicy, handler, input)
		if err != nil {
			if s.OnError != "" {
				return OutcomeContinue, s.OnError, Delta{}, "", nil
			}
			popDelta, popErr := x.FlowMgr.PopFlow(state, nil, PopError)
			if popErr != nil {
				return OutcomeError, "", Delta{}, "", popErr
			}
			wrapped := newExternalError(KindActionError, fmt.Sprintf("action %q failed", s.Handler), err)
			return OutcomeFlowCompleted, "", popDelta, x.Fallback[KindActionError], wrapped
		}
		overlay := make(map[string]any, len(s.OutputMapping))
		for outKey, slotName := range s.OutputMapping {
			overlay[slotName] = output[outKey]
		}
		d := Delta{}
		if len(overlay) > 0 {
			d.SlotHeap = map[string]map[string]any{instanceID: overlay}
		}
		return OutcomeContinue, s.Next, d, "", nil

	case StepBranch:
		value := fmt.Sprintf("%v", slots[s.Expression])
		if target, ok := s.CaseToStep[value]; ok {
			return OutcomeContinue, target, Delta{}, "", nil
		}
		return OutcomeContinue, s.DefaultStep, Delta{}, "", nil

	case StepWhile:
		if truthy(slots[s.Condition]) {
			return OutcomeContinue, s.BodyStep, Delta{}, "", nil
		}
		return OutcomeContinue, s.Next, Delta{}, "", nil

	case StepJump:
		return OutcomeContinue, s.Target, Delta{}, "", nil

	case StepEnd:
		outputs := make(map[string]any, len(s.Outputs))
		for outName, slotName := range s.Outputs {
			outputs[outName] = slots[slotName]
		}
		popDelta, err := x.FlowMgr.PopFlow(state, outputs, PopCompleted)
		if err != nil {
			return OutcomeError, "", Delta{}, "", err
		}
		return OutcomeFlowCompleted, "", popDelta, "", nil

	default:
		err := newDefinitionError(cf.Name, s.ID, fmt.Sprintf("unknown step kind %q at runtime", s.Kind))
		return OutcomeError, "", Delta{}, "", err
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	case string:
		return t != ""
	case int:
		return t != 0
	case float64:
		return t != 0
	default:
		return v != nil
	}
}
