package dialog

import (
	"fmt"

	"github.com/jmorenobl/soni-sub010/dialog/emit"
)

// CompiledStep is one step node after compilation: the declarative
// StepDef plus the routing edges resolved and validated against the rest
// of the flow.
type CompiledStep struct {
	Def StepDef
}

// CompiledFlow is an immutable record produced once at startup: flow
// name, declared slots/outputs, the step map, and the initial step id.
// Compilation is one-shot; subsequent turns never re-compile.
type CompiledFlow struct {
	Name        string
	Slots       map[string]SlotDef
	Outputs     []string
	Steps       map[string]*CompiledStep
	InitialStep string
}

// Slot looks up a declared slot definition by name.
func (c *CompiledFlow) Slot(name string) (SlotDef, bool) {
	s, ok := c.Slots[name]
	return s, ok
}

// Compiler validates flow definitions against the set of registered
// validators and actions and materializes compiled subgraphs. The
// compiler is pure: no I/O, no external calls.
type Compiler struct {
	Validators map[string]ValidatorFunc
	Actions    map[string]ActionSpec
	Emitter    emit.Emitter
}

// ValidatorFunc validates and normalizes a candidate slot value. It
// returns the normalized value and whether it was accepted.
type ValidatorFunc func(value any) (any, bool)

// NewCompiler constructs a Compiler. A nil emitter is replaced with a
// NullEmitter so callers never need a nil check.
func NewCompiler(validators map[string]ValidatorFunc, actions map[string]ActionSpec, emitter emit.Emitter) *Compiler {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &Compiler{Validators: validators, Actions: actions, Emitter: emitter}
}

// CompileAll validates and compiles every flow definition, returning one
// CompiledFlow per definition name. It stops at the first definition
// error — definition errors are fatal at startup.
func (c *Compiler) CompileAll(defs []FlowDefinition) (map[string]*CompiledFlow, error) {
	c.Emitter.Emit(emit.Event{Msg: "compile_start", Meta: map[string]any{"flow_count": len(defs)}})

	out := make(map[string]*CompiledFlow, len(defs))
	for _, def := range defs {
		cf, err := c.compileOne(def)
		if err != nil {
			c.Emitter.Emit(emit.Event{Msg: "compile_error", Step: def.Name, Meta: map[string]any{"error": err.Error()}})
			return nil, err
		}
		out[def.Name] = cf
	}
	c.Emitter.Emit(emit.Event{Msg: "compile_ok", Meta: map[string]any{"flow_count": len(out)}})
	return out, nil
}

func (c *Compiler) compileOne(def FlowDefinition) (*CompiledFlow, error) {
	if def.Name == "" {
		return nil, newDefinitionError("", "", "flow name must not be empty")
	}
	if def.InitialStep == "" {
		return nil, newDefinitionError(def.Name, "", "flow has no initial_step")
	}

	slots := make(map[string]SlotDef, len(def.Slots))
	for _, s := range def.Slots {
		slots[s.Name] = s
	}

	steps := make(map[string]*CompiledStep, len(def.Steps))
	for _, s := range def.Steps {
		if s.ID == "" {
			return nil, newDefinitionError(def.Name, "", "step has no id")
		}
		if _, dup := steps[s.ID]; dup {
			return nil, newDefinitionError(def.Name, s.ID, "duplicate step id")
		}
		steps[s.ID] = &CompiledStep{Def: s}
	}

	if _, ok := steps[def.InitialStep]; !ok {
		return nil, newDefinitionError(def.Name, def.InitialStep, "initial_step does not exist")
	}

	exists := func(id string) bool {
		if id == "" {
			return true // empty means "terminal"/unset, validated per-kind below
		}
		_, ok := steps[id]
		return ok
	}

	for _, step := range steps {
		if err := c.validateStep(def, step.Def, slots, exists); err != nil {
			return nil, err
		}
	}

	if !c.reachable(def, steps) {
		return nil, newDefinitionError(def.Name, "", "one or more steps are unreachable from initial_step via jump/next/branch/while")
	}

	return &CompiledFlow{
		Name:        def.Name,
		Slots:       slots,
		Outputs:     def.Outputs,
		Steps:       steps,
		InitialStep: def.InitialStep,
	}, nil
}

func (c *Compiler) validateStep(def FlowDefinition, s StepDef, slots map[string]SlotDef, exists func(string) bool) error {
	switch s.Kind {
	case StepCollect:
		slot, ok := slots[s.Slot]
		if !ok {
			return newDefinitionError(def.Name, s.ID, fmt.Sprintf("collect references undeclared slot %q", s.Slot))
		}
		validatorName := s.Validator
		if validatorName == "" {
			validatorName = slot.Validator
		}
		if validatorName != "" {
			if _, ok := c.Validators[validatorName]; !ok {
				return newDefinitionError(def.Name, s.ID, fmt.Sprintf("unknown validator %q", validatorName))
			}
		}
		if s.Next != "" && !exists(s.Next) {
			return newDefinitionError(def.Name, s.ID, fmt.Sprintf("next step %q does not exist", s.Next))
		}
	case StepSay, StepInform, StepConfirm:
		if s.Next != "" && !exists(s.Next) {
			return newDefinitionError(def.Name, s.ID, fmt.Sprintf("next step %q does not exist", s.Next))
		}
	case StepAction:
		spec, ok := c.Actions[s.Handler]
		if !ok {
			return newDefinitionError(def.Name, s.ID, fmt.Sprintf("action references unknown handler %q", s.Handler))
		}
		declared := make(map[string]bool, len(spec.Inputs))
		for _, in := range spec.Inputs {
			declared[in] = true
		}
		for inputKey := range s.InputMapping {
			if !declared[inputKey] {
				return newDefinitionError(def.Name, s.ID, fmt.Sprintf("action %q input mapping references undeclared input key %q", s.Handler, inputKey))
			}
		}
		if s.Next != "" && !exists(s.Next) {
			return newDefinitionError(def.Name, s.ID, fmt.Sprintf("next step %q does not exist", s.Next))
		}
		if s.OnError != "" && !exists(s.OnError) {
			return newDefinitionError(def.Name, s.ID, fmt.Sprintf("on_error step %q does not exist", s.OnError))
		}
	case StepBranch:
		slot, ok := slots[s.Expression]
		if ok && slot.Type == SlotEnum {
			covered := make(map[string]bool, len(s.CaseToStep))
			for k := range s.CaseToStep {
				covered[k] = true
			}
			if s.DefaultStep == "" {
				for _, v := range slot.EnumValues {
					if !covered[v] {
						return newDefinitionError(def.Name, s.ID, fmt.Sprintf("branch does not cover enum value %q and has no default_step", v))
					}
				}
			}
		}
		if len(s.CaseToStep) == 0 && s.DefaultStep == "" {
			return newDefinitionError(def.Name, s.ID, "branch has no cases and no default_step")
		}
		for _, target := range s.CaseToStep {
			if !exists(target) {
				return newDefinitionError(def.Name, s.ID, fmt.Sprintf("branch case target %q does not exist", target))
			}
		}
		if s.DefaultStep != "" && !exists(s.DefaultStep) {
			return newDefinitionError(def.Name, s.ID, fmt.Sprintf("branch default_step %q does not exist", s.DefaultStep))
		}
	case StepWhile:
		if s.BodyStep == "" || !exists(s.BodyStep) {
			return newDefinitionError(def.Name, s.ID, fmt.Sprintf("while body_step %q does not exist", s.BodyStep))
		}
		if s.Next != "" && !exists(s.Next) {
			return newDefinitionError(def.Name, s.ID, fmt.Sprintf("while next step %q does not exist", s.Next))
		}
	case StepJump:
		if s.Target == "" || !exists(s.Target) {
			return newDefinitionError(def.Name, s.ID, fmt.Sprintf("jump target %q does not exist", s.Target))
		}
	case StepEnd:
		for outName, slotName := range s.Outputs {
			if _, ok := slots[slotName]; !ok {
				return newDefinitionError(def.Name, s.ID, fmt.Sprintf("end output %q sources undeclared slot %q", outName, slotName))
			}
		}
	default:
		return newDefinitionError(def.Name, s.ID, fmt.Sprintf("unknown step kind %q", s.Kind))
	}
	return nil
}

// reachable performs a simple forward-reachability walk from InitialStep,
// following every statically-known edge, to catch steps orphaned by a
// typo in next/target/body_step/case targets. Cycles (e.g. while loops,
// jump back-edges) are expected and handled via the visited set.
func (c *Compiler) reachable(def FlowDefinition, steps map[string]*CompiledStep) bool {
	visited := make(map[string]bool, len(steps))
	var walk func(id string)
	walk = func(id string) {
		if id == "" || visited[id] {
			return
		}
		step, ok := steps[id]
		if !ok {
			return
		}
		visited[id] = true
		s := step.Def
		switch s.Kind {
		case StepCollect, StepSay, StepInform, StepConfirm:
			walk(s.Next)
		case StepAction:
			walk(s.Next)
			walk(s.OnError)
		case StepBranch:
			for _, target := range s.CaseToStep {
				walk(target)
			}
			walk(s.DefaultStep)
		case StepWhile:
			walk(s.BodyStep)
			walk(s.Next)
		case StepJump:
			walk(s.Target)
		case StepEnd:
			// terminal
		}
	}
	walk(def.InitialStep)
	return len(visited) == len(steps)
}
