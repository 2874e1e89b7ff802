package dialog

import "testing"

func simpleFlow() FlowDefinition {
	return FlowDefinition{
		Name:        "book_flight",
		Slots:       []SlotDef{{Name: "origin", Type: SlotString, Prompt: "Where from?"}},
		Outputs:     []string{"origin"},
		InitialStep: "collect_origin",
		Steps: []StepDef{
			{ID: "collect_origin", Kind: StepCollect, Slot: "origin", Next: "done"},
			{ID: "done", Kind: StepEnd, Outputs: map[string]string{"origin": "origin"}},
		},
	}
}

func TestCompileAllSucceedsOnValidFlow(t *testing.T) {
	c := NewCompiler(nil, nil, nil)
	compiled, err := c.CompileAll([]FlowDefinition{simpleFlow()})
	if err != nil {
		t.Fatalf("CompileAll returned error: %v", err)
	}
	cf, ok := compiled["book_flight"]
	if !ok {
		t.Fatalf("expected compiled flow %q", "book_flight")
	}
	if cf.InitialStep != "collect_origin" {
		t.Fatalf("InitialStep = %q, want collect_origin", cf.InitialStep)
	}
}

func TestCompileRejectsMissingInitialStep(t *testing.T) {
	def := simpleFlow()
	def.InitialStep = ""
	c := NewCompiler(nil, nil, nil)
	if _, err := c.CompileAll([]FlowDefinition{def}); err == nil {
		t.Fatalf("expected a definition error for missing initial_step")
	}
}

func TestCompileRejectsDuplicateStepID(t *testing.T) {
	def := simpleFlow()
	def.Steps = append(def.Steps, StepDef{ID: "collect_origin", Kind: StepEnd})
	c := NewCompiler(nil, nil, nil)
	if _, err := c.CompileAll([]FlowDefinition{def}); err == nil {
		t.Fatalf("expected a definition error for duplicate step id")
	}
}

func TestCompileRejectsUnreachableStep(t *testing.T) {
	def := simpleFlow()
	def.Steps = append(def.Steps, StepDef{ID: "orphan", Kind: StepEnd})
	c := NewCompiler(nil, nil, nil)
	if _, err := c.CompileAll([]FlowDefinition{def}); err == nil {
		t.Fatalf("expected a definition error for an unreachable step")
	}
}

func TestCompileRejectsActionWithUnknownHandler(t *testing.T) {
	def := simpleFlow()
	def.Steps = []StepDef{
		{ID: "collect_origin", Kind: StepCollect, Slot: "origin", Next: "search"},
		{ID: "search", Kind: StepAction, Handler: "search_flights", Next: "done"},
		{ID: "done", Kind: StepEnd},
	}
	c := NewCompiler(nil, nil, nil)
	if _, err := c.CompileAll([]FlowDefinition{def}); err == nil {
		t.Fatalf("expected a definition error for an action referencing an unregistered handler")
	}
}

func TestCompileAcceptsActionWithRegisteredHandler(t *testing.T) {
	def := simpleFlow()
	def.Steps = []StepDef{
		{ID: "collect_origin", Kind: StepCollect, Slot: "origin", Next: "search"},
		{
			ID: "search", Kind: StepAction, Handler: "search_flights",
			InputMapping: map[string]string{"origin": "origin"}, Next: "done",
		},
		{ID: "done", Kind: StepEnd},
	}
	actions := map[string]ActionSpec{"search_flights": {Name: "search_flights", Inputs: []string{"origin"}}}
	c := NewCompiler(nil, actions, nil)
	if _, err := c.CompileAll([]FlowDefinition{def}); err != nil {
		t.Fatalf("CompileAll returned error: %v", err)
	}
}

func TestCompileRejectsBranchMissingEnumCoverage(t *testing.T) {
	def := FlowDefinition{
		Name: "pick_class",
		Slots: []SlotDef{
			{Name: "class", Type: SlotEnum, EnumValues: []string{"economy", "business"}},
		},
		InitialStep: "route",
		Steps: []StepDef{
			{
				ID: "route", Kind: StepBranch, Expression: "class",
				CaseToStep: map[string]string{"economy": "done"},
			},
			{ID: "done", Kind: StepEnd},
		},
	}
	c := NewCompiler(nil, nil, nil)
	if _, err := c.CompileAll([]FlowDefinition{def}); err == nil {
		t.Fatalf("expected a definition error for a branch not covering all enum values")
	}
}
