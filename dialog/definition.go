package dialog

// SlotType is the declared type a slot value is validated against at
// store time.
type SlotType string

const (
	SlotString     SlotType = "string"
	SlotNumber     SlotType = "number"
	SlotBoolean    SlotType = "boolean"
	SlotEnum       SlotType = "enum"
	SlotDate       SlotType = "date"
	SlotStructured SlotType = "structured"
)

// SlotDef declares one slot a flow can collect: its type, the validator
// used to accept or reject a candidate value, and the prompt template
// shown when it is collected.
type SlotDef struct {
	Name       string   `json:"name"`
	Type       SlotType `json:"type"`
	Validator  string   `json:"validator,omitempty"`
	Prompt     string   `json:"prompt"`
	EnumValues []string `json:"enum_values,omitempty"`
}

// StepKind is the tagged variant of a declared flow step.
type StepKind string

const (
	StepCollect StepKind = "collect"
	StepSay     StepKind = "say"
	StepInform  StepKind = "inform"
	StepConfirm StepKind = "confirm"
	StepAction  StepKind = "action"
	StepBranch  StepKind = "branch"
	StepWhile   StepKind = "while"
	StepJump    StepKind = "jump"
	StepEnd     StepKind = "end"
)

// StepDef is one declared step within a flow definition, as authored
// before compilation. Only the fields relevant to its Kind are populated;
// the compiler validates that the combination is well-formed.
type StepDef struct {
	ID   string   `json:"id"`
	Kind StepKind `json:"kind"`

	// collect
	Slot      string `json:"slot,omitempty"`
	Validator string `json:"validator,omitempty"`

	// say / inform / confirm
	Template   string `json:"template,omitempty"`
	WaitForAck bool   `json:"wait_for_ack,omitempty"`

	// action
	Handler       string            `json:"handler,omitempty"`
	InputMapping  map[string]string `json:"input_mapping,omitempty"`  // action input key -> source slot name
	OutputMapping map[string]string `json:"output_mapping,omitempty"` // action output key -> destination slot name
	OnError       string            `json:"on_error,omitempty"`       // next step on action_error; empty pops the flow with an error result

	// branch
	Expression  string            `json:"expression,omitempty"`
	CaseToStep  map[string]string `json:"case_to_step,omitempty"`
	DefaultStep string            `json:"default_step,omitempty"`

	// while
	Condition string `json:"condition,omitempty"`
	BodyStep  string `json:"body_step,omitempty"`

	// jump
	Target string `json:"target,omitempty"`

	// end
	Outputs map[string]string `json:"outputs,omitempty"` // declared output name -> source slot name

	// collect / say / inform / confirm / action: the step to follow on the
	// "done" routing tag.
	Next string `json:"next,omitempty"`
}

// FlowDefinition is one flow as authored: a name, its declared slots and
// outputs, its steps, and the step to begin at. Serialization format
// (YAML, JSON, code) is irrelevant to the core — this is the in-memory
// shape any loader produces.
type FlowDefinition struct {
	Name        string    `json:"name"`
	Slots       []SlotDef `json:"slots"`
	Outputs     []string  `json:"outputs"`
	Steps       []StepDef `json:"steps"`
	InitialStep string    `json:"initial_step"`
}

// ActionSpec declares an action's expected input keys, used by the
// compiler to validate that a step's InputMapping keys match the
// action's declared inputs.
type ActionSpec struct {
	Name   string
	Inputs []string
}
