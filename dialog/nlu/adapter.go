package nlu

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmorenobl/soni-sub010/dialog"
)

// commandsToolSchema is the JSON Schema for the "emit_commands" tool every
// adapter offers the model. It covers dialog.Command's fields except
// seed_slots, so the parsed tool input needs no further interpretation.
var commandsToolSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"commands": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"kind":       map[string]any{"type": "string"},
					"flow_name":  map[string]any{"type": "string"},
					"slot_name":  map[string]any{"type": "string"},
					"value":      map[string]any{},
					"topic":      map[string]any{"type": "string"},
					"confidence": map[string]any{"type": "number"},
				},
				"required": []string{"kind"},
			},
		},
		"confidence": map[string]any{"type": "number"},
		"reasoning":  map[string]any{"type": "string"},
	},
	"required": []string{"commands"},
}

// Adapter wraps any ChatModel as a dialog.NLUProvider by offering a single
// structured tool per turn and translating the first emit_commands call's
// arguments into an NLUOutput.
type Adapter struct {
	Model ChatModel
}

// NewAdapter constructs an Adapter over the given chat backend.
func NewAdapter(model ChatModel) *Adapter {
	return &Adapter{Model: model}
}

// Understand implements dialog.NLUProvider.
func (a *Adapter) Understand(ctx context.Context, userMessage string, nctx dialog.NLUContext) (dialog.NLUOutput, error) {
	messages := []Message{
		{Role: RoleSystem, Content: renderSystemPrompt(nctx)},
		{Role: RoleUser, Content: userMessage},
	}

	tools := []ToolSpec{{
		Name:        "emit_commands",
		Description: "Report the structured commands implied by the user's message.",
		Schema:      commandsToolSchema,
	}}

	out, err := a.Model.Chat(ctx, messages, tools)
	if err != nil {
		return dialog.NLUOutput{}, fmt.Errorf("chat model: %w", err)
	}

	for _, call := range out.ToolCalls {
		if call.Name != "emit_commands" {
			continue
		}
		return parseCommandsOutput(call.Input), nil
	}

	// The model answered in plain text instead of calling the tool: no
	// commands, and the text is kept as Reasoning.
	return dialog.NLUOutput{Reasoning: out.Text}, nil
}

func parseCommandsOutput(input map[string]any) dialog.NLUOutput {
	out := dialog.NLUOutput{}
	if reasoning, ok := input["reasoning"].(string); ok {
		out.Reasoning = reasoning
	}
	if conf, ok := input["confidence"].(float64); ok {
		out.Confidence = conf
	}

	raw, ok := input["commands"].([]any)
	if !ok {
		return out
	}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		cmd := dialog.Command{Kind: dialog.CommandKind(stringField(m, "kind"))}
		cmd.FlowName = stringField(m, "flow_name")
		cmd.SlotName = stringField(m, "slot_name")
		cmd.Topic = stringField(m, "topic")
		cmd.Value = m["value"]
		if conf, ok := m["confidence"].(float64); ok {
			cmd.Confidence = conf
		}
		if cmd.Kind != "" {
			out.Commands = append(out.Commands, cmd)
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// renderSystemPrompt builds the system message from the in-scope slot and
// action listing the orchestrator assembled for this turn.
func renderSystemPrompt(nctx dialog.NLUContext) string {
	var b strings.Builder
	b.WriteString("You are the natural language understanding stage of a task-oriented dialogue system.\n")
	b.WriteString("Call emit_commands with the structured commands implied by the user's latest message.\n")

	if nctx.ActiveFlowName != "" {
		fmt.Fprintf(&b, "Active flow: %s\n", nctx.ActiveFlowName)
	} else {
		b.WriteString("No flow is currently active.\n")
	}

	if len(nctx.InScopeSlots) > 0 {
		b.WriteString("In-scope slots:\n")
		for _, s := range nctx.InScopeSlots {
			fmt.Fprintf(&b, "- %s (%s, filled=%v)\n", s.Name, s.Type, s.IsFilled)
		}
	}

	if len(nctx.InScopeActions) > 0 {
		fmt.Fprintf(&b, "In-scope actions: %s\n", strings.Join(nctx.InScopeActions, ", "))
	}

	if nctx.Awaiting.Kind != dialog.AwaitNone {
		fmt.Fprintf(&b, "Awaiting: %s (%s)\n", nctx.Awaiting.Kind, nctx.Awaiting.Prompt)
	}

	fmt.Fprintf(&b, "Current time: %s\n", nctx.CurrentTime)
	return b.String()
}
