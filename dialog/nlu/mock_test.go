package nlu

import (
	"context"
	"errors"
	"testing"

	"github.com/jmorenobl/soni-sub010/dialog"
)

func TestMockChatModelReturnsResponsesInOrder(t *testing.T) {
	m := &MockChatModel{Responses: []ChatOut{{Text: "first"}, {Text: "second"}}}
	out1, _ := m.Chat(context.Background(), nil, nil)
	out2, _ := m.Chat(context.Background(), nil, nil)
	out3, _ := m.Chat(context.Background(), nil, nil)

	if out1.Text != "first" || out2.Text != "second" || out3.Text != "second" {
		t.Fatalf("unexpected response sequence: %q %q %q", out1.Text, out2.Text, out3.Text)
	}
	if m.CallCount() != 3 {
		t.Fatalf("CallCount() = %d, want 3", m.CallCount())
	}
}

func TestMockChatModelReturnsConfiguredError(t *testing.T) {
	wantErr := errors.New("boom")
	m := &MockChatModel{Err: wantErr}
	_, err := m.Chat(context.Background(), nil, nil)
	if err != wantErr {
		t.Fatalf("Chat error = %v, want %v", err, wantErr)
	}
}

func TestMockChatModelRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &MockChatModel{Responses: []ChatOut{{Text: "unused"}}}
	if _, err := m.Chat(ctx, nil, nil); err == nil {
		t.Fatalf("expected an error for a cancelled context")
	}
}

func TestMockProviderLooksUpByExactMessage(t *testing.T) {
	p := &MockProvider{
		Outputs: map[string]dialog.NLUOutput{
			"NYC": {Commands: []dialog.Command{{Kind: dialog.SetSlot, SlotName: "origin", Value: "NYC"}}},
		},
		Default: dialog.NLUOutput{Reasoning: "unrecognized"},
	}

	out, err := p.Understand(context.Background(), "NYC", dialog.NLUContext{})
	if err != nil {
		t.Fatalf("Understand returned error: %v", err)
	}
	if len(out.Commands) != 1 {
		t.Fatalf("expected the configured output for an exact match")
	}

	fallback, _ := p.Understand(context.Background(), "something else", dialog.NLUContext{})
	if fallback.Reasoning != "unrecognized" {
		t.Fatalf("expected the Default output for an unmatched message")
	}

	if len(p.Messages) != 2 {
		t.Fatalf("expected Messages to record both calls, got %v", p.Messages)
	}
}
