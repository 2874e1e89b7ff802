package action

import (
	"context"
	"errors"
	"testing"
)

func TestMockHandlerReturnsConfiguredResponsesInOrder(t *testing.T) {
	h := &MockHandler{
		HandlerName: "search_flights",
		Responses: []map[string]any{
			{"flights": []string{"AA100"}},
			{"flights": []string{"DL200"}},
		},
	}
	out1, err := h.Call(context.Background(), map[string]any{"origin": "NYC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out2, _ := h.Call(context.Background(), map[string]any{"origin": "SFO"})
	out3, _ := h.Call(context.Background(), map[string]any{"origin": "LAX"})

	if out1["flights"].([]string)[0] != "AA100" {
		t.Fatalf("first call should return the first configured response")
	}
	if out2["flights"].([]string)[0] != "DL200" {
		t.Fatalf("second call should return the second configured response")
	}
	if out3["flights"].([]string)[0] != "DL200" {
		t.Fatalf("third call should repeat the last configured response")
	}
	if h.CallCount() != 3 {
		t.Fatalf("CallCount() = %d, want 3", h.CallCount())
	}
}

func TestMockHandlerReturnsConfiguredError(t *testing.T) {
	wantErr := errors.New("boom")
	h := &MockHandler{HandlerName: "search_flights", Err: wantErr}
	_, err := h.Call(context.Background(), nil)
	if err != wantErr {
		t.Fatalf("Call error = %v, want %v", err, wantErr)
	}
}

func TestMockHandlerRecordsCallsAndReset(t *testing.T) {
	h := &MockHandler{HandlerName: "search_flights"}
	_, _ = h.Call(context.Background(), map[string]any{"a": 1})
	if len(h.Calls) != 1 {
		t.Fatalf("expected one recorded call")
	}
	h.Reset()
	if len(h.Calls) != 0 || h.CallCount() != 0 {
		t.Fatalf("expected Reset to clear call history")
	}
}

func TestMockHandlerName(t *testing.T) {
	h := &MockHandler{HandlerName: "search_flights"}
	if h.Name() != "search_flights" {
		t.Fatalf("Name() = %q, want %q", h.Name(), "search_flights")
	}
}
