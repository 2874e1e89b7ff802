package store

import (
	"context"
	"testing"

	"github.com/jmorenobl/soni-sub010/dialog"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreLoadMissingKeyReturnsNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, found, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if found {
		t.Fatalf("expected found=false for an unsaved key")
	}
}

func TestSQLiteStoreSaveThenLoadRoundTrips(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	state := dialog.NewDialogueState("u1")
	state.FlowStack = append(state.FlowStack, dialog.FlowContext{InstanceID: "i1", FlowName: "book_flight", State: dialog.LifecycleActive})

	if err := s.Save(ctx, "u1", state); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded, found, err := s.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !found {
		t.Fatalf("expected found=true after Save")
	}
	if len(loaded.FlowStack) != 1 || loaded.FlowStack[0].FlowName != "book_flight" {
		t.Fatalf("loaded state does not match saved state: %+v", loaded)
	}
}

func TestSQLiteStoreSaveUpsertsOnConflict(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_ = s.Save(ctx, "u1", dialog.NewDialogueState("u1"))
	updated := dialog.NewDialogueState("u1")
	updated.Meta.TurnCounter = 5
	if err := s.Save(ctx, "u1", updated); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}

	loaded, _, _ := s.Load(ctx, "u1")
	if loaded.Meta.TurnCounter != 5 {
		t.Fatalf("TurnCounter = %d, want 5", loaded.Meta.TurnCounter)
	}
}
