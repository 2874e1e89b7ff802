package dialog

import (
	"context"
	"testing"
	"time"
)

// retryableErr satisfies the Retryable marker interface and always
// reports true, simulating a transient failure.
type retryableErr struct{}

func (retryableErr) Error() string   { return "transient failure" }
func (retryableErr) Retryable() bool { return true }

// terminalErr does not implement Retryable at all, simulating a failure
// the executor should never retry.
type terminalErr struct{}

func (terminalErr) Error() string { return "terminal failure" }

type flakyHandler struct {
	failures  int
	retryable bool
	calls     int
}

func (h *flakyHandler) Name() string { return "flaky" }

func (h *flakyHandler) Call(_ context.Context, input map[string]any) (map[string]any, error) {
	h.calls++
	if h.calls <= h.failures {
		if h.retryable {
			return nil, retryableErr{}
		}
		return nil, terminalErr{}
	}
	return map[string]any{"ok": true}, nil
}

func TestCallWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	h := &flakyHandler{failures: 1, retryable: true}
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	out, err := CallWithRetry(context.Background(), policy, h, nil)
	if err != nil {
		t.Fatalf("CallWithRetry returned error: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("expected ok=true, got %+v", out)
	}
	if h.calls != 2 {
		t.Fatalf("calls = %d, want 2", h.calls)
	}
}

func TestCallWithRetryNeverRetriesNonRetryableError(t *testing.T) {
	h := &flakyHandler{failures: 3, retryable: false}
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	_, err := CallWithRetry(context.Background(), policy, h, nil)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if h.calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retries for a non-retryable error)", h.calls)
	}
}

func TestCallWithRetryExhaustsMaxAttempts(t *testing.T) {
	h := &flakyHandler{failures: 10, retryable: true}
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	_, err := CallWithRetry(context.Background(), policy, h, nil)
	if err == nil {
		t.Fatalf("expected an error once attempts are exhausted")
	}
	if h.calls != 3 {
		t.Fatalf("calls = %d, want 3", h.calls)
	}
}
