package dialog

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy configures automatic retry for transient action-handler
// failures — narrowed to the one place the engine calls out to user code
// mid-subgraph, gated on a handler error satisfying the Retryable()
// bool marker interface.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of calls, including the first.
	// A value <= 1 means no retries.
	MaxAttempts int

	// BaseDelay and MaxDelay bound the exponential backoff between
	// attempts; a random jitter of up to BaseDelay is added on top.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy retries once (two attempts) with modest backoff — enough to ride
// out a transient blip without stalling the turn for long.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay * time.Duration(int64(1)<<uint(attempt))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(p.BaseDelay) + 1)) // #nosec G404 -- retry jitter, not security-sensitive
	return delay + jitter
}

// CallWithRetry invokes handler.Call, retrying while the error is Retryable
// and attempts remain. It never retries a non-retryable error.
func CallWithRetry(ctx context.Context, policy RetryPolicy, handler ActionHandler, input map[string]any) (map[string]any, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := handler.Call(ctx, input)
		if err == nil {
			return out, nil
		}
		lastErr = err

		retryable, ok := err.(Retryable)
		if !ok || !retryable.Retryable() || attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(policy.backoff(attempt)):
		}
	}
	return nil, lastErr
}
