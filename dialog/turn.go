package dialog

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jmorenobl/soni-sub010/dialog/emit"
)

// stripeCount is the number of lock stripes process_turn hashes user keys
// across: a lock keyed by user_key, acquired at turn start and released
// at turn boundary. A fixed power of two keeps the hash-to-stripe
// mapping a cheap bitmask.
const stripeCount = 256

// turnLocks is a fixed-size array of mutexes; a user key deterministically
// hashes to one stripe, so two turns for the same user key serialize while
// turns for different users only contend on accidental hash collisions.
type turnLocks [stripeCount]sync.Mutex

func (l *turnLocks) stripe(userKey string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userKey))
	return &l[h.Sum32()%stripeCount]
}

// Result is what Engine.Run returns to a caller: the text to show the
// user and any error that ended the turn early (a turn-budget overrun or
// an unrecovered action failure still returns whatever text was produced
// before the error).
type Result struct {
	Text string
	Err  error
}

// Run is the process_turn entrypoint: it loads (or
// initializes) the user's state, runs one turn through the orchestrator,
// prunes and saves the result, and returns the concatenated response
// text. Turns for the same userKey are serialized; turns for different
// users run concurrently.
func (e *Engine) Run(ctx context.Context, userKey, userMessage string) Result {
	mu := e.locks().stripe(userKey)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()

	state, err := e.load(ctx, userKey)
	if err != nil {
		e.observeCheckpointError()
		return Result{Err: err}
	}

	turnResult := e.orch.RunTurn(ctx, state, userMessage)
	next := ApplyDelta(state, turnResult.Delta)
	next = Prune(next, e.cfg.PruneCaps)

	if e.store != nil {
		if saveErr := e.store.Save(ctx, userKey, next); saveErr != nil {
			e.observeCheckpointError()
			if turnResult.Err == nil {
				turnResult.Err = saveErr
			}
		}
	}

	sink := NewResponseSink(e.cfg.ResponseSeparator, e.cfg.ResponseCap)
	sink.AppendAll(turnResult.Messages)

	e.observeTurn(start, next, turnResult.Delta.CommandLogAppend, turnResult.Err)

	return Result{Text: sink.String(), Err: turnResult.Err}
}

// load fetches persisted state for userKey, migrating it to the current
// schema version if needed, or returns a freshly initialized state if
// none exists or no store is configured. A Load failure degrades to a
// fresh state rather than aborting the turn — only a schema_version newer
// than this build supports (or a missing migrator) is fatal.
func (e *Engine) load(ctx context.Context, userKey string) (DialogueState, error) {
	if e.store == nil {
		return NewDialogueState(userKey), nil
	}
	state, found, err := e.store.Load(ctx, userKey)
	if err != nil {
		e.observeCheckpointError()
		e.cfg.Emitter.Emit(emit.Event{UserKey: userKey, Msg: "checkpoint_load_error", Meta: map[string]any{"error": err.Error()}})
		return NewDialogueState(userKey), nil
	}
	if !found {
		return NewDialogueState(userKey), nil
	}
	if state.Meta.SchemaVersion != CurrentSchemaVersion {
		return MigrateSchema(state, e.cfg.Migrators)
	}
	return state, nil
}

func (e *Engine) locks() *turnLocks {
	e.locksOnce.Do(func() { e.locksInstance = &turnLocks{} })
	return e.locksInstance
}

func (e *Engine) observeTurn(start time.Time, state DialogueState, entries []CommandLogEntry, turnErr error) {
	if e.metrics == nil {
		return
	}
	outcome := "ok"
	if turnErr != nil {
		outcome = "error"
	}
	e.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	e.metrics.TurnDuration.Observe(time.Since(start).Seconds())
	e.metrics.ObserveCommandLog(entries)
	e.metrics.ActiveFlowDepth.Set(float64(len(state.FlowStack)))
}

func (e *Engine) observeCheckpointError() {
	if e.metrics == nil {
		return
	}
	e.metrics.CheckpointErrors.Inc()
}
