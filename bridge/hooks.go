package bridge

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ErrorHookName is the extension event raised for every failed relay.
const ErrorHookName = "cf7_civicrm_error"

// ErrorHook receives relay failures. Hooks run synchronously in the order
// they were registered.
type ErrorHook func(ctx context.Context, event ErrorEvent)

// Hooks is the registry of extension points other components subscribe to.
type Hooks struct {
	mu      sync.RWMutex
	onError []ErrorHook
}

func NewHooks() *Hooks { return &Hooks{} }

// OnError subscribes fn to relay failures.
func (h *Hooks) OnError(fn ErrorHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = append(h.onError, fn)
}

// DispatchError calls every error hook. A panicking hook is logged and does
// not stop the others.
func (h *Hooks) DispatchError(ctx context.Context, logger zerolog.Logger, event ErrorEvent) {
	if h == nil {
		return
	}
	h.mu.RLock()
	hooks := make([]ErrorHook, len(h.onError))
	copy(hooks, h.onError)
	h.mu.RUnlock()

	for _, fn := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Interface("panic", r).Str("hook", ErrorHookName).Msg("error hook panicked")
				}
			}()
			fn(ctx, event)
		}()
	}
}

// OutcomeRecorder pushes outcomes to a queue and logs, never failing the
// caller.
type OutcomeRecorder struct {
	Queue OutcomeQueue   // Queue for storing outcomes; nil disables recording.
	Log   zerolog.Logger // Logger for recording push failures.
}

func (r *OutcomeRecorder) Record(ctx context.Context, outcome Outcome) {
	if r == nil || r.Queue == nil {
		return
	}
	if err := r.Queue.Push(ctx, outcome); err != nil {
		r.Log.Err(err).Msgf("Failed to push relay outcome: %s", outcome.Id)
	}
}
