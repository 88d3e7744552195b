package pipeline

import (
	"context"

	"github.com/memohai/stowbot/internal/transfer"
)

// State is a step of a transfer's lifecycle.
type State string

const (
	StateRequested   State = "requested"
	StateSizeChecked State = "size_checked"
	StateAdmitted    State = "admitted"
	StateStaging     State = "staging"
	StateValidated   State = "validated"
	StatePersisted   State = "persisted"
	StateCancelled   State = "cancelled"

	StateRateLimited        State = "rate_limited"
	StateSizeExceeded       State = "size_exceeded"
	StateBusy               State = "busy"
	StateExtractionFailed   State = "extraction_failed"
	StateTransferFailed     State = "transfer_failed"
	StateStorageFailed      State = "storage_failed"
	StateTempResourceFailed State = "temp_resource_failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	switch s {
	case StateRequested, StateSizeChecked, StateAdmitted, StateStaging, StateValidated:
		return false
	default:
		return true
	}
}

// stateFor maps an error kind to its error exit.
func stateFor(kind transfer.Kind) State {
	switch kind {
	case transfer.KindRateLimited:
		return StateRateLimited
	case transfer.KindBusy:
		return StateBusy
	case transfer.KindSizeExceeded:
		return StateSizeExceeded
	case transfer.KindExtractionFailed:
		return StateExtractionFailed
	case transfer.KindTransferFailed:
		return StateTransferFailed
	case transfer.KindTempResourceFailed:
		return StateTempResourceFailed
	default:
		return StateStorageFailed
	}
}

// Event is one state transition.
type Event struct {
	RequestID   string
	IdentityKey string
	State       State
	// Step and Steps describe fallback progress while staging remote media.
	Step  int
	Steps int
	Err   error
}

// Reporter receives state transitions, typically to update a chat message.
// Implementations must not block for long.
type Reporter interface {
	Transition(ctx context.Context, ev Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, ev Event)

func (f ReporterFunc) Transition(ctx context.Context, ev Event) { f(ctx, ev) }

type reporterKey struct{}

// WithReporter attaches r to ctx for the Submit or Start call it is passed to.
func WithReporter(ctx context.Context, r Reporter) context.Context {
	return context.WithValue(ctx, reporterKey{}, r)
}

func reporterFrom(ctx context.Context) Reporter {
	if r, ok := ctx.Value(reporterKey{}).(Reporter); ok && r != nil {
		return r
	}
	return nil
}
