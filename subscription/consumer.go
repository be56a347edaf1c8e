package subscription

import (
	"context"
	"fmt"
)

// Result is the outcome of a Consumer processing an event.
type Result uint8

const (
	// Processed signals the event has been processed, and its position
	// should be taken into account for the next checkpoint.
	Processed Result = iota
	// Ignored signals the event was not of interest to the Consumer.
	Ignored
)

func (r Result) String() string {
	switch r {
	case Processed:
		return "processed"
	case Ignored:
		return "ignored"
	default:
		return fmt.Sprintf("Result(%d)", uint8(r))
	}
}

// Resolution is the decision taken by a Consumer when processing an event fails.
type Resolution uint8

const (
	// Abort stops the whole Subscription, reporting the processing error.
	Abort Resolution = iota
	// Retry processes the same event again.
	Retry
	// Skip moves on to the next event, as if the failed one was handled.
	Skip
)

func (r Resolution) String() string {
	switch r {
	case Abort:
		return "abort"
	case Retry:
		return "retry"
	case Skip:
		return "skip"
	default:
		return fmt.Sprintf("Resolution(%d)", uint8(r))
	}
}

// DropReason describes why an upstream subscription has been dropped.
type DropReason uint8

// All the known DropReason values.
const (
	DropReasonUnknown DropReason = iota
	DropReasonDisposed
	DropReasonServerError
	DropReasonSubscriberError
	DropReasonConnectionClosed
)

func (r DropReason) String() string {
	switch r {
	case DropReasonUnknown:
		return "unknown"
	case DropReasonDisposed:
		return "disposed"
	case DropReasonServerError:
		return "server-error"
	case DropReasonSubscriberError:
		return "subscriber-error"
	case DropReasonConnectionClosed:
		return "connection-closed"
	default:
		return fmt.Sprintf("DropReason(%d)", uint8(r))
	}
}

// Consumer is an event processor bound to a Subscription through an Orchestrator.
//
// All the methods are called from the Orchestrator event loop, one notification
// at a time: implementations don't need to synchronize their own state,
// unless shared with other components.
type Consumer[E, P any] interface {
	// CatchUpCheckpointFrequency is the checkpoint policy used while catching up.
	CatchUpCheckpointFrequency() CheckpointFrequency

	// LiveCheckpointFrequency is the checkpoint policy used once live.
	LiveCheckpointFrequency() CheckpointFrequency

	// OnStarting is called when the Subscription is starting, and should
	// return the position after which the Consumer wants to resume,
	// usually its last checkpoint, or Beginning.
	OnStarting(ctx context.Context) (Position[P], error)

	// OnCatchingUp is called when the upstream starts sending historical events.
	OnCatchingUp(ctx context.Context) error

	// OnEvent is called for every event strictly after the starting position.
	OnEvent(ctx context.Context, event E, position P) (Result, error)

	// OnCheckpoint is called with the position of the last processed event,
	// according to the active CheckpointFrequency.
	OnCheckpoint(ctx context.Context, position P) error

	// OnLive is called when all historical events have been delivered.
	OnLive(ctx context.Context) error

	// OnEventError is called when OnEvent fails, to decide how to move forward.
	OnEventError(ctx context.Context, event E, position P, err error) (Resolution, error)

	// OnSubscriptionDropped is called when the upstream subscription has been dropped.
	// The Subscription is not restarted automatically.
	OnSubscriptionDropped(ctx context.Context, reason DropReason, err error) error
}

// NopConsumer can be embedded in Consumer implementations to provide
// default behaviors for the methods not of interest: no checkpoints,
// start from the beginning, abort on errors.
type NopConsumer[E, P any] struct{}

// CatchUpCheckpointFrequency returns NoCheckpoint.
func (NopConsumer[E, P]) CatchUpCheckpointFrequency() CheckpointFrequency { return NoCheckpoint }

// LiveCheckpointFrequency returns NoCheckpoint.
func (NopConsumer[E, P]) LiveCheckpointFrequency() CheckpointFrequency { return NoCheckpoint }

// OnStarting starts from the beginning of the Event Stream.
func (NopConsumer[E, P]) OnStarting(context.Context) (Position[P], error) { return Beginning[P](), nil }

// OnCatchingUp does nothing.
func (NopConsumer[E, P]) OnCatchingUp(context.Context) error { return nil }

// OnEvent ignores the event.
func (NopConsumer[E, P]) OnEvent(context.Context, E, P) (Result, error) { return Ignored, nil }

// OnCheckpoint does nothing.
func (NopConsumer[E, P]) OnCheckpoint(context.Context, P) error { return nil }

// OnLive does nothing.
func (NopConsumer[E, P]) OnLive(context.Context) error { return nil }

// OnEventError aborts the Subscription.
func (NopConsumer[E, P]) OnEventError(context.Context, E, P, error) (Resolution, error) {
	return Abort, nil
}

// OnSubscriptionDropped does nothing.
func (NopConsumer[E, P]) OnSubscriptionDropped(context.Context, DropReason, error) error { return nil }
