package subscription

import (
	"errors"
	"fmt"
)

// Errors returned by the Orchestrator.
var (
	ErrAlreadyStarted      = errors.New("subscription: orchestrator already started")
	ErrNotStarted          = errors.New("subscription: orchestrator not started")
	ErrClosed              = errors.New("subscription: orchestrator closed")
	ErrNoConsumers         = errors.New("subscription: at least one consumer is required")
	ErrUnknownNotification = errors.New("subscription: unknown notification")
	ErrAborted             = errors.New("subscription: event processing aborted")
)

// AbortError is returned when a Consumer resolves an event processing error
// with Abort. It matches ErrAborted when using errors.Is.
type AbortError struct {
	Consumer string
	Position any
	Err      error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf(
		"subscription: consumer '%s' aborted processing of event at position %v: %v",
		e.Consumer, e.Position, e.Err,
	)
}

// Unwrap returns both ErrAborted and the original processing error.
func (e *AbortError) Unwrap() []error {
	return []error{ErrAborted, e.Err}
}
