package event

import (
	"context"

	"github.com/get-eventually/go-catchup/version"
)

// Appender is an Event Store trait used to append new Domain Events in the Event Stream.
type Appender interface {
	Append(ctx context.Context, id StreamID, expected version.Check, events ...Envelope) (version.Version, error)
}

// Store represents an Event Store that can append new Domain Events
// and be subscribed to, in order to receive all Domain Events ever committed.
type Store interface {
	Appender
	Stream
}
