// Package event contains the Domain Event model delivered by catch-up
// Subscriptions, and the Processor abstraction used to handle them.
package event

import (
	"github.com/get-eventually/go-catchup/message"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/version"
)

// Event is a Message representing some Domain information that has happened
// in the past, which is of vital information to the Domain itself.
//
// Event type names should be phrased in the past tense, to enforce the notion
// of "information happened in the past".
type Event message.Message

// Envelope contains a Domain Event and possible metadata associated to it.
type Envelope message.GenericEnvelope

// StreamID identifies an Event Stream, usually the one of a single Aggregate instance.
type StreamID string

// Persisted represents an Domain Event that has been persisted into the Event Store.
type Persisted struct {
	StreamID
	version.Version
	Envelope

	// SequenceNumber is the global position of the Event in the Event Store,
	// used by Subscriptions to resume after the last checkpoint.
	SequenceNumber version.SequenceNumber
}

// Subscriber is the upstream-facing surface of a Subscription consuming
// persisted Domain Events, positioned by their global sequence number.
type Subscriber = subscription.Subscriber[Persisted, version.SequenceNumber]

// Stream is an upstream Event Store that can be subscribed to from a certain
// global sequence number.
type Stream = subscription.Stream[Persisted, version.SequenceNumber]

// Consumer is a subscription.Consumer of persisted Domain Events.
type Consumer = subscription.Consumer[Persisted, version.SequenceNumber]

// Position is a global sequence number position in the Event Store,
// or the beginning of it.
type Position = subscription.Position[version.SequenceNumber]

// PositionFromSequenceNumber maps a checkpointed sequence number into
// a subscription Position, where zero means "from the beginning".
func PositionFromSequenceNumber(sequenceNumber version.SequenceNumber) Position {
	if sequenceNumber == 0 {
		return subscription.Beginning[version.SequenceNumber]()
	}

	return subscription.At(sequenceNumber)
}
