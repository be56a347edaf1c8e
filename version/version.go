// Package version contains the types used to address Domain Events
// inside an Event Stream and inside the whole Event Store.
package version

import "fmt"

// Version is the type to specify Event Stream versions.
// Versions should be starting from 1, as they represent the length of a single Event Stream.
type Version uint32

// SequenceNumber is the global offset of a Domain Event in the Event Store.
//
// Sequence numbers start from 1: the zero value is used by Checkpointers
// to signal that no event has been processed yet.
type SequenceNumber uint64

// ConflictError is returned by an Event Store when appending
// some events using an expected Event Stream version that does not match
// the current state of the Event Stream.
type ConflictError struct {
	Expected Version
	Actual   Version
}

func (err ConflictError) Error() string {
	return fmt.Sprintf(
		"version.Check: conflict detected; expected stream version: %d, actual: %d",
		err.Expected,
		err.Actual,
	)
}
