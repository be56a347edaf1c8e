package subscription

import (
	"cmp"
	"fmt"
)

// Comparator compares two upstream positions, and returns a negative number
// when a comes before b, zero when they're equal, a positive number otherwise.
type Comparator[P any] func(a, b P) int

// Ordered returns a Comparator for position types supporting the ordering operators.
func Ordered[P cmp.Ordered]() Comparator[P] {
	return cmp.Compare[P]
}

// Position is a marker of a place in the upstream Event Stream.
//
// The zero value represents the beginning of the Event Stream,
// that is, before any event has been committed.
type Position[P any] struct {
	value P
	set   bool
}

// Beginning returns a Position pointing to the beginning of the Event Stream.
func Beginning[P any]() Position[P] {
	return Position[P]{}
}

// At returns a Position pointing to the specified upstream position.
func At[P any](value P) Position[P] {
	return Position[P]{value: value, set: true}
}

// Value returns the upstream position, if any.
func (p Position[P]) Value() (P, bool) {
	return p.value, p.set
}

// IsBeginning returns true if the Position points to the beginning of the Event Stream.
func (p Position[P]) IsBeginning() bool {
	return !p.set
}

func (p Position[P]) String() string {
	if !p.set {
		return "<beginning>"
	}

	return fmt.Sprintf("%v", p.value)
}

// Compare compares two Positions, using the Comparator for the upstream positions.
// The beginning of the Event Stream comes before any other position.
func (c Comparator[P]) Compare(a, b Position[P]) int {
	switch {
	case !a.set && !b.set:
		return 0
	case !a.set:
		return -1
	case !b.set:
		return 1
	default:
		return c(a.value, b.value)
	}
}

// IsAfter returns true if the upstream position comes strictly after the provided Position.
func (c Comparator[P]) IsAfter(position P, than Position[P]) bool {
	return c.Compare(At(position), than) > 0
}

// Earliest returns the earliest of the provided Positions, or the beginning
// of the Event Stream if no Position has been provided.
func (c Comparator[P]) Earliest(positions ...Position[P]) Position[P] {
	if len(positions) == 0 {
		return Beginning[P]()
	}

	earliest := positions[0]
	for _, position := range positions[1:] {
		if c.Compare(position, earliest) < 0 {
			earliest = position
		}
	}

	return earliest
}
