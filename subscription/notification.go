package subscription

import "fmt"

type notificationKind uint8

const (
	kindNone notificationKind = iota
	kindCatchingUp
	kindEventReceived
	kindLive
	kindSubscriptionDropped
	kindCheckpointTimerElapsed
)

func (k notificationKind) String() string {
	switch k {
	case kindNone:
		return "none"
	case kindCatchingUp:
		return "catching-up"
	case kindEventReceived:
		return "event-received"
	case kindLive:
		return "live"
	case kindSubscriptionDropped:
		return "subscription-dropped"
	case kindCheckpointTimerElapsed:
		return "checkpoint-timer-elapsed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// notification is a reusable slot of the notification queue.
//
// Only the fields related to the current kind are meaningful,
// and only between a set* call and the next reset.
type notification[E, P any] struct {
	slot int
	kind notificationKind

	event    E
	position P

	reason DropReason
	err    error

	session SessionID
}

func (n *notification[E, P]) setCatchingUp() {
	n.kind = kindCatchingUp
}

func (n *notification[E, P]) setEventReceived(event E, position P) {
	n.kind = kindEventReceived
	n.event = event
	n.position = position
}

func (n *notification[E, P]) setLive() {
	n.kind = kindLive
}

func (n *notification[E, P]) setSubscriptionDropped(reason DropReason, err error) {
	n.kind = kindSubscriptionDropped
	n.reason = reason
	n.err = err
}

func (n *notification[E, P]) setCheckpointTimerElapsed(session SessionID) {
	n.kind = kindCheckpointTimerElapsed
	n.session = session
}

func (n *notification[E, P]) reset() {
	*n = notification[E, P]{slot: n.slot}
}
