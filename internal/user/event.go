// Package user serves as a small domain used by the integration tests
// of the Event Store implementations and Subscriptions in the parent module.
package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/get-eventually/go-catchup/event"
)

var _ event.Event = new(Event)

// Event is the Domain Event of a User, carrying one of the event kinds.
type Event struct {
	ID         uuid.UUID
	RecordTime time.Time
	Kind       eventKind
}

// Name implements event.Event.
func (evt *Event) Name() string { return evt.Kind.Name() }

type eventKind interface {
	event.Event
	isEventKind()
}

var (
	_ eventKind = new(WasCreated)
	_ eventKind = new(EmailWasUpdated)
)

// Names of the User Domain Events.
const (
	WasCreatedName      = "UserWasCreated"
	EmailWasUpdatedName = "UserEmailWasUpdated"
)

// WasCreated is the domain event fired after a User is created.
type WasCreated struct {
	FirstName string
	LastName  string
	BirthDate time.Time
	Email     string
}

// Name implements message.Message.
func (*WasCreated) Name() string { return WasCreatedName }
func (*WasCreated) isEventKind() {}

// EmailWasUpdated is the domain event fired after a User email is updated.
type EmailWasUpdated struct {
	Email string
}

// Name implements message.Message.
func (*EmailWasUpdated) Name() string { return EmailWasUpdatedName }
func (*EmailWasUpdated) isEventKind() {}

// Created returns the Envelope of a new WasCreated event.
func Created(id uuid.UUID, firstName, lastName, email string, birthDate time.Time) event.Envelope {
	return event.Envelope{
		Message: &Event{
			ID:         id,
			RecordTime: time.Now().UTC().Truncate(time.Millisecond),
			Kind: &WasCreated{
				FirstName: firstName,
				LastName:  lastName,
				BirthDate: birthDate,
				Email:     email,
			},
		},
		Metadata: nil,
	}
}

// EmailUpdated returns the Envelope of a new EmailWasUpdated event.
func EmailUpdated(id uuid.UUID, email string) event.Envelope {
	return event.Envelope{
		Message: &Event{
			ID:         id,
			RecordTime: time.Now().UTC().Truncate(time.Millisecond),
			Kind:       &EmailWasUpdated{Email: email},
		},
		Metadata: nil,
	}
}
