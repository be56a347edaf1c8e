package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/version"
)

// View is a public-facing representation of a User entity.
type View struct {
	ID                  uuid.UUID
	Email               string
	FirstName, LastName string
	BirthDate           time.Time

	Version version.Version // NOTE: used to avoid re-processing of already-processed events.
}

// ErrNotFound is returned when a specific User has not been found.
var ErrNotFound = errors.New("user: not found")

var _ event.Processor = new(ByEmail)

// ByEmail is a read model that maintains a list of Users indexed by their email,
// built by processing User domain events.
//
// ByEmail is thread-safe.
type ByEmail struct {
	mx        sync.RWMutex
	data      map[string]View
	idToEmail map[uuid.UUID]string
}

// NewByEmail creates a new ByEmail instance.
func NewByEmail() *ByEmail {
	return &ByEmail{
		data:      make(map[string]View),
		idToEmail: make(map[uuid.UUID]string),
	}
}

// Get returns the User with the specified email.
func (rm *ByEmail) Get(email string) (View, error) {
	rm.mx.RLock()
	defer rm.mx.RUnlock()

	user, ok := rm.data[email]
	if !ok {
		return View{}, fmt.Errorf("user.ByEmail: failed to get User by email: %w", ErrNotFound)
	}

	return user, nil
}

// Len returns the number of Users in the read model.
func (rm *ByEmail) Len() int {
	rm.mx.RLock()
	defer rm.mx.RUnlock()

	return len(rm.data)
}

// Process implements event.Processor.
func (rm *ByEmail) Process(_ context.Context, evt event.Persisted) error {
	rm.mx.Lock()
	defer rm.mx.Unlock()

	userEvent, ok := evt.Message.(*Event)
	if !ok {
		return fmt.Errorf("user.ByEmail: unexpected event type, %T", evt.Message)
	}

	switch kind := userEvent.Kind.(type) {
	case *WasCreated:
		rm.idToEmail[userEvent.ID] = kind.Email
		rm.data[kind.Email] = View{
			ID:        userEvent.ID,
			Email:     kind.Email,
			FirstName: kind.FirstName,
			LastName:  kind.LastName,
			BirthDate: kind.BirthDate,
			Version:   evt.Version,
		}

	case *EmailWasUpdated:
		previousEmail, ok := rm.idToEmail[userEvent.ID]
		if !ok {
			return fmt.Errorf("user.ByEmail: expected id to have been registered, none found")
		}

		view, ok := rm.data[previousEmail]
		if !ok {
			return fmt.Errorf("user.ByEmail: expected view to be registered, none found")
		}

		if view.Version >= evt.Version {
			return nil
		}

		delete(rm.data, previousEmail)

		view.Email = kind.Email
		view.Version = evt.Version
		rm.idToEmail[userEvent.ID] = view.Email
		rm.data[view.Email] = view

	default:
		return fmt.Errorf("user.ByEmail: unexpected User event kind, %T", kind)
	}

	return nil
}
