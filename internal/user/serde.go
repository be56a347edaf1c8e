package user

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/get-eventually/go-catchup/serde"
)

type jsonWasCreated struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
	Email     string `json:"email"`
}

type jsonEmailWasUpdated struct {
	Email string `json:"email"`
}

type jsonEvent struct {
	ID              string               `json:"id"`
	RecordTime      time.Time            `json:"recordTime"`
	WasCreated      *jsonWasCreated      `json:"wasCreated,omitempty"`
	EmailWasUpdated *jsonEmailWasUpdated `json:"emailWasUpdated,omitempty"`
}

const birthDateLayout = time.DateOnly

// EventJSONSerde is the serde.Serde implementation for User domain events
// to map to their JSON representation.
var EventJSONSerde = serde.Chain[*Event, *jsonEvent, []byte](
	serde.Fuse[*Event, *jsonEvent](
		serde.SerializerFunc[*Event, *jsonEvent](jsonEventSerializer),
		serde.DeserializerFunc[*Event, *jsonEvent](jsonEventDeserializer),
	),
	serde.NewJSON(func() *jsonEvent { return new(jsonEvent) }),
)

// RegisterSerdes registers the User domain events serde in the provided Registry.
func RegisterSerdes(registry *serde.Registry[[]byte]) {
	serde.Register[*Event](registry, EventJSONSerde, WasCreatedName, EmailWasUpdatedName)
}

func jsonEventSerializer(evt *Event) (*jsonEvent, error) {
	dto := &jsonEvent{
		ID:         evt.ID.String(),
		RecordTime: evt.RecordTime,
	}

	switch kind := evt.Kind.(type) {
	case *WasCreated:
		dto.WasCreated = &jsonWasCreated{
			FirstName: kind.FirstName,
			LastName:  kind.LastName,
			BirthDate: kind.BirthDate.Format(birthDateLayout),
			Email:     kind.Email,
		}
	case *EmailWasUpdated:
		dto.EmailWasUpdated = &jsonEmailWasUpdated{Email: kind.Email}
	default:
		return nil, fmt.Errorf("user.jsonEventSerializer: invalid event type, %T", kind)
	}

	return dto, nil
}

func jsonEventDeserializer(dto *jsonEvent) (*Event, error) {
	id, err := uuid.Parse(dto.ID)
	if err != nil {
		return nil, fmt.Errorf("user.jsonEventDeserializer: failed to parse id: %w", err)
	}

	evt := &Event{
		ID:         id,
		RecordTime: dto.RecordTime,
	}

	switch {
	case dto.WasCreated != nil:
		birthDate, err := time.Parse(birthDateLayout, dto.WasCreated.BirthDate)
		if err != nil {
			return nil, fmt.Errorf("user.jsonEventDeserializer: failed to parse birth date: %w", err)
		}

		evt.Kind = &WasCreated{
			FirstName: dto.WasCreated.FirstName,
			LastName:  dto.WasCreated.LastName,
			BirthDate: birthDate,
			Email:     dto.WasCreated.Email,
		}
	case dto.EmailWasUpdated != nil:
		evt.Kind = &EmailWasUpdated{Email: dto.EmailWasUpdated.Email}
	default:
		return nil, fmt.Errorf("user.jsonEventDeserializer: no event kind found")
	}

	return evt, nil
}
