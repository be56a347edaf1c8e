package user_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/internal/user"
	"github.com/get-eventually/go-catchup/projection"
	"github.com/get-eventually/go-catchup/subscription"
)

func TestByEmail(t *testing.T) {
	id := uuid.New()
	streamID := event.StreamID(id.String())
	birthDate := time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

	t.Run("created users can be found by their email", func(t *testing.T) {
		readModel := user.NewByEmail()

		projection.Scenario().
			Given(streamID, user.Created(id, "John", "Doe", "john@doe.com", birthDate)).
			Then(func(t *testing.T) {
				view, err := readModel.Get("john@doe.com")
				require.NoError(t, err)

				assert.Equal(t, user.View{
					ID:        id,
					Email:     "john@doe.com",
					FirstName: "John",
					LastName:  "Doe",
					BirthDate: birthDate,
					Version:   1,
				}, view)
			}).
			Using(t, readModel)
	})

	t.Run("updated emails replace the previous ones", func(t *testing.T) {
		readModel := user.NewByEmail()
		otherID := uuid.New()

		projection.Scenario().
			Given(streamID,
				user.Created(id, "John", "Doe", "john@doe.com", birthDate),
				user.EmailUpdated(id, "john.doe@mail.com"),
			).
			And(event.StreamID(otherID.String()),
				user.Created(otherID, "Jane", "Doe", "jane@doe.com", birthDate),
			).
			Then(func(t *testing.T) {
				_, err := readModel.Get("john@doe.com")
				assert.ErrorIs(t, err, user.ErrNotFound)

				view, err := readModel.Get("john.doe@mail.com")
				require.NoError(t, err)
				assert.Equal(t, id, view.ID)

				assert.Equal(t, 2, readModel.Len())
			}).
			Using(t, readModel)
	})

	t.Run("email updates of unknown users abort the projection", func(t *testing.T) {
		projection.Scenario().
			Given(streamID, user.EmailUpdated(id, "john.doe@mail.com")).
			ThenError(subscription.ErrAborted).
			Using(t, user.NewByEmail())
	})
}
