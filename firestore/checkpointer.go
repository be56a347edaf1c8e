// Package firestore contains a checkpoint.Checkpointer implementation
// storing Subscription checkpoints in Google Cloud Firestore.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/get-eventually/go-catchup/subscription/checkpoint"
	"github.com/get-eventually/go-catchup/version"
)

// DefaultCollection is the default Firestore collection used by a Checkpointer.
const DefaultCollection = "SubscriptionCheckpoints"

const sequenceNumberField = "last_sequence_number"

var _ checkpoint.Checkpointer = Checkpointer{}

// Checkpointer is a checkpoint.Checkpointer implementation using Firestore,
// storing one document per Subscription, keyed by the Subscription name.
//
// Checkpoints only move forward: writing a checkpoint older than
// the stored one has no effect.
type Checkpointer struct {
	Client     *firestore.Client
	Collection string
}

func (c Checkpointer) document(name string) *firestore.DocumentRef {
	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	return c.Client.Collection(collection).Doc(name)
}

func readSequenceNumber(doc *firestore.DocumentSnapshot) (version.SequenceNumber, error) {
	value, err := doc.DataAt(sequenceNumberField)
	if err != nil {
		return 0, fmt.Errorf("failed to read checkpoint field: %w", err)
	}

	sequenceNumber, ok := value.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected checkpoint type, %T", value)
	}

	return version.SequenceNumber(sequenceNumber), nil
}

// Read implements checkpoint.Checkpointer.
func (c Checkpointer) Read(ctx context.Context, name string) (version.SequenceNumber, error) {
	doc, err := c.document(name).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("firestore.Checkpointer: failed to get checkpoint of '%s': %w", name, err)
	}

	sequenceNumber, err := readSequenceNumber(doc)
	if err != nil {
		return 0, fmt.Errorf("firestore.Checkpointer: failed to read checkpoint of '%s': %w", name, err)
	}

	return sequenceNumber, nil
}

// Write implements checkpoint.Checkpointer.
func (c Checkpointer) Write(ctx context.Context, name string, sequenceNumber version.SequenceNumber) error {
	docRef := c.document(name)

	err := c.Client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return fmt.Errorf("failed to get checkpoint: %w", err)
		}

		if err == nil {
			current, err := readSequenceNumber(doc)
			if err != nil {
				return err
			}

			if current >= sequenceNumber {
				return nil
			}
		}

		return tx.Set(docRef, map[string]any{
			sequenceNumberField: int64(sequenceNumber),
			"updated_at":        firestore.ServerTimestamp,
		})
	})
	if err != nil {
		return fmt.Errorf("firestore.Checkpointer: failed to write checkpoint of '%s': %w", name, err)
	}

	return nil
}
