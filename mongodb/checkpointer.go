// Package mongodb contains a checkpoint.Checkpointer implementation
// storing Subscription checkpoints in a MongoDB collection.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/get-eventually/go-catchup/subscription/checkpoint"
	"github.com/get-eventually/go-catchup/version"
)

// DefaultCollectionName is the default collection used by a Checkpointer.
const DefaultCollectionName = "subscription_checkpoints"

var _ checkpoint.Checkpointer = Checkpointer{}

// Checkpointer is a checkpoint.Checkpointer implementation using MongoDB,
// storing one document per Subscription, keyed by the Subscription name.
//
// Checkpoints only move forward: writing a checkpoint older than
// the stored one has no effect.
type Checkpointer struct {
	Client         *mongo.Client
	DatabaseName   string
	CollectionName string
}

type checkpointDocument struct {
	Name               string `bson:"_id"`
	LastSequenceNumber int64  `bson:"last_sequence_number"`
}

func (c Checkpointer) collection() *mongo.Collection {
	name := c.CollectionName
	if name == "" {
		name = DefaultCollectionName
	}

	return c.Client.
		Database(c.DatabaseName, &options.DatabaseOptions{
			ReadConcern:    readconcern.Majority(),
			ReadPreference: readpref.Primary(),
			WriteConcern:   writeconcern.Majority(),
		}).
		Collection(name)
}

// Read implements checkpoint.Checkpointer.
func (c Checkpointer) Read(ctx context.Context, name string) (version.SequenceNumber, error) {
	var doc checkpointDocument

	err := c.collection().FindOne(ctx, bson.D{{Key: "_id", Value: name}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("mongodb.Checkpointer: failed to read checkpoint of '%s': %w", name, err)
	}

	return version.SequenceNumber(doc.LastSequenceNumber), nil
}

// Write implements checkpoint.Checkpointer.
func (c Checkpointer) Write(ctx context.Context, name string, sequenceNumber version.SequenceNumber) error {
	_, err := c.collection().UpdateOne(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{
			{Key: "$max", Value: bson.D{{Key: "last_sequence_number", Value: int64(sequenceNumber)}}},
			{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongodb.Checkpointer: failed to write checkpoint of '%s': %w", name, err)
	}

	return nil
}
