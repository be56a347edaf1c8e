package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/logger"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/subscription/checkpoint"
	"github.com/get-eventually/go-catchup/version"
)

// Default checkpoint frequencies used by a Consumer, if not specified.
var (
	DefaultCatchUpCheckpointFrequency = subscription.Every(100, 5*time.Second)
	DefaultLiveCheckpointFrequency    = subscription.Every(1, time.Second)
)

var _ event.Consumer = new(Consumer)

// Consumer is a subscription Consumer that processes persisted Domain Events
// using an event.Processor, usually to update a read model.
//
// On start, the Consumer resumes after the last checkpoint saved
// in its Checkpointer, under the Consumer name. All processed events are
// checkpointed, unless the Processor calls DoNotCheckpoint.
type Consumer struct {
	name         string
	processor    event.Processor
	checkpointer checkpoint.Checkpointer
	catchUp      subscription.CheckpointFrequency
	live         subscription.CheckpointFrequency
	errorPolicy  ErrorPolicy
	logger       logger.Logger
}

// NewConsumer returns a new Consumer for the Processor.
func NewConsumer(name string, processor event.Processor, options ...Option[*Consumer]) *Consumer {
	c := &Consumer{
		name:         name,
		processor:    processor,
		checkpointer: checkpoint.NopCheckpointer,
		catchUp:      DefaultCatchUpCheckpointFrequency,
		live:         DefaultLiveCheckpointFrequency,
		errorPolicy:  AbortOnError,
	}

	for _, opt := range options {
		opt.apply(c)
	}

	c.logger = logger.WithFields(c.logger, logger.With("projection", name))

	return c
}

// Name returns the name of the Consumer, used as checkpoint key.
func (c *Consumer) Name() string { return c.name }

// CatchUpCheckpointFrequency implements subscription.Consumer.
func (c *Consumer) CatchUpCheckpointFrequency() subscription.CheckpointFrequency { return c.catchUp }

// LiveCheckpointFrequency implements subscription.Consumer.
func (c *Consumer) LiveCheckpointFrequency() subscription.CheckpointFrequency { return c.live }

// OnStarting reads the last checkpoint from the Checkpointer.
func (c *Consumer) OnStarting(ctx context.Context) (event.Position, error) {
	sequenceNumber, err := c.checkpointer.Read(ctx, c.name)
	if err != nil {
		return event.Position{}, fmt.Errorf("projection.Consumer: failed to read checkpoint: %w", err)
	}

	logger.Info(c.logger, "projection resuming", logger.With("checkpoint", sequenceNumber))

	return event.PositionFromSequenceNumber(sequenceNumber), nil
}

// OnCatchingUp implements subscription.Consumer.
func (c *Consumer) OnCatchingUp(context.Context) error {
	logger.Info(c.logger, "projection catching up")
	return nil
}

// OnEvent processes the event using the Processor.
func (c *Consumer) OnEvent(
	ctx context.Context,
	evt event.Persisted,
	_ version.SequenceNumber,
) (subscription.Result, error) {
	shouldCheckpoint := true
	ctx = withCheckpointHint(ctx, &shouldCheckpoint)

	if err := c.processor.Process(ctx, evt); err != nil {
		return subscription.Ignored, fmt.Errorf("projection.Consumer: failed to process event: %w", err)
	}

	if !shouldCheckpoint {
		return subscription.Ignored, nil
	}

	return subscription.Processed, nil
}

// OnCheckpoint writes the checkpoint to the Checkpointer.
func (c *Consumer) OnCheckpoint(ctx context.Context, sequenceNumber version.SequenceNumber) error {
	if err := c.checkpointer.Write(ctx, c.name, sequenceNumber); err != nil {
		return fmt.Errorf("projection.Consumer: failed to write checkpoint: %w", err)
	}

	return nil
}

// OnLive implements subscription.Consumer.
func (c *Consumer) OnLive(context.Context) error {
	logger.Info(c.logger, "projection is live")
	return nil
}

// OnEventError resolves the failure using the configured ErrorPolicy.
func (c *Consumer) OnEventError(
	ctx context.Context,
	evt event.Persisted,
	_ version.SequenceNumber,
	err error,
) (subscription.Resolution, error) {
	resolution, resolveErr := c.errorPolicy.Resolve(ctx, evt, err)
	if resolveErr != nil {
		return subscription.Abort, fmt.Errorf("projection.Consumer: failed to resolve event error: %w", resolveErr)
	}

	logger.Error(c.logger, "projection failed to process event",
		logger.With("sequenceNumber", evt.SequenceNumber),
		logger.With("event", evt.Message.Name()),
		logger.With("resolution", resolution.String()),
		logger.Err(err),
	)

	return resolution, nil
}

// OnSubscriptionDropped implements subscription.Consumer.
func (c *Consumer) OnSubscriptionDropped(_ context.Context, reason subscription.DropReason, err error) error {
	logger.Error(c.logger, "projection subscription dropped",
		logger.With("reason", reason.String()),
		logger.Err(err),
	)

	return nil
}
