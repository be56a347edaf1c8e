package subscription

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/get-eventually/go-catchup/logger"
)

// SessionID identifies a Consumer registered in an Orchestrator.
type SessionID = uuid.UUID

// session binds a single Consumer to the Orchestrator event loop,
// and keeps track of its progress and checkpoints.
//
// A session is only ever accessed by the event loop, one notification at a time.
type session[E, P any] struct {
	id       SessionID
	name     string
	consumer Consumer[E, P]
	compare  Comparator[P]
	logger   logger.Logger
	timer    *checkpointTimer

	start           Position[P]
	lastProcessed   Position[P]
	sinceCheckpoint int
	frequency       CheckpointFrequency
}

func (s *session[E, P]) notifyStarting(ctx context.Context) (Position[P], error) {
	start, err := s.consumer.OnStarting(ctx)
	if err != nil {
		return Position[P]{}, fmt.Errorf("subscription: consumer '%s' failed to start: %w", s.name, err)
	}

	s.start = start
	s.lastProcessed = start
	s.frequency = s.consumer.CatchUpCheckpointFrequency()

	logger.Info(s.logger, "consumer session starting", logger.With("startAfter", start.String()))

	return start, nil
}

func (s *session[E, P]) notifyCatchingUp(ctx context.Context) error {
	s.frequency = s.consumer.CatchUpCheckpointFrequency()

	if err := s.consumer.OnCatchingUp(ctx); err != nil {
		return fmt.Errorf("subscription: consumer '%s' failed while catching up: %w", s.name, err)
	}

	return nil
}

func (s *session[E, P]) notifyEvent(ctx context.Context, event E, position P) error {
	if !s.compare.IsAfter(position, s.start) {
		logger.Debug(s.logger, "event before starting position ignored", logger.With("position", position))

		return nil
	}

	result, err := deliver(ctx, s.name, s.consumer, event, position)
	if err != nil {
		return err
	}

	switch result {
	case outcomeProcessed:
		s.lastProcessed = At(position)
		s.sinceCheckpoint++

	case outcomeSkipped:
		// Skipped events move the position forward, but are not counted
		// towards the checkpoint threshold.
		s.lastProcessed = At(position)

		logger.Info(s.logger, "failed event skipped", logger.With("position", position))

	case outcomeIgnored:
	}

	if !s.frequency.reached(s.sinceCheckpoint) {
		return nil
	}

	if err := s.notifyCheckpoint(ctx); err != nil {
		return err
	}

	s.resetCheckpointTimer(ctx)

	return nil
}

func (s *session[E, P]) notifyLive(ctx context.Context) error {
	s.frequency = s.consumer.LiveCheckpointFrequency()

	if err := s.consumer.OnLive(ctx); err != nil {
		return fmt.Errorf("subscription: consumer '%s' failed while going live: %w", s.name, err)
	}

	logger.Info(s.logger, "consumer session is live")

	return nil
}

// notifyCheckpoint asks the Consumer to checkpoint the last processed position,
// if any event has been processed since the last checkpoint.
func (s *session[E, P]) notifyCheckpoint(ctx context.Context) error {
	if s.sinceCheckpoint == 0 {
		return nil
	}

	position, ok := s.lastProcessed.Value()
	if !ok {
		return nil
	}

	if err := s.consumer.OnCheckpoint(ctx, position); err != nil {
		return fmt.Errorf("subscription: consumer '%s' failed to checkpoint: %w", s.name, err)
	}

	logger.Debug(s.logger, "consumer checkpointed",
		logger.With("position", position),
		logger.With("events", s.sinceCheckpoint),
	)

	s.sinceCheckpoint = 0

	return nil
}

func (s *session[E, P]) notifySubscriptionDropped(ctx context.Context, reason DropReason, cause error) error {
	logger.Error(s.logger, "upstream subscription dropped",
		logger.With("reason", reason.String()),
		logger.Err(cause),
	)

	if err := s.consumer.OnSubscriptionDropped(ctx, reason, cause); err != nil {
		return fmt.Errorf("subscription: consumer '%s' failed to handle dropped subscription: %w", s.name, err)
	}

	return nil
}

func (s *session[E, P]) resetCheckpointTimer(ctx context.Context) {
	s.timer.reset(ctx, s.frequency.Interval())
}

func (s *session[E, P]) close() {
	s.timer.close()
}
