package subscription

import (
	"context"

	"github.com/get-eventually/go-catchup/logger"
)

var _ Interceptor[any, int] = LoggingInterceptor[any, int]{}

// LoggingInterceptor is an Interceptor that logs the Consumer lifecycle
// calls and their outcome.
type LoggingInterceptor[E, P any] struct {
	NopInterceptor[E, P]

	Name   string
	Logger logger.Logger
}

// InterceptStarting logs the starting position returned by the Consumer.
func (li LoggingInterceptor[E, P]) InterceptStarting(
	ctx context.Context,
	next func(ctx context.Context) (Position[P], error),
) (Position[P], error) {
	position, err := next(ctx)
	if err != nil {
		logger.Error(li.Logger, "consumer failed to start", logger.With("consumer", li.Name), logger.Err(err))
		return position, err
	}

	logger.Info(li.Logger, "consumer started",
		logger.With("consumer", li.Name),
		logger.With("startAfter", position.String()),
	)

	return position, nil
}

// InterceptEvent logs the result of processing the event.
func (li LoggingInterceptor[E, P]) InterceptEvent(
	ctx context.Context,
	event E,
	position P,
	next func(ctx context.Context, event E, position P) (Result, error),
) (Result, error) {
	result, err := next(ctx, event, position)
	if err != nil {
		logger.Error(li.Logger, "consumer failed to process event",
			logger.With("consumer", li.Name),
			logger.With("position", position),
			logger.Err(err),
		)

		return result, err
	}

	logger.Debug(li.Logger, "event received",
		logger.With("consumer", li.Name),
		logger.With("position", position),
		logger.With("result", result.String()),
	)

	return result, nil
}

// InterceptCheckpoint logs the checkpointed position.
func (li LoggingInterceptor[E, P]) InterceptCheckpoint(
	ctx context.Context,
	position P,
	next func(ctx context.Context, position P) error,
) error {
	if err := next(ctx, position); err != nil {
		logger.Error(li.Logger, "consumer failed to checkpoint",
			logger.With("consumer", li.Name),
			logger.With("position", position),
			logger.Err(err),
		)

		return err
	}

	logger.Info(li.Logger, "consumer checkpointed",
		logger.With("consumer", li.Name),
		logger.With("position", position),
	)

	return nil
}

// InterceptEventError logs the resolution chosen for a failed event.
func (li LoggingInterceptor[E, P]) InterceptEventError(
	ctx context.Context,
	event E,
	position P,
	cause error,
	next func(ctx context.Context, event E, position P, err error) (Resolution, error),
) (Resolution, error) {
	resolution, err := next(ctx, event, position, cause)

	logger.Info(li.Logger, "event error resolved",
		logger.With("consumer", li.Name),
		logger.With("position", position),
		logger.With("resolution", resolution.String()),
		logger.With("cause", cause),
	)

	return resolution, err
}
