package subscription

import (
	"context"
	"errors"
	"fmt"
)

type outcome uint8

const (
	outcomeIgnored outcome = iota
	outcomeProcessed
	outcomeSkipped
)

// deliver hands the event to the Consumer, resolving processing errors
// through Consumer.OnEventError until the event is either processed,
// ignored, skipped, or the resolution is Abort.
//
// No backoff is applied between retries: Consumers that want one should
// wait in OnEventError before returning Retry.
func deliver[E, P any](
	ctx context.Context,
	name string,
	consumer Consumer[E, P],
	event E,
	position P,
) (outcome, error) {
	for {
		result, err := consumer.OnEvent(ctx, event, position)
		if err == nil {
			if result == Processed {
				return outcomeProcessed, nil
			}

			return outcomeIgnored, nil
		}

		resolution, resolveErr := consumer.OnEventError(ctx, event, position, err)
		if resolveErr != nil {
			return outcomeIgnored, fmt.Errorf(
				"subscription: consumer '%s' failed to resolve event error: %w",
				name, errors.Join(resolveErr, err),
			)
		}

		switch resolution {
		case Retry:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return outcomeIgnored, fmt.Errorf(
					"subscription: consumer '%s' stopped retrying event: %w",
					name, errors.Join(ctxErr, err),
				)
			}

		case Skip:
			return outcomeSkipped, nil

		default:
			return outcomeIgnored, &AbortError{
				Consumer: name,
				Position: position,
				Err:      err,
			}
		}
	}
}
