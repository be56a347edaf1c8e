package projection

import "context"

type checkpointHintKey struct{}

// withCheckpointHint exposes hint to the Processor through ctx,
// so that Checkpoint and DoNotCheckpoint can flip it.
func withCheckpointHint(ctx context.Context, hint *bool) context.Context {
	return context.WithValue(ctx, checkpointHintKey{}, hint)
}

func setCheckpointHint(ctx context.Context, value bool) {
	if hint, ok := ctx.Value(checkpointHintKey{}).(*bool); ok {
		*hint = value
	}
}

// Checkpoint marks the event being processed as one to count
// towards the next checkpoint. Consumers already do this by default.
func Checkpoint(ctx context.Context) { setCheckpointHint(ctx, true) }

// DoNotCheckpoint marks the event being processed as one the Consumer
// must not report as processed, so its position is not checkpointed.
func DoNotCheckpoint(ctx context.Context) { setCheckpointHint(ctx, false) }
