package subscription

import "time"

// NoCheckpoint is a CheckpointFrequency that never triggers periodic checkpoints.
var NoCheckpoint = CheckpointFrequency{}

// CheckpointFrequency describes when a Consumer should be asked to checkpoint
// its progress: after a certain number of processed events, after a time interval
// has elapsed, both (whichever comes first) or never.
//
// Use EveryEvents, EveryInterval or Every to build a new CheckpointFrequency.
type CheckpointFrequency struct {
	events   int
	interval time.Duration
}

// EveryEvents returns a CheckpointFrequency that triggers a checkpoint
// every n processed events.
func EveryEvents(n int) CheckpointFrequency {
	return Every(n, 0)
}

// EveryInterval returns a CheckpointFrequency that triggers a checkpoint
// when the specified interval has elapsed since the last one.
func EveryInterval(interval time.Duration) CheckpointFrequency {
	return Every(0, interval)
}

// Every returns a CheckpointFrequency that triggers a checkpoint every n
// processed events or when the specified interval has elapsed, whichever comes first.
//
// Non-positive values disable the related threshold.
func Every(n int, interval time.Duration) CheckpointFrequency {
	return CheckpointFrequency{
		events:   max(n, 0),
		interval: max(interval, 0),
	}
}

// Events returns the number of processed events after which to checkpoint,
// or zero if disabled.
func (f CheckpointFrequency) Events() int { return f.events }

// Interval returns the time interval after which to checkpoint,
// or zero if disabled.
func (f CheckpointFrequency) Interval() time.Duration { return f.interval }

// CanCheckpoint returns true if any of the thresholds is set.
func (f CheckpointFrequency) CanCheckpoint() bool {
	return f.events > 0 || f.interval > 0
}

func (f CheckpointFrequency) reached(processed int) bool {
	return f.events > 0 && processed >= f.events
}
