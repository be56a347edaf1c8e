package inmemory

import (
	"context"
	"sync"

	"github.com/get-eventually/go-catchup/subscription/checkpoint"
	"github.com/get-eventually/go-catchup/version"
)

var _ checkpoint.Checkpointer = new(Checkpointer)

// Checkpointer is a thread-safe, in-memory checkpoint.Checkpointer implementation.
type Checkpointer struct {
	mx          sync.RWMutex
	checkpoints map[string]version.SequenceNumber
}

// NewCheckpointer returns a new, empty Checkpointer.
func NewCheckpointer() *Checkpointer {
	return &Checkpointer{
		checkpoints: make(map[string]version.SequenceNumber),
	}
}

// Read returns the last checkpoint written for the named Subscription, or 0.
func (c *Checkpointer) Read(_ context.Context, name string) (version.SequenceNumber, error) {
	c.mx.RLock()
	defer c.mx.RUnlock()

	return c.checkpoints[name], nil
}

// Write stores the checkpoint for the named Subscription.
func (c *Checkpointer) Write(_ context.Context, name string, sequenceNumber version.SequenceNumber) error {
	c.mx.Lock()
	defer c.mx.Unlock()

	c.checkpoints[name] = sequenceNumber

	return nil
}
