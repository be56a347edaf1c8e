package projection

import (
	"context"
	"fmt"

	"github.com/get-eventually/go-catchup/event"
)

var _ event.Processor = new(Router)

// Router is an event.Processor dispatching Domain Events to the Processor
// registered for their name.
//
// Events with no registered Processor are not processed, and do not
// count towards the next checkpoint.
type Router struct {
	processors map[string]event.Processor
}

// NewRouter returns a new, empty Router.
func NewRouter() *Router {
	return &Router{processors: make(map[string]event.Processor)}
}

// Handle registers the Processor for Domain Events with the specified names.
// Handle should be called before the Router starts processing events.
func (r *Router) Handle(processor event.Processor, names ...string) *Router {
	for _, name := range names {
		r.processors[name] = processor
	}

	return r
}

// Process implements event.Processor.
func (r *Router) Process(ctx context.Context, evt event.Persisted) error {
	processor, ok := r.processors[evt.Message.Name()]
	if !ok {
		DoNotCheckpoint(ctx)
		return nil
	}

	if err := processor.Process(ctx, evt); err != nil {
		return fmt.Errorf("projection.Router: failed to process '%s': %w", evt.Message.Name(), err)
	}

	return nil
}
