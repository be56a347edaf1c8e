package correlation

import (
	"context"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/version"
)

// Metadata keys carrying the correlation data of a Domain Event.
const (
	EventIDKey       = "Event-Id"
	CorrelationIDKey = "Correlation-Id"
	CausationIDKey   = "Causation-Id"
)

type (
	correlationCtxKey struct{}
	causationCtxKey   struct{}
)

// WithCorrelationID returns a context carrying the specified correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationCtxKey{}, id)
}

// WithCausationID returns a context carrying the specified causation id.
func WithCausationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, causationCtxKey{}, id)
}

// IDContext returns the correlation id in the context, if any.
func IDContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationCtxKey{}).(string)
	return id, ok
}

// CausationIDContext returns the causation id in the context, if any.
func CausationIDContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(causationCtxKey{}).(string)
	return id, ok
}

// contextFor extends the context with the correlation data found in
// the Domain Event metadata.
//
// Actions taken while processing the Domain Event are caused by it,
// hence its "Event-Id" is used as causation id.
func contextFor(ctx context.Context, evt event.Persisted) context.Context {
	if correlationID, ok := evt.Metadata[CorrelationIDKey]; ok {
		ctx = WithCorrelationID(ctx, correlationID)
	}

	if eventID, ok := evt.Metadata[EventIDKey]; ok {
		ctx = WithCausationID(ctx, eventID)
	}

	return ctx
}

var _ event.Processor = ProcessorWrapper{}

// ProcessorWrapper adds the correlation and causation ids of the processed
// Domain Event to the context of the wrapped event.Processor.
type ProcessorWrapper struct {
	event.Processor
}

// Process implements the event.Processor interface.
func (pw ProcessorWrapper) Process(ctx context.Context, evt event.Persisted) error {
	return pw.Processor.Process(contextFor(ctx, evt), evt)
}

var _ subscription.Interceptor[event.Persisted, version.SequenceNumber] = Interceptor{}

// Interceptor is a subscription.Interceptor adding the correlation and
// causation ids of the Domain Event to the context of the Consumer OnEvent
// and OnEventError calls.
type Interceptor struct {
	subscription.NopInterceptor[event.Persisted, version.SequenceNumber]
}

// InterceptEvent extends the context with the Domain Event correlation data.
func (Interceptor) InterceptEvent(
	ctx context.Context,
	evt event.Persisted,
	sequenceNumber version.SequenceNumber,
	next func(context.Context, event.Persisted, version.SequenceNumber) (subscription.Result, error),
) (subscription.Result, error) {
	return next(contextFor(ctx, evt), evt, sequenceNumber)
}

// InterceptEventError extends the context with the Domain Event correlation data.
func (Interceptor) InterceptEventError(
	ctx context.Context,
	evt event.Persisted,
	sequenceNumber version.SequenceNumber,
	err error,
	next func(context.Context, event.Persisted, version.SequenceNumber, error) (subscription.Resolution, error),
) (subscription.Resolution, error) {
	return next(contextFor(ctx, evt), evt, sequenceNumber, err)
}
