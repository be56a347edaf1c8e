package oteleventually

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/version"
)

// Attribute keys used by the Interceptor instrumentation.
const (
	ConsumerNameKey        attribute.Key = "subscription.consumer"
	PositionKey            attribute.Key = "subscription.position"
	ResultKey              attribute.Key = "subscription.result"
	ResolutionKey          attribute.Key = "subscription.resolution"
	DropReasonKey          attribute.Key = "subscription.drop_reason"
	ErrorAttribute         attribute.Key = "error"
	EventStreamIDKey       attribute.Key = "event_stream.id"
	EventStreamVersionKey  attribute.Key = "event_stream.version"
	EventNameKey           attribute.Key = "event.name"
	EventSequenceNumberKey attribute.Key = "event.sequence_number"
)

// PersistedEventAttributes returns the attributes describing a persisted
// Domain Event, to be used with NewInterceptor.
func PersistedEventAttributes(evt event.Persisted) []attribute.KeyValue {
	attributes := []attribute.KeyValue{
		EventStreamIDKey.String(string(evt.StreamID)),
		EventStreamVersionKey.Int64(int64(evt.Version)),
		EventSequenceNumberKey.Int64(int64(evt.SequenceNumber)),
	}

	if evt.Message != nil {
		attributes = append(attributes, EventNameKey.String(evt.Message.Name()))
	}

	return attributes
}

var _ subscription.Interceptor[event.Persisted, version.SequenceNumber] = &Interceptor[
	event.Persisted,
	version.SequenceNumber,
]{}

// Interceptor is a subscription.Interceptor that records traces and
// metrics around the lifecycle calls of a Consumer.
//
// Use NewInterceptor to create a new instance of this type.
type Interceptor[E, P any] struct {
	subscription.NopInterceptor[E, P]

	name            string
	eventAttributes func(E) []attribute.KeyValue

	tracer        trace.Tracer
	eventDuration metric.Int64Histogram
	checkpoints   metric.Int64Counter
	eventErrors   metric.Int64Counter
	drops         metric.Int64Counter
}

func (i *Interceptor[E, P]) registerMetrics(meter metric.Meter) error {
	var err error

	if i.eventDuration, err = meter.Int64Histogram(
		"catchup.consumer.event.duration.milliseconds",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of subscription.Consumer.OnEvent calls."),
	); err != nil {
		return fmt.Errorf("oteleventually.Interceptor: failed to register metric: %w", err)
	}

	if i.checkpoints, err = meter.Int64Counter(
		"catchup.consumer.checkpoints",
		metric.WithDescription("Number of checkpoints notified to a subscription.Consumer."),
	); err != nil {
		return fmt.Errorf("oteleventually.Interceptor: failed to register metric: %w", err)
	}

	if i.eventErrors, err = meter.Int64Counter(
		"catchup.consumer.event.errors",
		metric.WithDescription("Number of event processing failures, by resolution."),
	); err != nil {
		return fmt.Errorf("oteleventually.Interceptor: failed to register metric: %w", err)
	}

	if i.drops, err = meter.Int64Counter(
		"catchup.consumer.subscription.dropped",
		metric.WithDescription("Number of dropped subscriptions, by reason."),
	); err != nil {
		return fmt.Errorf("oteleventually.Interceptor: failed to register metric: %w", err)
	}

	return nil
}

// NewInterceptor returns a new Interceptor for the Consumer with the
// specified name.
//
// eventAttributes is optional, and is used to describe the events in the
// recorded spans.
//
// An error is returned if the metrics could not be registered.
func NewInterceptor[E, P any](
	name string,
	eventAttributes func(E) []attribute.KeyValue,
	options ...Option,
) (*Interceptor[E, P], error) {
	cfg := newConfig(options)

	i := &Interceptor[E, P]{
		name:            name,
		eventAttributes: eventAttributes,
		tracer:          cfg.tracer(),
	}

	if err := i.registerMetrics(cfg.meter()); err != nil {
		return nil, err
	}

	return i, nil
}

func (i *Interceptor[E, P]) spanName(method string) string {
	return "subscription.Consumer." + method
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// InterceptStarting traces the Consumer starting call.
func (i *Interceptor[E, P]) InterceptStarting(
	ctx context.Context,
	next func(ctx context.Context) (subscription.Position[P], error),
) (position subscription.Position[P], err error) {
	ctx, span := i.tracer.Start(ctx, i.spanName("OnStarting"),
		trace.WithAttributes(ConsumerNameKey.String(i.name)),
	)

	defer func() { endSpan(span, err) }()

	position, err = next(ctx)
	span.SetAttributes(PositionKey.String(position.String()))

	return position, err
}

// InterceptEvent traces the processing of an event, and records its duration.
func (i *Interceptor[E, P]) InterceptEvent(
	ctx context.Context,
	evt E,
	position P,
	next func(ctx context.Context, event E, position P) (subscription.Result, error),
) (result subscription.Result, err error) {
	attributes := []attribute.KeyValue{
		ConsumerNameKey.String(i.name),
		PositionKey.String(fmt.Sprint(position)),
	}

	if i.eventAttributes != nil {
		attributes = append(attributes, i.eventAttributes(evt)...)
	}

	ctx, span := i.tracer.Start(ctx, i.spanName("OnEvent"), trace.WithAttributes(attributes...))
	start := time.Now()

	defer func() {
		i.eventDuration.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(
			ConsumerNameKey.String(i.name),
			ResultKey.String(result.String()),
			ErrorAttribute.Bool(err != nil),
		))

		span.SetAttributes(ResultKey.String(result.String()))
		endSpan(span, err)
	}()

	return next(ctx, evt, position)
}

// InterceptCheckpoint traces the checkpoint call, and counts it.
func (i *Interceptor[E, P]) InterceptCheckpoint(
	ctx context.Context,
	position P,
	next func(ctx context.Context, position P) error,
) (err error) {
	ctx, span := i.tracer.Start(ctx, i.spanName("OnCheckpoint"), trace.WithAttributes(
		ConsumerNameKey.String(i.name),
		PositionKey.String(fmt.Sprint(position)),
	))

	defer func() {
		i.checkpoints.Add(ctx, 1, metric.WithAttributes(
			ConsumerNameKey.String(i.name),
			ErrorAttribute.Bool(err != nil),
		))

		endSpan(span, err)
	}()

	return next(ctx, position)
}

// InterceptEventError counts the event processing failures by their resolution.
func (i *Interceptor[E, P]) InterceptEventError(
	ctx context.Context,
	evt E,
	position P,
	cause error,
	next func(ctx context.Context, event E, position P, err error) (subscription.Resolution, error),
) (subscription.Resolution, error) {
	resolution, err := next(ctx, evt, position, cause)

	i.eventErrors.Add(ctx, 1, metric.WithAttributes(
		ConsumerNameKey.String(i.name),
		ResolutionKey.String(resolution.String()),
		ErrorAttribute.Bool(err != nil),
	))

	return resolution, err
}

// InterceptSubscriptionDropped counts the dropped subscriptions by reason.
func (i *Interceptor[E, P]) InterceptSubscriptionDropped(
	ctx context.Context,
	reason subscription.DropReason,
	cause error,
	next func(ctx context.Context, reason subscription.DropReason, err error) error,
) error {
	i.drops.Add(ctx, 1, metric.WithAttributes(
		ConsumerNameKey.String(i.name),
		DropReasonKey.String(reason.String()),
	))

	return next(ctx, reason, cause)
}
