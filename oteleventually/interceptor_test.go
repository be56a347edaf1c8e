package oteleventually_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/get-eventually/go-catchup/event"
	"github.com/get-eventually/go-catchup/internal/user"
	"github.com/get-eventually/go-catchup/oteleventually"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/version"
)

var errProcessing = errors.New("processing failed")

type failingConsumer struct {
	subscription.NopConsumer[event.Persisted, version.SequenceNumber]

	fail bool
}

func (c failingConsumer) OnEvent(context.Context, event.Persisted, version.SequenceNumber) (subscription.Result, error) {
	if c.fail {
		return subscription.Ignored, errProcessing
	}

	return subscription.Processed, nil
}

func setup(t *testing.T, fail bool) (event.Consumer, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	spans := tracetest.NewSpanRecorder()

	interceptor, err := oteleventually.NewInterceptor[event.Persisted, version.SequenceNumber](
		"test-projection",
		oteleventually.PersistedEventAttributes,
		oteleventually.WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
		oteleventually.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))),
	)
	require.NoError(t, err)

	return subscription.Intercept[event.Persisted, version.SequenceNumber](
		failingConsumer{fail: fail},
		interceptor,
	), reader, spans
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	metrics := make(map[string]metricdata.Metrics)

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = m
		}
	}

	return metrics
}

func persisted() event.Persisted {
	return event.Persisted{
		StreamID:       "user-1",
		Version:        1,
		Envelope:       user.EmailUpdated(uuid.New(), "john@doe.com"),
		SequenceNumber: 42,
	}
}

func TestInterceptor(t *testing.T) {
	ctx := context.Background()

	t.Run("successful events are traced and measured", func(t *testing.T) {
		consumer, reader, spans := setup(t, false)

		result, err := consumer.OnEvent(ctx, persisted(), 42)
		require.NoError(t, err)
		assert.Equal(t, subscription.Processed, result)

		require.NoError(t, consumer.OnCheckpoint(ctx, 42))

		ended := spans.Ended()
		require.Len(t, ended, 2)
		assert.Equal(t, "subscription.Consumer.OnEvent", ended[0].Name())
		assert.Equal(t, "subscription.Consumer.OnCheckpoint", ended[1].Name())
		assert.Contains(t, ended[0].Attributes(), oteleventually.EventStreamIDKey.String("user-1"))
		assert.Contains(t, ended[0].Attributes(), oteleventually.EventNameKey.String(user.EmailWasUpdatedName))

		metrics := collect(t, reader)

		duration, ok := metrics["catchup.consumer.event.duration.milliseconds"]
		require.True(t, ok)

		histogram, ok := duration.Data.(metricdata.Histogram[int64])
		require.True(t, ok)
		require.Len(t, histogram.DataPoints, 1)
		assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)

		checkpoints, ok := metrics["catchup.consumer.checkpoints"]
		require.True(t, ok)

		sum, ok := checkpoints.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	})

	t.Run("failures are recorded on the span and counted by resolution", func(t *testing.T) {
		consumer, reader, spans := setup(t, true)

		_, err := consumer.OnEvent(ctx, persisted(), 42)
		require.ErrorIs(t, err, errProcessing)

		resolution, err := consumer.OnEventError(ctx, persisted(), 42, errProcessing)
		require.NoError(t, err)
		assert.Equal(t, subscription.Abort, resolution)

		require.NoError(t, consumer.OnSubscriptionDropped(ctx, subscription.DropReasonServerError, errProcessing))

		ended := spans.Ended()
		require.Len(t, ended, 1)
		assert.Equal(t, codes.Error, ended[0].Status().Code)

		metrics := collect(t, reader)
		assert.Contains(t, metrics, "catchup.consumer.event.errors")
		assert.Contains(t, metrics, "catchup.consumer.subscription.dropped")
	})
}
