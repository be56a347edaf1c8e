package oteleventually

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/get-eventually/go-catchup/oteleventually"

type config struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func (c config) meter() metric.Meter { return c.meterProvider.Meter(instrumentationName) }

func (c config) tracer() trace.Tracer { return c.tracerProvider.Tracer(instrumentationName) }

// Option customizes the providers used by an Interceptor.
type Option func(*config)

// WithMeterProvider records metrics through provider
// instead of the global otel.GetMeterProvider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *config) { c.meterProvider = provider }
}

// WithTracerProvider records spans through provider
// instead of the global otel.GetTracerProvider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = provider }
}

func newConfig(opts []Option) config {
	c := config{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}

	for _, apply := range opts {
		apply(&c)
	}

	return c
}
