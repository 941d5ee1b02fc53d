package pbuffer

import (
	"github.com/FerroO2000/pbuffer/internal"
	"go.opentelemetry.io/otel/metric"
)

// DefaultName is the name used by the telemetry of unnamed buffers.
const DefaultName = "buffer"

// Option configures a buffer.
type Option[T any] func(*options[T])

type options[T any] struct {
	name     string
	observer Observer[T]

	meterProvider metric.MeterProvider
}

func newOptions[T any](opts []Option[T]) *options[T] {
	o := &options[T]{
		name: DefaultName,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *options[T]) telemetryOptions() []internal.TelemetryOption {
	telOpts := []internal.TelemetryOption{}

	if o.meterProvider != nil {
		telOpts = append(telOpts, internal.WithMeterProvider(o.meterProvider))
	}

	return telOpts
}

// WithName sets the name reported by the buffer logs and metrics.
func WithName[T any](name string) Option[T] {
	return func(o *options[T]) {
		if name != "" {
			o.name = name
		}
	}
}

// WithObserver sets the observer notified of every completed operation.
func WithObserver[T any](observer Observer[T]) Option[T] {
	return func(o *options[T]) {
		o.observer = observer
	}
}

// WithMeterProvider sets the meter provider used for the buffer metrics.
// The global provider is used by default.
func WithMeterProvider[T any](provider metric.MeterProvider) Option[T] {
	return func(o *options[T]) {
		o.meterProvider = provider
	}
}
