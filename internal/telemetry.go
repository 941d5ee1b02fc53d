// Package internal contains the telemetry shared across the library.
package internal

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/FerroO2000/pbuffer"

// TelemetryOption customizes a telemetry instance.
type TelemetryOption func(*telemetryOptions)

type telemetryOptions struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// WithMeterProvider sets the meter provider, the global one is used otherwise.
func WithMeterProvider(provider metric.MeterProvider) TelemetryOption {
	return func(o *telemetryOptions) {
		o.meterProvider = provider
	}
}

// WithTracerProvider sets the tracer provider, the global one is used otherwise.
func WithTracerProvider(provider trace.TracerProvider) TelemetryOption {
	return func(o *telemetryOptions) {
		o.tracerProvider = provider
	}
}

// Telemetry bundles the logger, the meter and the tracer of a component.
type Telemetry struct {
	logger *slog.Logger
	meter  metric.Meter
	tracer trace.Tracer

	attrs metric.MeasurementOption
}

// NewTelemetry returns the telemetry for the component
// identified by scope (e.g. "buffer") and name.
func NewTelemetry(scope, name string, opts ...TelemetryOption) *Telemetry {
	o := &telemetryOptions{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	scopeName := instrumentationName + "/" + scope

	return &Telemetry{
		logger: getLogger().With("scope", scope, "name", name),
		meter:  o.meterProvider.Meter(scopeName),
		tracer: o.tracerProvider.Tracer(scopeName),

		attrs: metric.WithAttributes(attribute.String(scope, name)),
	}
}

// LogDebug logs a debug message.
func (t *Telemetry) LogDebug(msg string, args ...any) {
	t.logger.Debug(msg, args...)
}

// LogInfo logs an info message.
func (t *Telemetry) LogInfo(msg string, args ...any) {
	t.logger.Info(msg, args...)
}

// LogWarn logs a warning message.
func (t *Telemetry) LogWarn(msg string, args ...any) {
	t.logger.Warn(msg, args...)
}

// LogError logs an error message.
func (t *Telemetry) LogError(msg string, err error, args ...any) {
	t.logger.Error(msg, append([]any{"error", err}, args...)...)
}

// NewCounter registers an observable counter whose value is read from fn.
func (t *Telemetry) NewCounter(name string, fn func() int64) {
	_, err := t.meter.Int64ObservableCounter(name,
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(fn(), t.attrs)
			return nil
		}),
	)

	if err != nil {
		t.LogError("failed to create counter", err, "counter", name)
	}
}

// NewUpDownCounter registers an observable up-down counter whose value is read from fn.
func (t *Telemetry) NewUpDownCounter(name string, fn func() int64) {
	_, err := t.meter.Int64ObservableUpDownCounter(name,
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(fn(), t.attrs)
			return nil
		}),
	)

	if err != nil {
		t.LogError("failed to create up-down counter", err, "counter", name)
	}
}

// Histogram records int64 values with the attributes of its telemetry.
type Histogram struct {
	hist  metric.Int64Histogram
	attrs metric.MeasurementOption
}

// Record adds a value to the histogram.
// It is a no-op on a nil histogram.
func (h *Histogram) Record(ctx context.Context, value int64) {
	if h == nil || h.hist == nil {
		return
	}

	h.hist.Record(ctx, value, h.attrs)
}

// NewHistogram creates a new int64 histogram.
func (t *Telemetry) NewHistogram(name string, opts ...metric.Int64HistogramOption) *Histogram {
	hist, err := t.meter.Int64Histogram(name, opts...)
	if err != nil {
		t.LogError("failed to create histogram", err, "histogram", name)
	}

	return &Histogram{
		hist:  hist,
		attrs: t.attrs,
	}
}

// NewTrace starts a new span.
func (t *Telemetry) NewTrace(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName)
}
