package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var errCollectorUnreachable = errors.New("OpenTelemetry collector is not reachable")

type telemetryConfig struct {
	grpcEndpoint string
	httpEndpoint string
	traceRatio   float64
}

type telemetry struct {
	grpcConn *grpc.ClientConn

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
}

// isCollectorReachable checks if the collector port is reachable.
func isCollectorReachable(endpoint string) bool {
	conn, err := net.DialTimeout("tcp", endpoint, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// initTelemetry installs the global OpenTelemetry providers.
// Traces and metrics are exported over gRPC, logs over HTTP.
func initTelemetry(ctx context.Context, cfg telemetryConfig) (*telemetry, error) {
	if !isCollectorReachable(cfg.grpcEndpoint) {
		return nil, fmt.Errorf("%w at %s", errCollectorUnreachable, cfg.grpcEndpoint)
	}

	grpcTransport := grpc.WithTransportCredentials(insecure.NewCredentials())
	grpcConn, err := grpc.NewClient(cfg.grpcEndpoint, grpcTransport)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client: %w", err)
	}

	tel := &telemetry{grpcConn: grpcConn}

	res, err := newResource()
	if err != nil {
		tel.close(ctx)
		return nil, err
	}

	// Trace
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(grpcConn))
	if err != nil {
		tel.close(ctx)
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tel.tracerProvider = newTraceProvider(res, traceExporter, cfg.traceRatio)
	otel.SetTracerProvider(tel.tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	// Meter
	meterExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(grpcConn))
	if err != nil {
		tel.close(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	tel.meterProvider = newMeterProvider(res, meterExporter)
	otel.SetMeterProvider(tel.meterProvider)

	// Log
	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(cfg.httpEndpoint), otlploghttp.WithInsecure())
	if err != nil {
		tel.close(ctx)
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}
	tel.loggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)
	global.SetLoggerProvider(tel.loggerProvider)

	// Runtime
	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		tel.close(ctx)
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	return tel, nil
}

// close flushes and shuts down the providers.
func (t *telemetry) close(ctx context.Context) error {
	errs := []error{}

	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}
	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}
	if t.loggerProvider != nil {
		errs = append(errs, t.loggerProvider.Shutdown(ctx))
	}

	errs = append(errs, t.grpcConn.Close())

	return errors.Join(errs...)
}

func newResource() (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(appName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

func newTraceProvider(res *resource.Resource, exporter *otlptrace.Exporter, ratio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(ratio)),
	)
}

func newMeterProvider(res *resource.Resource, exporter sdkmetric.Exporter) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(time.Second)),
		),
	)
}
