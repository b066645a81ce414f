package server

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"google.golang.org/grpc"
)

type ShutdownFn func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// InitTelemetry installs the global meter provider, backed by the Prometheus
// exporter, and, when otlpEndpoint is set, a tracer provider exporting spans
// over OTLP gRPC. The returned function flushes and stops both.
func InitTelemetry(ctx context.Context, serviceName, otlpEndpoint string) (ShutdownFn, error) {
	res, err := telemetryResource(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	meterShutdown := InitMeterProvider(res, exporter)

	traceShutdown := ShutdownFn(noopShutdown)
	if otlpEndpoint != "" {
		spanExporter, err := NewOTLPTraceExporter(ctx, serviceName, otlpEndpoint)
		if err != nil {
			meterShutdown(ctx)
			return nil, err
		}
		traceShutdown = InitTraceProvider(res, spanExporter)
		log.Info().Str("endpoint", otlpEndpoint).Msg("exporting traces over OTLP")
	}

	return func(ctx context.Context) error {
		return errors.Join(traceShutdown(ctx), meterShutdown(ctx))
	}, nil
}

func InitMeterProvider(res *resource.Resource, reader metric.Reader) ShutdownFn {
	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader))
	otel.SetMeterProvider(meterProvider)
	return meterProvider.Shutdown
}

func InitTraceProvider(res *resource.Resource, spanExporter trace.SpanExporter) ShutdownFn {
	bsp := trace.NewBatchSpanProcessor(spanExporter)
	tracerProvider := trace.NewTracerProvider(
		trace.WithSampler(trace.TraceIDRatioBased(1)),
		trace.WithResource(res),
		trace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(tracerProvider)
	return tracerProvider.Shutdown
}

func telemetryResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			// the service name used to display traces in backend
			semconv.ServiceNameKey.String(serviceName),
		),
	)
}

func NewOTLPTraceExporter(ctx context.Context, serviceName, otlpEndpoint string) (*otlptrace.Exporter, error) {
	traceClient := otlptracegrpc.NewClient(
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(serviceName)))
	return otlptrace.New(ctx, traceClient)
}
