// Package telemetry installs OpenTelemetry tracer and meter providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"gitlab.com/flik/groupledger/internal/logger"
)

// Exporter names accepted by Setup.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// DefaultMetricInterval is how often metrics are exported.
const DefaultMetricInterval = 30 * time.Second

// Options configures Setup.
type Options struct {
	ServiceName string
	Exporter    string
	// Endpoint is the OTLP collector address, e.g. "localhost:4317".
	Endpoint string
	// Insecure disables TLS for OTLP exporters.
	Insecure       bool
	MetricInterval time.Duration
	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(context.Context) error

// ValidExporter reports whether name is a known exporter.
func ValidExporter(name string) bool {
	switch name {
	case "", ExporterNone, ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP:
		return true
	}
	return false
}

// Setup installs global tracer and meter providers for the configured exporter.
// With no exporter the global no-op providers are left in place.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if opts.Exporter == "" || opts.Exporter == ExporterNone {
		return func(context.Context) error { return nil }, nil
	}
	if opts.MetricInterval <= 0 {
		opts.MetricInterval = DefaultMetricInterval
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	spanExporter, metricExporter, err := newExporters(ctx, opts)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(opts.MetricInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	logger.Log.Info().
		Str("exporter", opts.Exporter).
		Str("service", opts.ServiceName).
		Msg("Telemetry initialized")

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newExporters(ctx context.Context, opts Options) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	switch opts.Exporter {
	case ExporterStdout:
		se, err := stdouttrace.New(stdouttrace.WithWriter(opts.Writer))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		me, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		return se, me, nil

	case ExporterOTLPGRPC:
		traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
		metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		se, err := otlptracegrpc.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP gRPC trace exporter: %w", err)
		}
		me, err := otlpmetricgrpc.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP gRPC metric exporter: %w", err)
		}
		return se, me, nil

	case ExporterOTLPHTTP:
		traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
		metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		se, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP HTTP trace exporter: %w", err)
		}
		me, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP HTTP metric exporter: %w", err)
		}
		return se, me, nil
	}
	return nil, nil, fmt.Errorf("unknown telemetry exporter %q", opts.Exporter)
}
