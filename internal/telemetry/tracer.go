// Package telemetry configures OpenTelemetry tracing for the service.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Exporter names accepted by InitTracer.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// InitTracer installs the global tracer provider. With ExporterNone the
// global no-op provider stays in place and spans cost nothing. The returned
// function flushes and stops the provider.
func InitTracer(serviceName, exporterName string, logger *slog.Logger) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	switch exporterName {
	case "", ExporterNone:
		logger.Debug("tracing disabled")
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", exporterName)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized",
		slog.String("service", serviceName),
		slog.String("exporter", exporterName),
	)

	return tp.Shutdown, nil
}
