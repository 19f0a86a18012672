package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "portfolio-backend"

var (
	tracingOnce     sync.Once
	tracingShutdown = func(context.Context) error { return nil }
)

// InitTracing installs a tracer provider exporting spans to stdout.
// It is a no-op unless enabled; the returned func flushes pending spans.
func InitTracing(ctx context.Context, enabled bool, serviceName, env string) func(context.Context) error {
	if !enabled {
		return func(context.Context) error { return nil }
	}
	tracingOnce.Do(func() {
		res, err := resource.New(ctx, resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("deployment.environment", env),
		))
		if err != nil {
			Warn("otel.resource_failed", map[string]any{"error": err.Error()})
		}
		exporter, err := stdouttrace.New()
		if err != nil {
			Warn("otel.exporter_failed", map[string]any{"error": err.Error()})
			return
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		tracingShutdown = tp.Shutdown
		Info("otel.initialized", map[string]any{"service": serviceName})
	})
	return tracingShutdown
}

// Tracer returns the process tracer. Without InitTracing it is a no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
