// Package observability wires up the process-wide OpenTelemetry tracer
// provider used by the router's per-attempt spans. The gateway never ships
// its own exporter: the host passes one in (OTLP, stdout, an in-memory
// recorder in tests) and gets back a shutdown hook.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TraceConfig configures the gateway's tracer provider.
type TraceConfig struct {
	// ServiceName identifies this process in traces. Defaults to "flexigate".
	ServiceName string

	// ServiceVersion identifies the running build.
	ServiceVersion string

	// Environment labels the deployment (production, staging, dev).
	Environment string

	// SamplingRate controls what fraction of traces are recorded, 0.0 to
	// 1.0. Zero means sample everything.
	SamplingRate float64

	// Exporter receives finished spans. When nil, spans are still created
	// (attempt spans stay cheap no-ops) but nothing leaves the process.
	Exporter sdktrace.SpanExporter

	// Attributes are extra resource attributes stamped on every span.
	Attributes map[string]string
}

// Setup installs a global tracer provider and W3C propagator built from
// cfg. The returned shutdown flushes buffered spans and must be called on
// exit. Setup never fails: a broken resource build falls back to the
// SDK default.
func Setup(cfg TraceConfig) func(context.Context) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "flexigate"
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		res = resource.Default()
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0 || cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}
	if cfg.Exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(cfg.Exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown
}
