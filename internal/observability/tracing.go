// Package observability wires OpenTelemetry tracing to an OTLP collector.
//
// Spans are exported over OTLP HTTP to a local collector (default
// localhost:4318), which forwards them to whatever backend the deployment
// uses (Azure Monitor, Jaeger, the OpenTelemetry Collector itself).
// Setup is best-effort: when the exporter cannot be created the process
// runs untraced instead of failing.
//
// # Local collector
//
// For local development, run a collector with an OTLP HTTP receiver on
// localhost:4318 and point its exporter at your tracing backend:
//
//	receivers:
//	  otlp:
//	    protocols:
//	      http:
//	        endpoint: "localhost:4318"
//
// Traces appear under the configured service name within a minute or two of
// process shutdown (flush).
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultEndpoint is the default OTLP HTTP collector endpoint.
const DefaultEndpoint = "localhost:4318"

// Config for tracing setup.
type Config struct {
	// Endpoint is the collector's OTLP HTTP host:port (default: localhost:4318)
	Endpoint string
	// Environment is the deployment environment tag (dev, staging, prod)
	Environment string
	// ServiceName is the service name reported on every span
	ServiceName string
}

// Setup installs a global tracer provider that exports to the configured
// OTLP collector, and returns a shutdown function that flushes pending spans.
//
// Setup never fails the caller: when the exporter cannot be created, the
// global no-op provider stays in place and the returned shutdown does
// nothing.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		slog.Warn("failed to create otlp exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	var attrs []attribute.KeyValue
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("service.name", cfg.ServiceName))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	)
	otel.SetTracerProvider(tp)

	slog.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	// Emit one span so a misconfigured pipeline shows up immediately.
	_, span := tp.Tracer("ragchat-init").Start(ctx, "ragchat.init")
	span.End()

	return tp.Shutdown, nil
}
