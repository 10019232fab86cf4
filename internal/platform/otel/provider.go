// Package otel wires OpenTelemetry tracing for the service binaries.
package otel

import (
	"context"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	envEndpoint    = "OILANDROPE_OTEL_ENDPOINT"
	envEnabled     = "OILANDROPE_OTEL_ENABLED"
	envSampleRatio = "OILANDROPE_OTEL_SAMPLE_RATIO"
)

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when OILANDROPE_OTEL_ENDPOINT is empty or
// OILANDROPE_OTEL_ENABLED is "false", Setup returns a no-op shutdown function
// and no global provider is registered. OILANDROPE_OTEL_SAMPLE_RATIO (0..1)
// samples root spans; children follow their parent.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv(envEnabled), "false") {
		return noop, nil
	}

	endpoint := strings.TrimSpace(os.Getenv(envEndpoint))
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceNamespace("oilandrope"),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio()))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Tracer returns a named tracer from the global provider. Before Setup
// registers a provider the tracer is a no-op.
func Tracer(name string) trace.Tracer {
	return otel.Tracer("github.com/louisbranch/oilandrope/" + strings.TrimSpace(name))
}

func sampleRatio() float64 {
	raw := strings.TrimSpace(os.Getenv(envSampleRatio))
	if raw == "" {
		return 1
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio < 0 {
		return 1
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}
