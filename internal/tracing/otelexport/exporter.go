// Package otelexport installs an OpenTelemetry OTLP trace pipeline. Provider
// calls create spans through the global tracer provider; without an
// exporter they are no-ops.
package otelexport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultServiceName = "binlogqa"
	tracerName         = "github.com/nextlevelbuilder/binlogqa"
)

// Config configures the OTLP exporter.
type Config struct {
	Endpoint    string            // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            // "grpc" (default) or "http"
	Insecure    bool              // skip TLS for local dev
	ServiceName string            // default "binlogqa"
	Headers     map[string]string // extra headers (auth tokens, etc.)
	Version     string
}

// Exporter owns the tracer provider installed by New.
type Exporter struct {
	provider *sdktrace.TracerProvider
}

// New creates an OTLP exporter and installs it as the global tracer provider.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required")
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Protocol {
	case "http":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default: // "grpc"
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(100),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	slog.Info("otel exporter started", "endpoint", cfg.Endpoint, "protocol", cfg.Protocol)
	return &Exporter{provider: tp}, nil
}

// Shutdown flushes remaining spans and stops the exporter.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	slog.Info("otel exporter shutting down")
	return e.provider.Shutdown(ctx)
}

// StartRun starts a root span whose trace ID is the run's UUID, so log lines
// carrying the run id can be matched to the trace.
func StartRun(ctx context.Context, name string, runID uuid.UUID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    uuidToTraceID(runID),
		SpanID:     uuidToSpanID(runID),
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx = trace.ContextWithRemoteSpanContext(ctx, parent)

	attrs = append(attrs, attribute.String("binlogqa.run_id", runID.String()))
	return otel.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// uuidToTraceID converts a UUID to an OTel TraceID (16 bytes).
func uuidToTraceID(id [16]byte) trace.TraceID {
	return trace.TraceID(id)
}

// uuidToSpanID converts a UUID to an OTel SpanID (8 bytes, uses last 8 bytes of UUID).
func uuidToSpanID(id [16]byte) trace.SpanID {
	var sid trace.SpanID
	copy(sid[:], id[8:16])
	return sid
}
