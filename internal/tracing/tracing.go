// Package tracing emits OpenTelemetry spans for benchmark runs and phases.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"kvbench/internal/config"
)

const instrumentationName = "kvbench"

// Tracer wraps an OpenTelemetry tracer with benchmark specific helpers.
// A disabled Tracer hands out no-op spans.
type Tracer struct {
	config   config.TracingConfig
	tracer   oteltrace.Tracer
	provider *trace.TracerProvider
}

// New creates a tracer from configuration. Console spans go to w, or to
// stderr when w is nil.
func New(cfg config.TracingConfig, w io.Writer) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{
			config: cfg,
			tracer: noop.NewTracerProvider().Tracer(instrumentationName),
		}, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	samplingRatio := cfg.SamplingRatio
	if samplingRatio <= 0 {
		samplingRatio = 1.0
	}
	opts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(samplingRatio)),
	}

	switch cfg.ExporterType {
	case "otlp":
		exporter, err := newOTLPExporter(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, trace.WithBatcher(exporter))
	case "console", "":
		if w == nil {
			w = os.Stderr
		}
		// a run produces a handful of spans, export them as they end
		opts = append(opts, trace.WithSyncer(NewConsoleExporter(w)))
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}

	tp := trace.NewTracerProvider(opts...)

	return &Tracer{
		config:   cfg,
		tracer:   tp.Tracer(instrumentationName),
		provider: tp,
	}, nil
}

func newOTLPExporter(cfg config.TracingConfig) (trace.SpanExporter, error) {
	clientOpts := []otlptracehttp.Option{otlptracehttp.WithHeaders(cfg.OTLPHeaders)}
	if strings.Contains(cfg.OTLPEndpoint, "://") {
		clientOpts = append(clientOpts, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	} else {
		clientOpts = append(clientOpts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint), otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(clientOpts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// Enabled reports whether spans are recorded.
func (t *Tracer) Enabled() bool { return t.provider != nil }

// StartRun opens the root span of one benchmark run.
func (t *Tracer) StartRun(ctx context.Context, runID, engine string, operations, threads int) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, "benchmark.run",
		oteltrace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("engine", engine),
			attribute.Int("operations", operations),
			attribute.Int("threads", threads),
		),
	)
}

// StartPhase opens a child span for one measured phase.
func (t *Tracer) StartPhase(ctx context.Context, engine, phase string) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, "benchmark."+phase,
		oteltrace.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("phase", phase),
		),
	)
}

// EndPhase records the outcome of a phase and ends its span.
func EndPhase(span oteltrace.Span, operations, errors int, throughput float64, err error) {
	span.SetAttributes(
		attribute.Int("operations", operations),
		attribute.Int("errors", errors),
		attribute.Float64("throughput", throughput),
	)
	End(span, err)
}

// End sets the span status from err and ends it.
func End(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Close flushes and shuts down the exporter.
func (t *Tracer) Close(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}
