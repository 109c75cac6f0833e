// Package tracing wraps the xdpsock bring-up sequence in an
// OpenTelemetry span tree, adapted from the teacher's TracingEngine.
// The teacher's HTTP-request span helpers, Jaeger/OTLP exporters, and
// header-capture config are gone: this module has no HTTP requests to
// trace and no collector infrastructure of its own, only the eight
// bring-up steps of one socket at a time. Only the otel SDK wiring and
// the stdouttrace exporter — present in the teacher's go.mod but wired
// to nothing there — survive, given a home here.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects the exporter used by Init. The zero value disables
// tracing entirely: Init returns a no-op Tracer whose spans are never
// recorded, so callers never need a nil check.
type Config struct {
	// Enabled turns on the stdouttrace exporter. False is the default
	// so running the engine never spams stdout with span JSON unless
	// asked.
	Enabled bool
	// Writer receives exported spans; defaults to os.Stdout.
	Writer io.Writer
	// ServiceName tags the tracer's resource.
	ServiceName string
}

// Tracer owns the process-wide TracerProvider used by StartBringUp.
// Its zero value is not usable; build one with Init.
type Tracer struct {
	tracer   oteltrace.Tracer
	provider *trace.TracerProvider
}

// Init builds a Tracer per cfg and installs it as the global otel
// TracerProvider. Call Shutdown before process exit to flush pending
// spans.
func Init(cfg Config) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("xdpcore")}, nil
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "xdpcore"
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(writer), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("build stdouttrace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build tracer resource: %w", err)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{tracer: provider.Tracer("xdpcore"), provider: provider}, nil
}

// Shutdown flushes and releases the underlying TracerProvider. Safe to
// call on a Tracer built with Enabled: false.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartBringUp opens a parent span covering one socket's entire
// bring-up sequence. It returns the span-carrying context, an end func
// that closes the parent span (recording its error, if any), and a step
// function: call step(name) at the start of each bring-up step to get
// back an end func, which must be called exactly once with that step's
// error (nil on success).
func (t *Tracer) StartBringUp(ctx context.Context, ifaceName string, queueID int) (spanCtx context.Context, end func(error), step func(name string) func(error)) {
	spanCtx, span := t.tracer.Start(ctx, "xdpsock.bring_up",
		oteltrace.WithAttributes(
			attribute.String("xdp.interface", ifaceName),
			attribute.Int("xdp.queue_id", queueID),
		),
	)

	end = func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}

	step = func(name string) func(error) {
		_, stepSpan := t.tracer.Start(spanCtx, "xdpsock.bring_up."+name)
		return func(err error) {
			if err != nil {
				stepSpan.RecordError(err)
				stepSpan.SetStatus(codes.Error, err.Error())
			}
			stepSpan.End()
		}
	}

	return spanCtx, end, step
}
