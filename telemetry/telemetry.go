package telemetry

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	flowrt "github.com/flowrt/flow-runtime"
)

const scope = "github.com/flowrt/flow-runtime"

var (
	initOnce sync.Once
	initErr  error

	versionOnce sync.Once
)

// Init installs a tracer provider exporting spans to w. Safe to call more
// than once; the first call wins.
func Init(w io.Writer) error {
	initOnce.Do(func() {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			initErr = err
			return
		}
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				attribute.String("service.name", "flowexec"),
				attribute.String("service.version", flowrt.Version),
			),
		)
		if err != nil {
			initErr = err
			return
		}
		otel.SetTracerProvider(sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
			sdktrace.WithResource(res),
		))
	})
	return initErr
}

// StartSpan opens a span under the runtime's tracer. Without Init the
// global provider is a no-op and the span costs nothing.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(scope).Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// EndSpan records err on the span, sets its status, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// RecordVersion publishes the runtime version gauge. The metric is
// write-once per process no matter how many runs execute.
func RecordVersion(ctx context.Context) {
	versionOnce.Do(func() {
		gauge, err := otel.Meter(scope).Int64Gauge("flowrt.build.version")
		if err != nil {
			return
		}
		gauge.Record(ctx, 1, metric.WithAttributes(
			attribute.String("version", flowrt.Version),
		))
	})
}

// NewRunID returns a unique identifier for one driver run, used to
// correlate spans and log lines.
func NewRunID() string {
	return uuid.NewString()
}
