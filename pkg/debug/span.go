package debug

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for resolution spans.
const TracerName = "github.com/goliatone/go-formschema"

// NewSpanTracer attaches events to the span active in the event's context.
// The resolver opens one span per pass, so each pass carries its own
// registry misses and middleware failures. Events outside a recording span
// are dropped.
func NewSpanTracer() Tracer {
	return spanTracer{}
}

type spanTracer struct{}

func (spanTracer) Trace(ctx context.Context, event Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("formschema.kind", string(event.Kind)),
		attribute.String("formschema.severity", string(event.Severity())),
	}
	if event.Path != "" {
		attrs = append(attrs, attribute.String("formschema.path", event.Path))
	}
	if event.Component != "" {
		attrs = append(attrs, attribute.String("formschema.component", event.Component))
	}
	if event.Err != nil {
		span.RecordError(event.Err, trace.WithAttributes(attrs...))
		if event.Severity() == SeverityError {
			span.SetStatus(codes.Error, event.Message())
		}
		return
	}
	span.AddEvent(event.Message(), trace.WithAttributes(attrs...))
}
