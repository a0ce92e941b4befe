package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// StoredSpan is a W3C trace context flattened into the two text columns an outbox
// row carries, so the relay can continue the trace of the write that queued it.
type StoredSpan struct {
	Traceparent string
	Tracestate  string
}

// CaptureSpan records the span active in ctx. Both fields are empty without one.
func CaptureSpan(ctx context.Context) StoredSpan {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return StoredSpan{Traceparent: carrier["traceparent"], Tracestate: carrier["tracestate"]}
}

// Resume returns ctx carrying the stored span as its remote parent.
func (s StoredSpan) Resume(ctx context.Context) context.Context {
	if s.Traceparent == "" {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": s.Traceparent,
		"tracestate":  s.Tracestate,
	})
}
