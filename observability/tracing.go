package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/revred/smartpay-notify"

// Tracer emits one OpenTelemetry span per webhook delivery attempt, so a
// retried envelope shows up as a series of sibling spans under whatever
// request started it.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer backed by the global otel provider. With no
// provider configured the spans are no-ops.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDeliverySpan opens the span for one delivery attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, envelopeID, topic, endpointID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "notify.delivery",
		trace.WithAttributes(
			attribute.String("notify.envelope_id", envelopeID),
			attribute.String("notify.topic", topic),
			attribute.String("notify.endpoint_id", endpointID),
		),
	)
}

// EndDeliverySpan records the attempt outcome and closes the span. A
// non-empty errMsg or a response outside 2xx marks the span as failed.
func (t *Tracer) EndDeliverySpan(span trace.Span, statusCode, latencyMs int, errMsg string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("notify.latency_ms", latencyMs),
	)
	switch {
	case errMsg != "":
		span.SetStatus(codes.Error, errMsg)
	case statusCode < 200 || statusCode >= 300:
		span.SetStatus(codes.Error, "non-2xx response")
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
