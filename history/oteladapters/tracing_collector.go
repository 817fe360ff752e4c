package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/model-history-go/history"
)

// TracingCollector implements history.TracingCollector with an OpenTelemetry tracer.
// The span of a history write becomes a child of whatever span the triggering write runs in.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector returns a collector starting its spans with tracer.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan implements history.TracingCollector.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, history.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attributes(attrs)...),
	)

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan implements history.TracingCollector. Spans of other collectors are ignored.
func (t *TracingCollector) FinishSpan(spanCtx history.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(attributes(attrs)...)
	otelSpanCtx.SetStatus(status)
	otelSpanCtx.span.End()
}

var _ history.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext implements history.SpanContext around an OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus maps the history status strings onto span status codes.
// Unknown statuses end up as a "status" attribute.
func (s *OTelSpanContext) SetStatus(status string) {
	switch status {
	case "success":
		s.span.SetStatus(codes.Ok, "")
	case "error":
		s.span.SetStatus(codes.Error, "history write failed")
	case "canceled", "cancelled":
		s.span.SetStatus(codes.Error, "history write canceled")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

// AddAttribute implements history.SpanContext.
func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var _ history.SpanContext = (*OTelSpanContext)(nil)
