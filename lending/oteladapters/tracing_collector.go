package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/librarydesk/lending-engine/lending"
)

// Span statuses reported by the engine and the SQL store.
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusError    = "error"
)

const attrOutcome = "lending.outcome"

// TracingCollector implements lending.TracingCollector on the OpenTelemetry tracing API.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a tracing collector on tracer.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan implements lending.TracingCollector. The returned context carries the new span.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, lending.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attributes(attrs)...))

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan implements lending.TracingCollector. Spans not created by this collector are ignored.
func (t *TracingCollector) FinishSpan(spanCtx lending.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(attributes(attrs)...)
	otelSpanCtx.SetStatus(status)
	otelSpanCtx.span.End()
}

var _ lending.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext implements lending.SpanContext by wrapping an OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus maps a lending status to the span status. A rejected operation is a valid
// business outcome, so its span stays unset and is tagged instead of marked as an error.
func (s *OTelSpanContext) SetStatus(status string) {
	switch status {
	case StatusSuccess, "ok":
		s.span.SetStatus(codes.Ok, "")
	case StatusRejected:
		s.span.SetAttributes(attribute.String(attrOutcome, StatusRejected))
	case StatusError:
		s.span.SetStatus(codes.Error, "lending operation failed")
	case "canceled", "cancelled":
		s.span.SetStatus(codes.Error, "lending operation canceled")
	default:
		s.span.SetAttributes(attribute.String(attrOutcome, status))
	}
}

// AddAttribute adds a string attribute to the span.
func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var _ lending.SpanContext = (*OTelSpanContext)(nil)
