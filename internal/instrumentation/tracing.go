package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for meetassist.
const TracerName = "github.com/teemow/meetassist"

// Span attribute keys.
const (
	SpanAttrTool      = "mcp.tool"
	SpanAttrTransport = "queue.transport"
	SpanAttrPartition = "queue.partition"
	SpanAttrMessageID = "queue.message_id"
	SpanAttrFileKey   = "blob.key"
	SpanAttrHostID    = "planner.host_id"
	SpanAttrEventID   = "calendar.event_id"
	SpanAttrGroupID   = "planner.group_id"
	SpanAttrStage     = "ingest.stage"
	SpanAttrReplan    = "planner.replan"
)

// SpanAttributeBuilder helps construct OpenTelemetry span attributes
// with consistent naming.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{
		attrs: make([]attribute.KeyValue, 0, 8),
	}
}

// WithMessage adds transport, partition and message id attributes.
func (b *SpanAttributeBuilder) WithMessage(transport string, partition int, messageID string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs,
		attribute.String(SpanAttrTransport, transport),
		attribute.Int(SpanAttrPartition, partition),
	)
	if messageID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrMessageID, messageID))
	}
	return b
}

// WithFileKey adds the blob key attribute.
func (b *SpanAttributeBuilder) WithFileKey(key string) *SpanAttributeBuilder {
	if key != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrFileKey, key))
	}
	return b
}

// WithHost adds the host id attribute.
func (b *SpanAttributeBuilder) WithHost(hostID string) *SpanAttributeBuilder {
	if hostID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrHostID, hostID))
	}
	return b
}

// WithEvent adds the logical event id attribute.
func (b *SpanAttributeBuilder) WithEvent(eventID string) *SpanAttributeBuilder {
	if eventID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrEventID, eventID))
	}
	return b
}

// WithReplan adds the replan flag.
func (b *SpanAttributeBuilder) WithReplan(replan bool) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Bool(SpanAttrReplan, replan))
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts a new span with the given name and attributes.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartConsumerSpan starts a span for handling one queue message.
func StartConsumerSpan(ctx context.Context, transport string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "ingest."+transport+".handle",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}

// StartToolSpan starts a span for an MCP tool invocation.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrTool, toolName))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "tool."+toolName,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddStageEvent marks a worker state transition on the span.
func AddStageEvent(span trace.Span, stage string, attrs ...attribute.KeyValue) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrStage, stage)}, attrs...)
	span.AddEvent("stage."+stage, trace.WithAttributes(all...))
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
