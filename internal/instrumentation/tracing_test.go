package instrumentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSpanAttributeBuilder(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithMessage("jetstream", 2, "42").
		WithFileKey("host/single_processed.json").
		WithHost("host").
		WithEvent("E1").
		WithReplan(true).
		Build()

	want := map[attribute.Key]string{
		SpanAttrTransport: "jetstream",
		SpanAttrPartition: "2",
		SpanAttrMessageID: "42",
		SpanAttrFileKey:   "host/single_processed.json",
		SpanAttrHostID:    "host",
		SpanAttrEventID:   "E1",
		SpanAttrReplan:    "true",
	}
	assert.Len(t, attrs, len(want))
	for _, a := range attrs {
		assert.Equal(t, want[a.Key], a.Value.Emit(), "attribute %s", a.Key)
	}
}

func TestSpanAttributeBuilder_EmptyValues(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithMessage("valkey", -1, "").
		WithFileKey("").
		WithHost("").
		WithEvent("").
		Build()

	// transport and partition only
	assert.Len(t, attrs, 2)
}

func TestSpans(t *testing.T) {
	ctx := context.Background()

	ctx, span := StartSpan(ctx, "reconcile.apply", attribute.String("k", "v"))
	assert.NotNil(t, ctx)
	SetSpanSuccess(span)
	span.End()

	_, span = StartConsumerSpan(ctx, "valkey")
	AddStageEvent(span, "fetching_payload")
	SetSpanError(span, errors.New("boom"))
	SetSpanError(span, nil)
	span.End()

	_, span = StartToolSpan(ctx, "availability_find_slots")
	span.End()
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}
