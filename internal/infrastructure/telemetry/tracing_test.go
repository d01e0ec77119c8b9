package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// useSpanRecorder installs a recording global tracer provider for one test
func useSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	recorder := useSpanRecorder(t)
	invoiceID := uuid.New()

	ctx, span := StartServiceSpan(context.Background(), "invoice", "create",
		WithAttribute(SpanAttrItemCount, 3),
		WithSpanKind(trace.SpanKindServer),
	)
	assert.NotEmpty(t, GetTraceID(ctx))
	SetAttributes(span, SpanAttrInvoiceID, invoiceID, SpanAttrInvoiceNumber, "INV-2025-0001", 42, "skipped")
	AddEvent(span, "number_allocated", SpanAttrAttempt, 1)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "invoice.create", s.Name())
	assert.Equal(t, trace.SpanKindServer, s.SpanKind())

	attrs := attrMap(s.Attributes())
	assert.Equal(t, int64(3), attrs[SpanAttrItemCount].AsInt64())
	assert.Equal(t, invoiceID.String(), attrs[SpanAttrInvoiceID].AsString())
	assert.Equal(t, "INV-2025-0001", attrs[SpanAttrInvoiceNumber].AsString())
	assert.Len(t, attrs, 3, "pairs with a non-string key are dropped")

	require.Len(t, s.Events(), 1)
	assert.Equal(t, "number_allocated", s.Events()[0].Name)
}

func TestRecordError(t *testing.T) {
	recorder := useSpanRecorder(t)

	_, span := StartSpan(context.Background(), "payment.complete")
	RecordError(span, nil)
	RecordError(span, errors.New("row locked"))
	span.End()

	s := recorder.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "row locked", s.Status().Description)
	require.Len(t, s.Events(), 1, "nil errors are not recorded")
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestToAttribute(t *testing.T) {
	tests := []struct {
		value any
		want  attribute.Type
	}{
		{"s", attribute.STRING},
		{7, attribute.INT64},
		{int64(7), attribute.INT64},
		{1.5, attribute.FLOAT64},
		{true, attribute.BOOL},
		{[]string{"a"}, attribute.STRINGSLICE},
		{uuid.New(), attribute.STRING},
		{struct{}{}, attribute.STRING},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toAttribute("k", tt.value).Value.Type(), "%T", tt.value)
	}
}
