package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectTraceContext(ctx, []kafka.Header{{Key: "content-type", Value: []byte("application/json")}})
	require.Len(t, headers, 2)

	extracted := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), headers))
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
	assert.True(t, extracted.IsRemote())
}

func TestHeaderCarrier_SetReplacesExisting(t *testing.T) {
	headers := []kafka.Header{{Key: "traceparent", Value: []byte("old")}}
	carrier := headerCarrier{headers: &headers}

	carrier.Set("traceparent", "new")
	carrier.Set("tracestate", "k=v")

	assert.Equal(t, "new", carrier.Get("traceparent"))
	assert.Equal(t, []string{"traceparent", "tracestate"}, carrier.Keys())
}

func TestStartConsumerSpan_ContinuesProducerTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})

	producerCtx, producer := tp.Tracer("test").Start(context.Background(), "publish")
	producer.End()

	_, span := StartConsumerSpan(context.Background(), kafka.Message{
		Topic:     "membership_triggers",
		Partition: 2,
		Offset:    41,
		Key:       []byte("store-1"),
		Headers:   InjectTraceContext(producerCtx, nil),
	})
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	consumer := ended[1]
	assert.Equal(t, "membership_triggers process", consumer.Name())
	assert.Equal(t, trace.SpanKindConsumer, consumer.SpanKind())
	assert.Equal(t, producer.SpanContext().TraceID(), consumer.SpanContext().TraceID())
}
