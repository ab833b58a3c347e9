package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeadersRoundTrip(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	headers := KafkaHeaders(ctx)
	require.Len(t, headers, 1)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", string(headers[0].Value))

	links := LinksFromKafka(context.Background(), headers)
	require.Len(t, links, 1)
	assert.Equal(t, traceID, links[0].SpanContext.TraceID())
	assert.Equal(t, spanID, links[0].SpanContext.SpanID())
}

func TestLinksFromKafka_missingOrMalformed(t *testing.T) {
	assert.Nil(t, KafkaHeaders(context.Background()))
	assert.Nil(t, LinksFromKafka(context.Background(), nil))
	assert.Nil(t, LinksFromKafka(context.Background(), []kgo.RecordHeader{{Key: "traceparent", Value: []byte("garbage")}}))
}
