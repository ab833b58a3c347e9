package tracing

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const traceparentHeader = "traceparent"

// KafkaHeaders returns the traceparent of ctx as record headers, or nil
// when ctx carries no span.
func KafkaHeaders(ctx context.Context) []kgo.RecordHeader {
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)

	tp, ok := carrier[traceparentHeader]
	if !ok {
		return nil
	}
	return []kgo.RecordHeader{{Key: traceparentHeader, Value: []byte(tp)}}
}

// LinksFromKafka links a consumer span to the producer span named in the
// record's traceparent header. Consumption is asynchronous, so the producer
// is linked rather than made the parent.
func LinksFromKafka(ctx context.Context, headers []kgo.RecordHeader) []trace.Link {
	carrier := propagation.MapCarrier{}
	for _, h := range headers {
		if h.Key == traceparentHeader {
			carrier[traceparentHeader] = string(h.Value)
			break
		}
	}
	if carrier[traceparentHeader] == "" {
		return nil
	}

	sc := trace.SpanContextFromContext(propagation.TraceContext{}.Extract(ctx, carrier))
	if !sc.IsValid() {
		return nil
	}
	return []trace.Link{{
		SpanContext: sc,
		Attributes: []attribute.KeyValue{
			attribute.String("link.type", "async"),
			attribute.String("link.protocol", "kafka"),
			attribute.String("link.role", "consumer"),
		},
	}}
}
