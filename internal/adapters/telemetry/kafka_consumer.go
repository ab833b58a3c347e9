package telemetry

import (
	"context"
	"errors"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/platform/tracing"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PositionHandler receives decoded driver positions.
type PositionHandler interface {
	OnDriverPosition(ctx context.Context, pos domain.DriverPosition) error
}

type Config struct {
	Brokers []string
	Topic   string
	Group   string
}

// KafkaConsumer feeds driver positions from a Kafka topic into a
// PositionHandler. Records are processed one at a time per poll.
type KafkaConsumer struct {
	client  *kgo.Client
	topic   string
	handler PositionHandler
	logger  *slog.Logger
}

func NewKafkaConsumer(cfg Config, handler PositionHandler, logger *slog.Logger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer: no brokers configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: create client: %w", err)
	}

	return &KafkaConsumer{
		client:  client,
		topic:   cfg.Topic,
		handler: handler,
		logger:  logger.With("component", "telemetry", "topic", cfg.Topic),
	}, nil
}

// Run polls until ctx is cancelled or the client is closed.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "telemetry consumer started")
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			c.logger.InfoContext(ctx, "telemetry consumer stopped")
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "fetch failed", "partition", partition, "err", err)
		})
		fetches.EachRecord(func(r *kgo.Record) {
			c.handleRecord(ctx, r)
		})
	}
}

func (c *KafkaConsumer) handleRecord(ctx context.Context, r *kgo.Record) {
	ctx, span := otel.Tracer("ice-route-service/telemetry").Start(ctx, "telemetry.position",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithLinks(tracing.LinksFromKafka(ctx, r.Headers)...),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", r.Topic),
			attribute.Int64("messaging.kafka.offset", r.Offset),
		),
	)
	defer span.End()

	if err := handleMessage(ctx, c.handler, r.Value); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		level := slog.LevelError
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
			level = slog.LevelWarn
		}
		c.logger.Log(ctx, level, "position dropped", "partition", r.Partition, "offset", r.Offset, "err", err)
	}
}

func handleMessage(ctx context.Context, h PositionHandler, value []byte) error {
	pos, err := DecodePosition(value)
	if err != nil {
		return err
	}
	if err := h.OnDriverPosition(ctx, pos); err != nil {
		return fmt.Errorf("driver %s: %w", pos.DriverID, err)
	}
	return nil
}

func (c *KafkaConsumer) Close() {
	c.client.Close()
}
