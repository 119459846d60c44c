package kafka

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/goccy/go-json"
	pkgerrors "github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// OutgoingEvent is a single keyed event to publish. Value is JSON-encoded on publish.
type OutgoingEvent struct {
	Key           string
	EventType     string
	SchemaVersion string
	Value         any
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{}, // Same canonical ID, same partition
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compressionCodec(cfg.Compression),
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Snappy
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Publish writes the events as one batch. Either every message is acknowledged or an
// error is returned.
func (p *Producer) Publish(ctx context.Context, events []OutgoingEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.Publish")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	messages, err := p.encode(ctx, events)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(events),
		}).Error("Failed to publish events batch")
		return pkgerrors.Wrap(err, "failed to publish events batch")
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(events),
		"topic":      p.topic,
	}).Debug("Published events batch")

	return nil
}

func (p *Producer) encode(ctx context.Context, events []OutgoingEvent) ([]kafka.Message, error) {
	traceParent := tracing.GetTraceParent(ctx)
	traceState := tracing.GetTraceState(ctx)

	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		data, err := json.Marshal(event.Value)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to encode %s event %q", event.EventType, event.Key)
		}

		headers := []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(event.SchemaVersion)},
		}
		if traceParent != "" {
			headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceParent)})
		}
		if traceState != "" {
			headers = append(headers, kafka.Header{Key: "tracestate", Value: []byte(traceState)})
		}

		messages[i] = kafka.Message{
			Topic:   p.topic,
			Key:     []byte(event.Key),
			Value:   data,
			Headers: headers,
		}
	}
	return messages, nil
}
