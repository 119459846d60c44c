package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	pkgerrors "github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// MessageHandler receives each fetched message. Returning an error stops the consume loop;
// commits are the handler's responsibility.
type MessageHandler func(ctx context.Context, msg *IncomingMessage) error

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// Fetch retry delays while the broker is unreachable
const (
	DefaultFetchRetryMin = 200 * time.Millisecond
	DefaultFetchRetryMax = 10 * time.Second
)

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	Config() kafka.ReaderConfig
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fetches scraped event records from Kafka. Offsets are committed explicitly
// so a batch is only acknowledged once its canonical events have been published.
type Consumer struct {
	reader   messageReader
	logger   ectologger.Logger
	handler  MessageHandler
	retryMin time.Duration
	retryMax time.Duration
	wg       sync.WaitGroup
	cancel   context.CancelFunc

	mu      sync.RWMutex
	running bool
	lastErr error
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})

	return newConsumer(reader, logger, handler)
}

func newConsumer(reader messageReader, logger ectologger.Logger, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:   reader,
		logger:   logger,
		handler:  handler,
		retryMin: DefaultFetchRetryMin,
		retryMax: DefaultFetchRetryMax,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.setRunning(true, nil)
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic": c.reader.Config().Topic,
		"group": c.reader.Config().GroupID,
	}).Info("Kafka consumer started")
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

// Commit acknowledges the given messages
func (c *Consumer) Commit(ctx context.Context, msgs ...*IncomingMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	raw := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		raw[i] = m.raw
	}
	if err := c.reader.CommitMessages(ctx, raw...); err != nil {
		return pkgerrors.Wrapf(err, "failed to commit %d messages", len(raw))
	}
	return nil
}

// Health reports whether the consume loop is running
func (c *Consumer) Health() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reader != nil && c.running
}

// Err returns the error that stopped the consume loop, if any
func (c *Consumer) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Consumer) setRunning(running bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = running
	c.lastErr = err
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	failures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.WithContext(ctx).Info("Consumer loop stopping")
				c.setRunning(false, nil)
				return
			}

			failures++
			wait := c.retryDelay(failures)
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"failures": failures,
				"retry_in": wait.String(),
			}).Error("Failed to fetch message")

			select {
			case <-ctx.Done():
				c.logger.WithContext(ctx).Info("Consumer loop stopping")
				c.setRunning(false, nil)
				return
			case <-time.After(wait):
			}
			continue
		}
		failures = 0

		if err := c.handle(ctx, msg); err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.WithContext(ctx).WithError(err).Error("Message handler failed, stopping consumer")
			}
			c.setRunning(false, err)
			return
		}
	}
}

// retryDelay doubles from retryMin with each consecutive failure, up to retryMax
func (c *Consumer) retryDelay(failures int) time.Duration {
	wait := c.retryMin
	for i := 1; i < failures && wait < c.retryMax; i++ {
		wait *= 2
	}
	if wait > c.retryMax {
		wait = c.retryMax
	}
	return wait
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	incoming := newIncomingMessage(msg)

	// Continue the producer's trace when the message carries one
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(incoming.Headers))
	msgCtx, span := tracing.StartSpan(msgCtx, "kafka.Consumer.handle")
	defer span.End()

	return c.handler(msgCtx, incoming)
}
