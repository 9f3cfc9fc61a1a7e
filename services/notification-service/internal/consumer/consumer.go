package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptreserve/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxAttempts  = 5
	DefaultRetryBackoff = time.Second
	maxRetryBackoff     = 30 * time.Second
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox de-duplicates events by id.
type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Forget(ctx context.Context, eventID, eventType string) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer commits an offset only once its message is settled: handled,
// skipped as a duplicate, or given up after MaxAttempts. A message left
// unsettled at shutdown is delivered again on the next start.
type Consumer struct {
	reader      messageReader
	logger      *slog.Logger
	inbox       Inbox
	handler     Handler
	maxAttempts int
	backoff     time.Duration
}

type Config struct {
	Brokers      string
	GroupID      string
	Topic        string
	MaxAttempts  int
	RetryBackoff time.Duration
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:      reader,
		logger:      logger,
		inbox:       inbox,
		handler:     handler,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}
		if !c.process(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka commit error", "err", err, "offset", msg.Offset)
		}
	}
}

// process retries the message with backoff. It reports false when ctx ended
// before the message was settled.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	backoff := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.attempt(ctxSpan, msg, meta)
		if err == nil {
			return true
		}
		span.RecordError(err)
		if attempt >= c.maxAttempts {
			c.logger.Error("event dropped after retries", "err", err, "event_id", meta.EventID, "attempts", attempt)
			return true
		}
		c.logger.Warn("event processing failed; retrying", "err", err, "event_id", meta.EventID, "attempt", attempt, "backoff", backoff.String())

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

func (c *Consumer) attempt(ctx context.Context, msg kafka.Message, meta kafkax.EventMeta) error {
	fresh, err := c.inbox.Record(ctx, meta.EventID, meta.EventType)
	if err != nil {
		return fmt.Errorf("inbox record: %w", err)
	}
	if !fresh {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}
	if err := c.handler(ctx, msg); err != nil {
		if ferr := c.inbox.Forget(context.WithoutCancel(ctx), meta.EventID, meta.EventType); ferr != nil {
			c.logger.Warn("inbox forget failed", "err", ferr, "event_id", meta.EventID)
		}
		return err
	}
	return nil
}
