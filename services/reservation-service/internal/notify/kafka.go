package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptreserve/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes confirmations for the notification service.
type KafkaDispatcher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

type confirmedPayload struct {
	Recipient   string  `json:"recipient"`
	ConfirmedAt string  `json:"confirmed_at"`
	Booking     Details `json:"booking"`
}

func NewKafkaDispatcher(cfg KafkaConfig) (*KafkaDispatcher, error) {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = TopicBookingConfirmed
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	return &KafkaDispatcher{writer: writer, topic: topic, now: time.Now}, nil
}

func (d *KafkaDispatcher) Send(ctx context.Context, recipient string, det Details) error {
	raw, err := json.Marshal(confirmedPayload{
		Recipient:   recipient,
		ConfirmedAt: d.now().UTC().Format(time.RFC3339),
		Booking:     det,
	})
	if err != nil {
		return err
	}
	meta := kafkax.EventMeta{EventID: uuid.NewString(), EventType: d.topic}
	msg := kafka.Message{
		Key:     []byte(det.BookingID),
		Value:   raw,
		Headers: kafkax.InjectTraceHeaders(ctx, meta.Headers()),
	}
	return d.writer.WriteMessages(ctx, msg)
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
