package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptreserve/libs/kafkax"
	"github.com/md-rashed-zaman/apptreserve/services/notification-service/internal/inbox"
	"github.com/segmentio/kafka-go"
)

type sliceReader struct {
	msgs      []kafka.Message
	committed []string
	stop      context.CancelFunc
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.stop()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, kafkax.ExtractEventMeta(m).EventID)
	}
	return nil
}

func (r *sliceReader) Close() error { return nil }

func message(eventID string) kafka.Message {
	return kafka.Message{
		Topic:   "booking.appointment.confirmed.v1",
		Key:     []byte("evt"),
		Headers: kafkax.EventMeta{EventID: eventID, EventType: "booking.appointment.confirmed.v1"}.Headers(),
	}
}

func newTestConsumer(r *sliceReader, maxAttempts int, backoff time.Duration, h Handler) *Consumer {
	return &Consumer{
		reader:      r,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:       inbox.NewMemory(),
		handler:     h,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

func TestConsumer_SkipsDuplicatesAndRetriesFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := map[string]int{}
	failOnce := true
	r := &sliceReader{msgs: []kafka.Message{message("a"), message("a"), message("b"), message("c")}, stop: cancel}
	c := newTestConsumer(r, 3, time.Millisecond, func(_ context.Context, msg kafka.Message) error {
		id := kafkax.ExtractEventMeta(msg).EventID
		calls[id]++
		if id == "b" && failOnce {
			failOnce = false
			return errors.New("smtp down")
		}
		return nil
	})
	c.Run(ctx)

	if calls["a"] != 1 {
		t.Fatalf("expected duplicate of a to be skipped, got %d calls", calls["a"])
	}
	if calls["b"] != 2 {
		t.Fatalf("expected failed b to be retried before moving on, got %d calls", calls["b"])
	}
	if calls["c"] != 1 {
		t.Fatalf("expected c to be handled once, got %d calls", calls["c"])
	}
	if len(r.committed) != 4 || r.committed[2] != "b" {
		t.Fatalf("expected every settled message committed in order, got %v", r.committed)
	}
}

func TestConsumer_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	r := &sliceReader{msgs: []kafka.Message{message("a")}, stop: cancel}
	c := newTestConsumer(r, 3, time.Millisecond, func(context.Context, kafka.Message) error {
		calls++
		return errors.New("mailbox unavailable")
	})
	c.Run(ctx)

	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(r.committed) != 1 {
		t.Fatalf("expected the exhausted message to be committed, got %v", r.committed)
	}
}

func TestConsumer_ShutdownMidRetryLeavesOffsetUncommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &sliceReader{msgs: []kafka.Message{message("a")}, stop: cancel}
	c := newTestConsumer(r, 5, time.Hour, func(context.Context, kafka.Message) error {
		cancel()
		return errors.New("smtp down")
	})
	c.Run(ctx)

	if len(r.committed) != 0 {
		t.Fatalf("expected no commit, got %v", r.committed)
	}
	if fresh, _ := c.inbox.Record(context.Background(), "a", "booking.appointment.confirmed.v1"); !fresh {
		t.Fatal("expected the failed event to be forgotten by the inbox")
	}
}
