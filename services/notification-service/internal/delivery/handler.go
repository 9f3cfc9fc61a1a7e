package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptreserve/libs/kafkax"
	"github.com/md-rashed-zaman/apptreserve/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/apptreserve/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

const channelEmail = "email"

// Handler turns booking confirmations into attendee emails.
type Handler struct {
	sender   email.Sender
	recorder storage.Recorder
	loc      *time.Location
	logger   *slog.Logger
}

func NewHandler(sender email.Sender, recorder storage.Recorder, loc *time.Location, logger *slog.Logger) *Handler {
	if recorder == nil {
		recorder = storage.Discard{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{sender: sender, recorder: recorder, loc: loc, logger: logger}
}

// Handle returns an error only when a retry could succeed; malformed
// payloads are logged and dropped.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)

	var c email.Confirmation
	if err := json.Unmarshal(msg.Value, &c); err != nil {
		h.logger.Error("invalid confirmation payload", "err", err, "event_id", meta.EventID)
		return nil
	}
	if err := c.Validate(); err != nil {
		h.logger.Error("confirmation rejected", "err", err, "event_id", meta.EventID)
		return nil
	}

	subject, body := email.Compose(c, h.loc)
	d := storage.Delivery{
		EventID:   meta.EventID,
		BookingID: c.Booking.BookingID,
		Channel:   channelEmail,
		Recipient: c.Recipient,
		Status:    storage.StatusSent,
	}
	sendErr := h.sender.Send(c.Recipient, subject, body)
	if sendErr != nil {
		d.Status = storage.StatusFailed
		d.Error = sendErr.Error()
		h.logger.Error("email send failed", "err", sendErr, "booking_id", c.Booking.BookingID)
	}
	if err := h.recorder.Record(ctx, d); err != nil {
		h.logger.Error("failed to persist delivery", "err", err, "booking_id", c.Booking.BookingID)
	}
	if sendErr != nil {
		return fmt.Errorf("send confirmation %s: %w", c.Booking.BookingID, sendErr)
	}

	h.logger.Info("confirmation sent", "booking_id", c.Booking.BookingID, "event_id", meta.EventID)
	return nil
}
