package notify

import (
	"context"
	"log/slog"
	"time"
)

const TopicBookingConfirmed = "booking.appointment.confirmed.v1"

// Details describes a confirmed booking for the attendee.
type Details struct {
	BookingID string    `json:"booking_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
}

// Dispatcher hands a confirmation to the delivery channel. Callers treat it as
// fire-and-forget; an error never undoes the booking.
type Dispatcher interface {
	Send(ctx context.Context, recipient string, d Details) error
}

// LogDispatcher only records the confirmation; used when no broker is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, recipient string, det Details) error {
	d.logger.InfoContext(ctx, "booking confirmation not dispatched (no broker)",
		"booking_id", det.BookingID,
		"recipient", recipient,
		"start", det.Start.Format(time.RFC3339),
	)
	return nil
}
