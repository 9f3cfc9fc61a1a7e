package email

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Confirmation is the booking.appointment.confirmed.v1 payload.
type Confirmation struct {
	Recipient   string  `json:"recipient"`
	ConfirmedAt string  `json:"confirmed_at"`
	Booking     Booking `json:"booking"`
}

type Booking struct {
	BookingID string    `json:"booking_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
}

var ErrIncomplete = errors.New("confirmation payload incomplete")

func (c Confirmation) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Recipient) == "" {
		missing = append(missing, "recipient")
	}
	if c.Booking.BookingID == "" {
		missing = append(missing, "booking_id")
	}
	if c.Booking.Start.IsZero() || !c.Booking.End.After(c.Booking.Start) {
		missing = append(missing, "start_time/end_time")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// Compose renders the confirmation email in the business time zone.
func Compose(c Confirmation, loc *time.Location) (subject, body string) {
	if loc == nil {
		loc = time.UTC
	}
	start := c.Booking.Start.In(loc)
	end := c.Booking.End.In(loc)
	name := strings.TrimSpace(c.Booking.Name)
	if name == "" {
		name = "there"
	}

	subject = "Appointment confirmed - " + start.Format("02/01/2006 15:04")
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	fmt.Fprintf(&b, "Your appointment is confirmed for %s, %s from %s to %s.\n",
		start.Format("Monday"), start.Format("02/01/2006"), start.Format("15:04"), end.Format("15:04"))
	if c.Booking.Phone != "" {
		fmt.Fprintf(&b, "Contact phone on file: %s\n", c.Booking.Phone)
	}
	fmt.Fprintf(&b, "\nBooking reference: %s\n", c.Booking.BookingID)
	return subject, b.String()
}
