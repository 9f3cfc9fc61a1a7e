package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("calendar event not found")

// Window is a half-open range [Start, End) of whole days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Key identifies the window in caches, e.g. "2026-10-16/2026-10-23".
func (w Window) Key() string {
	return w.Start.Format("2006-01-02") + "/" + w.End.Format("2006-01-02")
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

type Attendee struct {
	Name  string
	Phone string
	Email string
}

// Client is the external calendar. Implementations return wrapped errors that
// callers distinguish from an empty result.
type Client interface {
	ListEvents(ctx context.Context, w Window) ([]Event, error)
	CreateEvent(ctx context.Context, summary string, start, end time.Time, attendee Attendee) (string, error)
	DeleteEvent(ctx context.Context, id string) error
}

func Summary(name string) string {
	return "Appointment - " + strings.TrimSpace(name)
}

func Description(a Attendee) string {
	return fmt.Sprintf("Name: %s\nPhone: %s\nEmail: %s",
		strings.TrimSpace(a.Name), strings.TrimSpace(a.Phone), strings.ToLower(strings.TrimSpace(a.Email)))
}

// BelongsTo reports whether the event description names email as the attendee.
func BelongsTo(e Event, email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, line := range strings.Split(e.Description, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "Email:"); ok {
			return strings.ToLower(strings.TrimSpace(v)) == email
		}
	}
	return false
}
