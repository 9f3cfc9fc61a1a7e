package booking

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/availability"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/calendar"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/slotgrid"
)

const (
	BookingsPageSize = 5
	bookingsHorizon  = 365
	maxViewDays      = 31
)

type UserBookings struct {
	Items    []calendar.Event
	Page     int
	PageSize int
	Total    int
}

// ListUserBookings pages through the upcoming events booked under email.
func (o *Orchestrator) ListUserBookings(ctx context.Context, email string, page int) (UserBookings, error) {
	email, ok := validEmail(email)
	if !ok {
		return UserBookings{}, newError(KindValidation, "a valid email is required", nil)
	}
	if page < 0 {
		page = 0
	}
	events, err := o.upcomingFor(ctx, email)
	if err != nil {
		return UserBookings{}, err
	}

	out := UserBookings{Page: page, PageSize: BookingsPageSize, Total: len(events)}
	from := page * BookingsPageSize
	if from < len(events) {
		to := min(from+BookingsPageSize, len(events))
		out.Items = events[from:to]
	}
	return out, nil
}

// CancelBooking deletes an upcoming event owned by email.
func (o *Orchestrator) CancelBooking(ctx context.Context, email, eventID string) error {
	email, ok := validEmail(email)
	if !ok || eventID == "" {
		return newError(KindValidation, "email and booking id are required", nil)
	}
	events, err := o.upcomingFor(ctx, email)
	if err != nil {
		return err
	}
	var target *calendar.Event
	for i := range events {
		if events[i].ID == eventID {
			target = &events[i]
			break
		}
	}
	if target == nil {
		return newError(KindValidation, "no such booking", nil)
	}

	err = o.calendar.DeleteEvent(context.WithoutCancel(ctx), eventID)
	if errors.Is(err, calendar.ErrNotFound) {
		return newError(KindValidation, "no such booking", err)
	}
	if err != nil {
		return newError(KindCalendarWriteFailed, "could not cancel the appointment, please try again", err)
	}
	if err := o.cache.Invalidate(context.WithoutCancel(ctx), target.Start); err != nil {
		o.logger.Warn("availability invalidation failed", "event_id", eventID, "err", err)
	}
	o.logger.InfoContext(ctx, "booking cancelled", "event_id", eventID)
	return nil
}

func (o *Orchestrator) upcomingFor(ctx context.Context, email string) ([]calendar.Event, error) {
	now := o.now()
	events, err := o.calendar.ListEvents(ctx, calendar.Window{Start: now, End: now.AddDate(0, 0, bookingsHorizon)})
	if err != nil {
		return nil, unavailable(err)
	}
	var mine []calendar.Event
	for _, e := range events {
		if !e.Start.Before(now) && calendar.BelongsTo(e, email) {
			mine = append(mine, e)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].Start.Before(mine[j].Start) })
	return mine, nil
}

type DayAvailability struct {
	Day   string
	Slots []string
}

// OpenDays lists, for days starting at from, the days with open slots.
// Past days are skipped and the period is capped at a month.
func (o *Orchestrator) OpenDays(ctx context.Context, from time.Time, days int) ([]DayAvailability, error) {
	if days <= 0 {
		days = o.limits.LookaheadDays
	}
	days = min(days, maxViewDays)
	start := o.grid.Day(from)
	if today := o.today(); start.Before(today) {
		start = today
	}
	info, err := o.cache.Get(ctx, availability.NewWindow(o.grid, start, days))
	if err != nil {
		return nil, unavailable(err)
	}
	var out []DayAvailability
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		open := o.openSlots(info, day)
		if len(open) == 0 {
			continue
		}
		da := DayAvailability{Day: slotgrid.DayKey(day)}
		for _, s := range open {
			da.Slots = append(da.Slots, s.Key())
		}
		out = append(out, da)
	}
	return out, nil
}
