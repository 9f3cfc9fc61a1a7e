package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/availability"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/calendar"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/notify"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/slotgrid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Availability interface {
	Get(ctx context.Context, w calendar.Window) (*availability.BusyInfo, error)
	Invalidate(ctx context.Context, day time.Time) error
}

type Locker interface {
	ReserveFor(ctx context.Context, slotID, owner string) (bool, error)
	Release(ctx context.Context, slotID string) error
}

type Limits struct {
	PerSlot       int
	PerDay        int
	LookaheadDays int
}

type Config struct {
	Grid   slotgrid.Grid
	Limits Limits
	Now    func() time.Time
	// NotifyTimeout bounds each background confirmation dispatch.
	NotifyTimeout time.Duration
}

var errDayFull = errors.New("day fully booked")

// Orchestrator commits drafts against the calendar under the slot lock.
type Orchestrator struct {
	grid          slotgrid.Grid
	limits        Limits
	cache         Availability
	locks         Locker
	calendar      calendar.Client
	notifier      notify.Dispatcher
	logger        *slog.Logger
	now           func() time.Time
	notifyTimeout time.Duration
	tracer        trace.Tracer
	pending       sync.WaitGroup
}

func NewOrchestrator(cache Availability, locks Locker, cal calendar.Client, notifier notify.Dispatcher, logger *slog.Logger, cfg Config) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Limits.PerSlot <= 0 {
		cfg.Limits.PerSlot = 1
	}
	if cfg.Limits.PerDay <= 0 {
		cfg.Limits.PerDay = 5
	}
	if cfg.Limits.LookaheadDays <= 0 {
		cfg.Limits.LookaheadDays = 7
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &Orchestrator{
		grid:          cfg.Grid,
		limits:        cfg.Limits,
		cache:         cache,
		locks:         locks,
		calendar:      cal,
		notifier:      notifier,
		logger:        logger,
		now:           cfg.Now,
		notifyTimeout: cfg.NotifyTimeout,
		tracer:        otel.Tracer("reservation-service/booking"),
	}
}

// Confirm books the draft's slot. The slot lock is taken (or refreshed for
// the draft's owner) first and is released before Confirm returns.
func (o *Orchestrator) Confirm(ctx context.Context, d *Draft) (_ ConfirmedBooking, err error) {
	if d == nil || d.Slot.Start.IsZero() {
		return ConfirmedBooking{}, newError(KindValidation, "no time slot selected", nil)
	}
	slot := d.Slot
	slotID := slot.ID()

	ctx, span := o.tracer.Start(ctx, "booking.confirm", trace.WithAttributes(
		attribute.String("booking.slot_id", slotID),
		attribute.String("booking.draft_id", d.ID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindOf(err)))
		}
		span.End()
	}()

	ok, err := o.locks.ReserveFor(ctx, slotID, d.owner())
	if err != nil {
		o.release(ctx, slotID)
		return ConfirmedBooking{}, newError(KindCalendarWriteFailed, "could not secure the slot, please try again", err)
	}
	if !ok {
		return ConfirmedBooking{}, newError(KindSlotContention, "someone else is booking this time right now", nil)
	}
	defer o.release(ctx, slotID)

	if err := o.recheck(ctx, slot); err != nil {
		return ConfirmedBooking{}, err
	}

	attendee := calendar.Attendee{Name: d.Name, Phone: d.Phone, Email: d.Email}
	// The write is not cancelled with the request; the lock is held until it returns.
	eventID, err := o.calendar.CreateEvent(context.WithoutCancel(ctx), calendar.Summary(d.Name), slot.Start, slot.End, attendee)
	if err != nil {
		return ConfirmedBooking{}, newError(KindCalendarWriteFailed, "could not save the appointment, please try again", err)
	}
	if err := o.cache.Invalidate(context.WithoutCancel(ctx), slot.Start); err != nil {
		o.logger.Warn("availability invalidation failed", "day", slot.DayKey(), "err", err)
	}

	booking := ConfirmedBooking{
		EventID: eventID,
		Name:    d.Name,
		Phone:   d.Phone,
		Email:   d.Email,
		Slot:    slot,
	}
	o.logger.InfoContext(ctx, "booking confirmed", "event_id", eventID, "slot_id", slotID)
	o.dispatch(ctx, booking)
	return booking, nil
}

// recheck re-reads availability for the slot while the lock is held.
func (o *Orchestrator) recheck(ctx context.Context, slot slotgrid.Slot) error {
	info, err := o.cache.Get(ctx, o.windowFor(slot.Start))
	if err != nil {
		if errors.Is(err, availability.ErrCalendarUnavailable) {
			return newError(KindCalendarUnavailable, "the calendar is unavailable right now, please try again shortly", err)
		}
		return newError(KindCalendarWriteFailed, "could not verify availability, please try again", err)
	}
	day := slot.DayKey()
	if info.Total(day) >= o.limits.PerDay {
		return newError(KindSlotNoLongerAvailable, "that day is now fully booked", errDayFull)
	}
	if info.Occupancy(day, slot.Key()) >= o.limits.PerSlot {
		return newError(KindSlotNoLongerAvailable, "that time was just taken", nil)
	}
	if !slot.Start.After(o.now()) {
		return newError(KindSlotNoLongerAvailable, "that time has already passed", nil)
	}
	return nil
}

func (o *Orchestrator) release(ctx context.Context, slotID string) {
	if err := o.locks.Release(context.WithoutCancel(ctx), slotID); err != nil {
		o.logger.Warn("slot release failed; lock will expire", "slot_id", slotID, "err", err)
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, b ConfirmedBooking) {
	if o.notifier == nil {
		return
	}
	details := notify.Details{
		BookingID: b.EventID,
		Name:      b.Name,
		Phone:     b.Phone,
		Email:     b.Email,
		Start:     b.Slot.Start,
		End:       b.Slot.End,
	}
	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.notifyTimeout)
		defer cancel()
		if err := o.notifier.Send(sendCtx, b.Email, details); err != nil {
			o.logger.Error("booked, confirmation undeliverable",
				"event_id", b.EventID,
				"err", newError(KindNotificationFailed, "confirmation undeliverable", err),
			)
		}
	}()
}

// Wait blocks until in-flight confirmation dispatches finish.
func (o *Orchestrator) Wait() {
	o.pending.Wait()
}

// windowFor prefers the shared look-ahead window so confirmations and prompts
// hit the same cache entry.
func (o *Orchestrator) windowFor(day time.Time) calendar.Window {
	w := availability.NewWindow(o.grid, o.now(), o.limits.LookaheadDays)
	if w.Contains(day) {
		return w
	}
	return availability.NewWindow(o.grid, day, 1)
}

// openSlots lists the day's bookable slots: below the per-slot maximum, not
// started yet, and none at all once the day reached its maximum.
func (o *Orchestrator) openSlots(info *availability.BusyInfo, day time.Time) []slotgrid.Slot {
	key := slotgrid.DayKey(o.grid.Day(day))
	if info.Total(key) >= o.limits.PerDay {
		return nil
	}
	now := o.now()
	var open []slotgrid.Slot
	for _, s := range o.grid.Slots(day) {
		if info.Occupancy(key, s.Key()) >= o.limits.PerSlot || !s.Start.After(now) {
			continue
		}
		open = append(open, s)
	}
	return open
}

func (o *Orchestrator) today() time.Time {
	return o.grid.Day(o.now())
}
