package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/slotgrid"
)

const (
	promptIdle    = "Send start to book an appointment."
	promptName    = "Let's book your appointment. Please enter your full name."
	promptPhone   = "Thanks, %s. Now your phone number, e.g. (11)91234-5678."
	promptDay     = "Choose a day."
	promptSlot    = "Choose a time on %s."
	promptEmail   = "Please enter your email address."
	promptConfirm = "Confirm the appointment for %s on %s at %s?"
	promptBooked  = "Your appointment is booked for %s at %s."
	promptAborted = "Booking cancelled."
)

// Machine drives one draft per user through the booking steps.
type Machine struct {
	orch     *Orchestrator
	sessions *Sessions
	logger   *slog.Logger
}

func NewMachine(orch *Orchestrator, sessions *Sessions, logger *slog.Logger) *Machine {
	if sessions == nil {
		sessions = NewSessions()
	}
	return &Machine{orch: orch, sessions: sessions, logger: logger}
}

func (m *Machine) Sessions() *Sessions { return m.sessions }

// Handle applies one input to the user's draft. Inputs of the same user are
// serialized. The returned error is the reply's recoverable error, if any.
func (m *Machine) Handle(ctx context.Context, userID string, in Input) (Reply, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		e := newError(KindValidation, "user id is required", nil)
		return Reply{Step: StepNone, Prompt: promptIdle, Err: e}, e
	}

	sess := m.sessions.acquire(userID)
	defer m.sessions.release(userID, sess)

	reply := m.step(ctx, sess, userID, in)
	if reply.Err != nil {
		return reply, reply.Err
	}
	return reply, nil
}

func (m *Machine) step(ctx context.Context, sess *session, userID string, in Input) Reply {
	switch in.Kind {
	case InputStart:
		m.discard(ctx, sess)
		sess.draft = &Draft{ID: uuid.NewString(), UserID: userID, Step: StepCollectingName}
		return m.render(ctx, sess.draft, nil, "")
	case InputAbort:
		m.discard(ctx, sess)
		return Reply{Step: StepNone, Prompt: promptAborted}
	}

	d := sess.draft
	if d == nil {
		return Reply{Step: StepNone, Prompt: promptIdle, Err: newError(KindValidation, "no booking in progress", nil)}
	}
	if in.Kind == InputBack {
		return m.back(ctx, d)
	}

	switch d.Step {
	case StepCollectingName:
		return m.onName(ctx, d, in)
	case StepCollectingPhone:
		return m.onPhone(ctx, d, in)
	case StepSelectingDay:
		return m.onDay(ctx, d, in)
	case StepSelectingSlot:
		return m.onSlot(ctx, d, in)
	case StepCollectingEmail:
		return m.onEmail(ctx, d, in)
	case StepConfirming:
		return m.onConfirm(ctx, sess, in)
	}
	return m.render(ctx, d, newError(KindValidation, "unexpected input", nil), "")
}

func (m *Machine) onName(ctx context.Context, d *Draft, in Input) Reply {
	name, ok := validName(in.Text)
	if in.Kind != InputText || !ok {
		return m.render(ctx, d, newError(KindValidation, "please enter a valid name", nil), "")
	}
	d.Name = name
	d.Step = StepCollectingPhone
	return m.render(ctx, d, nil, "")
}

func (m *Machine) onPhone(ctx context.Context, d *Draft, in Input) Reply {
	phone, ok := validPhone(in.Text)
	if in.Kind != InputText || !ok {
		return m.render(ctx, d, newError(KindValidation, "invalid phone number, use the format (11)91234-5678", nil), "")
	}
	d.Phone = phone
	d.Step = StepSelectingDay
	return m.render(ctx, d, nil, "")
}

func (m *Machine) onDay(ctx context.Context, d *Draft, in Input) Reply {
	if in.Kind != InputDay {
		return m.render(ctx, d, newError(KindValidation, "please choose one of the listed days", nil), "")
	}
	day, err := m.orch.grid.ParseDay(in.Text)
	if err != nil {
		return m.render(ctx, d, newError(KindValidation, "days look like 2026-10-16", nil), "")
	}
	if e := m.checkDay(ctx, day); e != nil {
		return m.render(ctx, d, e, slotgrid.DayKey(day))
	}
	d.Day = day
	d.Step = StepSelectingSlot
	return m.render(ctx, d, nil, "")
}

// checkDay accepts a day inside the look-ahead window, not past, below the
// daily maximum and with at least one open slot.
func (m *Machine) checkDay(ctx context.Context, day time.Time) *Error {
	o := m.orch
	today := o.today()
	if day.Before(today) {
		return newError(KindValidation, "that day is in the past", nil)
	}
	if !day.Before(today.AddDate(0, 0, o.limits.LookaheadDays)) {
		return newError(KindValidation, fmt.Sprintf("choose a day within the next %d days", o.limits.LookaheadDays), nil)
	}
	info, err := o.cache.Get(ctx, o.windowFor(day))
	if err != nil {
		return unavailable(err)
	}
	if info.Total(slotgrid.DayKey(day)) >= o.limits.PerDay {
		return newError(KindValidation, "that day is fully booked", nil)
	}
	if len(o.openSlots(info, day)) == 0 {
		return newError(KindValidation, "no times left on that day", nil)
	}
	return nil
}

func (m *Machine) onSlot(ctx context.Context, d *Draft, in Input) Reply {
	if in.Kind != InputSlot {
		return m.render(ctx, d, newError(KindValidation, "please choose one of the listed times", nil), "")
	}
	o := m.orch
	slot, ok := o.grid.Lookup(d.Day, in.Text)
	if !ok {
		return m.render(ctx, d, newError(KindValidation, "that time is outside our opening hours", nil), "")
	}
	info, err := o.cache.Get(ctx, o.windowFor(d.Day))
	if err != nil {
		return m.render(ctx, d, unavailable(err), slot.Key())
	}
	if !slotOpen(o.openSlots(info, d.Day), slot) {
		return m.render(ctx, d, newError(KindValidation, "that time is not available", nil), slot.Key())
	}

	slotID := slot.ID()
	if d.HeldSlot != "" && d.HeldSlot != slotID {
		m.releaseHold(ctx, d)
	}
	held, err := o.locks.ReserveFor(ctx, slotID, d.owner())
	if err != nil {
		return m.render(ctx, d, newError(KindCalendarWriteFailed, "could not hold that time, please try again", err), slot.Key())
	}
	if !held {
		return m.render(ctx, d, newError(KindSlotContention, "someone else is booking that time right now", nil), slot.Key())
	}
	d.Slot = slot
	d.HeldSlot = slotID
	d.Step = StepCollectingEmail
	return m.render(ctx, d, nil, "")
}

func (m *Machine) onEmail(ctx context.Context, d *Draft, in Input) Reply {
	email, ok := validEmail(in.Text)
	if in.Kind != InputText || !ok {
		return m.render(ctx, d, newError(KindValidation, "please enter a valid email address", nil), "")
	}
	d.Email = email
	d.Step = StepConfirming
	return m.render(ctx, d, nil, "")
}

func (m *Machine) onConfirm(ctx context.Context, sess *session, in Input) Reply {
	d := sess.draft
	if in.Kind != InputConfirm {
		return m.render(ctx, d, newError(KindValidation, "reply confirm or abort", nil), "")
	}

	booking, err := m.orch.Confirm(ctx, d)
	d.HeldSlot = ""
	if err == nil {
		sess.draft = nil
		return Reply{
			Step:    StepTerminal,
			Prompt:  fmt.Sprintf(promptBooked, booking.Slot.DayKey(), booking.Slot.Key()),
			Booking: &booking,
		}
	}

	var be *Error
	if !errors.As(err, &be) {
		be = newError(KindCalendarWriteFailed, "could not save the appointment, please try again", err)
	}
	m.logger.InfoContext(ctx, "booking confirm failed", "draft_id", d.ID, "kind", be.Kind, "err", err)

	slotKey := d.Slot.Key()
	d.Slot = slotgrid.Slot{}
	if errors.Is(err, errDayFull) {
		d.Step = StepSelectingDay
		return m.render(ctx, d, be, slotgrid.DayKey(d.Day))
	}
	d.Step = StepSelectingSlot
	exclude := ""
	if be.Kind == KindSlotContention || be.Kind == KindSlotNoLongerAvailable {
		exclude = slotKey
	}
	return m.render(ctx, d, be, exclude)
}

// back moves to the previous step; leaving the email step for slot selection
// or earlier drops the provisional hold.
func (m *Machine) back(ctx context.Context, d *Draft) Reply {
	prev := map[Step]Step{
		StepCollectingPhone: StepCollectingName,
		StepSelectingDay:    StepCollectingPhone,
		StepSelectingSlot:   StepSelectingDay,
		StepCollectingEmail: StepSelectingSlot,
		StepConfirming:      StepCollectingEmail,
	}
	to, ok := prev[d.Step]
	if !ok {
		return m.render(ctx, d, newError(KindValidation, "there is no earlier step", nil), "")
	}
	if to <= StepSelectingSlot && d.HeldSlot != "" {
		m.releaseHold(ctx, d)
		d.Slot = slotgrid.Slot{}
	}
	d.Step = to
	return m.render(ctx, d, nil, "")
}

func (m *Machine) discard(ctx context.Context, sess *session) {
	if sess.draft != nil && sess.draft.HeldSlot != "" {
		m.releaseHold(ctx, sess.draft)
	}
	sess.draft = nil
}

func (m *Machine) releaseHold(ctx context.Context, d *Draft) {
	m.orch.release(ctx, d.HeldSlot)
	d.HeldSlot = ""
}

// render builds the reply for the draft's current step. exclude names a day
// or slot key that must not be offered in this render.
func (m *Machine) render(ctx context.Context, d *Draft, e *Error, exclude string) Reply {
	r := Reply{Step: d.Step, Err: e}
	switch d.Step {
	case StepCollectingName:
		r.Prompt = promptName
	case StepCollectingPhone:
		r.Prompt = fmt.Sprintf(promptPhone, d.Name)
	case StepSelectingDay:
		r.Prompt = promptDay
		opts, err := m.dayOptions(ctx, exclude)
		if err != nil && r.Err == nil {
			r.Err = err
		}
		r.Options = opts
	case StepSelectingSlot:
		r.Prompt = fmt.Sprintf(promptSlot, slotgrid.DayKey(d.Day))
		opts, err := m.slotOptions(ctx, d.Day, exclude)
		if err != nil && r.Err == nil {
			r.Err = err
		}
		r.Options = opts
	case StepCollectingEmail:
		r.Prompt = promptEmail
		if d.Email != "" {
			r.Options = []string{d.Email}
		}
	case StepConfirming:
		r.Prompt = fmt.Sprintf(promptConfirm, d.Name, d.Slot.DayKey(), d.Slot.Key())
		r.Options = []string{string(InputConfirm), string(InputAbort)}
	}
	return r
}

func (m *Machine) dayOptions(ctx context.Context, exclude string) ([]string, *Error) {
	o := m.orch
	today := o.today()
	info, err := o.cache.Get(ctx, o.windowFor(today))
	if err != nil {
		return nil, unavailable(err)
	}
	var opts []string
	for i := 0; i < o.limits.LookaheadDays; i++ {
		day := today.AddDate(0, 0, i)
		key := slotgrid.DayKey(day)
		if key == exclude || len(o.openSlots(info, day)) == 0 {
			continue
		}
		opts = append(opts, key)
	}
	return opts, nil
}

func (m *Machine) slotOptions(ctx context.Context, day time.Time, exclude string) ([]string, *Error) {
	o := m.orch
	info, err := o.cache.Get(ctx, o.windowFor(day))
	if err != nil {
		return nil, unavailable(err)
	}
	var opts []string
	for _, s := range o.openSlots(info, day) {
		if s.Key() == exclude {
			continue
		}
		opts = append(opts, s.Key())
	}
	return opts, nil
}

func slotOpen(open []slotgrid.Slot, slot slotgrid.Slot) bool {
	for _, s := range open {
		if s.Start.Equal(slot.Start) {
			return true
		}
	}
	return false
}

func unavailable(err error) *Error {
	return newError(KindCalendarUnavailable, "the calendar is unavailable right now, please try again shortly", err)
}
