package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func (h *harness) draftFor(t *testing.T, user string) *Draft {
	t.Helper()
	day, _ := h.grid.ParseDay(testDayKey)
	slot, ok := h.grid.Lookup(day, testSlotKey)
	if !ok {
		t.Fatal("slot lookup failed")
	}
	return &Draft{
		ID:     user + "-draft",
		UserID: user,
		Step:   StepConfirming,
		Name:   "Ana",
		Phone:  "(11)91234-5678",
		Email:  user + "@example.com",
		Day:    day,
		Slot:   slot,
	}
}

func TestConfirm_TwoUsersOneSlot(t *testing.T) {
	h := newHarness(t)
	drafts := []*Draft{h.draftFor(t, "u1"), h.draftFor(t, "u2")}

	errs := make([]error, len(drafts))
	var wg sync.WaitGroup
	for i, d := range drafts {
		wg.Add(1)
		go func(i int, d *Draft) {
			defer wg.Done()
			_, errs[i] = h.orch.Confirm(context.Background(), d)
		}(i, d)
	}
	wg.Wait()
	h.orch.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotContention), errors.Is(err, ErrSlotNoLongerAvailable):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d (%v)", wins, errs)
	}
	if h.cal.Len() != 1 {
		t.Fatalf("expected exactly one calendar event, got %d", h.cal.Len())
	}
	if h.locks.Held(testSlotID) {
		t.Fatal("lock must be released")
	}
}

func TestConfirm_SecondUserSeesSlotTaken(t *testing.T) {
	h := newHarness(t)
	if _, err := h.orch.Confirm(context.Background(), h.draftFor(t, "u1")); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	_, err := h.orch.Confirm(context.Background(), h.draftFor(t, "u2"))
	if !errors.Is(err, ErrSlotNoLongerAvailable) {
		t.Fatalf("expected slot no longer available, got %v", err)
	}
	if h.cal.Len() != 1 {
		t.Fatalf("expected one event, got %d", h.cal.Len())
	}
}

func TestConfirm_CalendarWriteFailedReturnsToSlotSelection(t *testing.T) {
	h := newHarness(t)
	h.toConfirming(t, "u1", testDayKey, testSlotKey)
	h.cal.SetFailCreate(errors.New("quota exceeded"))

	reply, err := h.machine.Handle(context.Background(), "u1", Input{Kind: InputConfirm})
	if !errors.Is(err, ErrCalendarWriteFailed) {
		t.Fatalf("expected calendar write failure, got %v", err)
	}
	if reply.Step != StepSelectingSlot || !contains(reply.Options, testSlotKey) {
		t.Fatalf("expected selecting_slot offering the slot again, got %s %v", reply.Step, reply.Options)
	}
	if h.locks.Held(testSlotID) {
		t.Fatal("lock must be released after a failed write")
	}
	d, ok := h.machine.Sessions().Draft("u1")
	if !ok || d.Name != "Ana" || d.Phone != "(11)91234-5678" || d.Email != "u1@example.com" || d.HeldSlot != "" {
		t.Fatalf("draft details must survive, got %+v", d)
	}

	h.cal.SetFailCreate(nil)
	h.handle(t, "u1", InputSlot, testSlotKey)
	reply = h.handle(t, "u1", InputText, d.Email)
	if reply.Step != StepConfirming {
		t.Fatalf("expected confirming again, got %s", reply.Step)
	}
	if reply = h.handle(t, "u1", InputConfirm, ""); reply.Step != StepTerminal {
		t.Fatalf("expected retry to succeed, got %s %v", reply.Step, reply.Err)
	}
}

func TestConfirm_CalendarUnavailable(t *testing.T) {
	h := newHarness(t)
	h.toConfirming(t, "u1", testDayKey, testSlotKey)
	h.clock.Advance(3 * time.Minute)
	h.cal.SetFailList(errors.New("backend error"))

	reply, err := h.machine.Handle(context.Background(), "u1", Input{Kind: InputConfirm})
	if !errors.Is(err, ErrCalendarUnavailable) {
		t.Fatalf("expected calendar unavailable, got %v", err)
	}
	if reply.Step != StepSelectingSlot {
		t.Fatalf("expected selecting_slot, got %s", reply.Step)
	}
	if h.cal.Len() != 0 || h.locks.Held(testSlotID) {
		t.Fatal("no event and no lock expected after outage")
	}
}

func TestConfirm_DayFilledReturnsToDaySelection(t *testing.T) {
	h := newHarness(t)
	h.toConfirming(t, "u1", testDayKey, testSlotKey)

	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	for _, hour := range []int{10, 11, 12, 13, 14} {
		h.addEvent(t, day.Add(time.Duration(hour)*time.Hour))
	}
	if err := h.cache.Invalidate(context.Background(), day); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	reply, err := h.machine.Handle(context.Background(), "u1", Input{Kind: InputConfirm})
	if !errors.Is(err, ErrSlotNoLongerAvailable) {
		t.Fatalf("expected slot no longer available, got %v", err)
	}
	if reply.Step != StepSelectingDay || contains(reply.Options, testDayKey) {
		t.Fatalf("expected selecting_day without %s, got %s %v", testDayKey, reply.Step, reply.Options)
	}
	if h.cal.Len() != 5 {
		t.Fatalf("no booking must be written, got %d events", h.cal.Len())
	}
}

func TestConfirm_ExpiredHoldTakenByOther(t *testing.T) {
	h := newHarness(t)
	h.toConfirming(t, "u1", testDayKey, testSlotKey)
	h.clock.Advance(6 * time.Minute)
	if ok, _ := h.orch.locks.ReserveFor(context.Background(), testSlotID, "u2"); !ok {
		t.Fatal("expired hold must be takeable")
	}

	reply, err := h.machine.Handle(context.Background(), "u1", Input{Kind: InputConfirm})
	if !errors.Is(err, ErrSlotContention) {
		t.Fatalf("expected contention, got %v", err)
	}
	if reply.Step != StepSelectingSlot || contains(reply.Options, testSlotKey) {
		t.Fatalf("expected slot excluded in re-render, got %s %v", reply.Step, reply.Options)
	}
	if !h.locks.Held(testSlotID) {
		t.Fatal("the other owner's lock must not be released")
	}
}

func TestConfirm_NotificationFailureKeepsBooking(t *testing.T) {
	h := newHarness(t)
	h.notifier.fail = errors.New("smtp down")
	booking, err := h.orch.Confirm(context.Background(), h.draftFor(t, "u1"))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	h.orch.Wait()
	if booking.EventID == "" || h.cal.Len() != 1 {
		t.Fatalf("booking must stand, got %+v with %d events", booking, h.cal.Len())
	}
}

type brokenLocker struct {
	releases int
}

func (b *brokenLocker) ReserveFor(context.Context, string, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (b *brokenLocker) Release(context.Context, string) error {
	b.releases++
	return errors.New("redis: connection refused")
}

func TestConfirm_LockStoreFailure(t *testing.T) {
	h := newHarness(t)
	locker := &brokenLocker{}
	h.orch.locks = locker

	_, err := h.orch.Confirm(context.Background(), h.draftFor(t, "u1"))
	if !errors.Is(err, ErrCalendarWriteFailed) {
		t.Fatalf("expected calendar write failure, got %v", err)
	}
	if locker.releases != 1 {
		t.Fatalf("expected one release attempt, got %d", locker.releases)
	}
	if h.cal.Len() != 0 {
		t.Fatal("no event may be written without the lock")
	}
}

func TestConfirm_RequiresSlot(t *testing.T) {
	h := newHarness(t)
	if _, err := h.orch.Confirm(context.Background(), &Draft{UserID: "u1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
