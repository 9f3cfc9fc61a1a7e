package booking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMachine_InvalidPhoneDoesNotAdvance(t *testing.T) {
	h := newHarness(t)
	h.handle(t, "u1", InputStart, "")
	h.handle(t, "u1", InputText, "Ana")

	reply, err := h.machine.Handle(context.Background(), "u1", Input{Kind: InputText, Text: "abc"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if reply.Step != StepCollectingPhone {
		t.Fatalf("expected to stay at collecting_phone, got %s", reply.Step)
	}
	d, ok := h.machine.Sessions().Draft("u1")
	if !ok || d.Phone != "" || d.Name != "Ana" || d.Step != StepCollectingPhone {
		t.Fatalf("draft must be unchanged, got %+v", d)
	}
}

func TestMachine_WrongInputKindDoesNotAdvance(t *testing.T) {
	h := newHarness(t)
	h.handle(t, "u1", InputStart, "")
	h.handle(t, "u1", InputText, "Ana")
	h.handle(t, "u1", InputText, "(11)91234-5678")

	reply := h.handle(t, "u1", InputText, testDayKey)
	if reply.Step != StepSelectingDay || KindOf(reply.Err) != KindValidation {
		t.Fatalf("expected validation at selecting_day, got %s %v", reply.Step, reply.Err)
	}
	reply = h.handle(t, "u1", InputDay, "2026-10-14")
	if reply.Step != StepSelectingDay || reply.Err == nil {
		t.Fatalf("past day must be rejected, got %s %v", reply.Step, reply.Err)
	}
	reply = h.handle(t, "u1", InputDay, "2026-10-22")
	if reply.Step != StepSelectingDay || reply.Err == nil {
		t.Fatalf("day beyond look-ahead must be rejected, got %s %v", reply.Step, reply.Err)
	}
}

func TestMachine_EndToEndBookingIncrementsOccupancy(t *testing.T) {
	h := newHarness(t)
	if got := h.occupancy(t, testDayKey, testSlotKey); got != 0 {
		t.Fatalf("expected empty slot, got %d", got)
	}

	h.handle(t, "u1", InputStart, "")
	h.handle(t, "u1", InputText, "Ana")
	reply := h.handle(t, "u1", InputText, "(11)91234-5678")
	if reply.Step != StepSelectingDay || !contains(reply.Options, testDayKey) {
		t.Fatalf("expected %s among day options, got %s %v", testDayKey, reply.Step, reply.Options)
	}
	reply = h.handle(t, "u1", InputDay, testDayKey)
	if reply.Step != StepSelectingSlot || !contains(reply.Options, testSlotKey) {
		t.Fatalf("expected %s among slot options, got %s %v", testSlotKey, reply.Step, reply.Options)
	}
	h.handle(t, "u1", InputSlot, testSlotKey)
	h.handle(t, "u1", InputText, "Ana@Example.com")

	reply, err := h.machine.Handle(context.Background(), "u1", Input{Kind: InputConfirm})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if reply.Step != StepTerminal || reply.Booking == nil {
		t.Fatalf("expected terminal with booking, got %+v", reply)
	}
	if reply.Booking.Email != "ana@example.com" || reply.Booking.Slot.ID() != testSlotID {
		t.Fatalf("unexpected booking %+v", reply.Booking)
	}

	if got := h.occupancy(t, testDayKey, testSlotKey); got != 1 {
		t.Fatalf("expected occupancy 1 after booking, got %d", got)
	}
	if h.cal.Len() != 1 {
		t.Fatalf("expected one calendar event, got %d", h.cal.Len())
	}
	if h.locks.Held(testSlotID) {
		t.Fatal("lock must be released after confirm")
	}
	if _, ok := h.machine.Sessions().Draft("u1"); ok {
		t.Fatal("draft must be discarded on success")
	}
	h.orch.Wait()
	if h.notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", h.notifier.count())
	}
}

func TestMachine_AbortReleasesProvisionalHold(t *testing.T) {
	h := newHarness(t)
	h.toEmail(t, "u1", testDayKey, testSlotKey)
	if !h.locks.Held(testSlotID) {
		t.Fatal("slot selection must hold the slot")
	}

	reply := h.handle(t, "u1", InputAbort, "")
	if reply.Step != StepNone || reply.Err != nil {
		t.Fatalf("unexpected abort reply %+v", reply)
	}
	if h.locks.Held(testSlotID) {
		t.Fatal("abort must release the hold before its TTL")
	}
	if h.machine.Sessions().Len() != 0 {
		t.Fatalf("expected no sessions left, got %d", h.machine.Sessions().Len())
	}
	if h.cal.Len() != 0 {
		t.Fatal("abort must not write to the calendar")
	}
}

func TestMachine_SlotContentionAtSelection(t *testing.T) {
	h := newHarness(t)
	h.toEmail(t, "u1", testDayKey, testSlotKey)

	h.handle(t, "u2", InputStart, "")
	h.handle(t, "u2", InputText, "Bia")
	h.handle(t, "u2", InputText, "11 91234-0000")
	h.handle(t, "u2", InputDay, testDayKey)
	reply, err := h.machine.Handle(context.Background(), "u2", Input{Kind: InputSlot, Text: testSlotKey})
	if !errors.Is(err, ErrSlotContention) {
		t.Fatalf("expected slot contention, got %v", err)
	}
	if reply.Step != StepSelectingSlot || contains(reply.Options, testSlotKey) || !contains(reply.Options, "10:00") {
		t.Fatalf("expected re-render without %s, got %s %v", testSlotKey, reply.Step, reply.Options)
	}
}

func TestMachine_ChangingSlotReleasesPreviousHold(t *testing.T) {
	h := newHarness(t)
	h.toEmail(t, "u1", testDayKey, testSlotKey)

	if reply := h.handle(t, "u1", InputBack, ""); reply.Step != StepSelectingSlot {
		t.Fatalf("expected selecting_slot, got %s", reply.Step)
	}
	if h.locks.Held(testSlotID) {
		t.Fatal("going back to slot selection must release the hold")
	}
	if reply := h.handle(t, "u1", InputSlot, "10:00"); reply.Step != StepCollectingEmail {
		t.Fatalf("expected collecting_email, got %s %v", reply.Step, reply.Err)
	}
	if !h.locks.Held("slot:2026:10:16:10:00") {
		t.Fatal("new slot must be held")
	}
}

func TestMachine_SkipsPastSlotsToday(t *testing.T) {
	h := newHarness(t)
	h.handle(t, "u1", InputStart, "")
	h.handle(t, "u1", InputText, "Ana")
	h.handle(t, "u1", InputText, "(11)91234-5678")
	reply := h.handle(t, "u1", InputDay, "2026-10-15")
	if reply.Step != StepSelectingSlot {
		t.Fatalf("expected selecting_slot, got %s %v", reply.Step, reply.Err)
	}
	if len(reply.Options) == 0 || reply.Options[0] != "11:00" {
		t.Fatalf("expected first open slot 11:00, got %v", reply.Options)
	}
	reply = h.handle(t, "u1", InputSlot, "10:00")
	if reply.Step != StepSelectingSlot || KindOf(reply.Err) != KindValidation {
		t.Fatalf("started slot must be rejected, got %s %v", reply.Step, reply.Err)
	}
	reply = h.handle(t, "u1", InputSlot, "18:00")
	if reply.Step != StepSelectingSlot || KindOf(reply.Err) != KindValidation {
		t.Fatalf("slot outside hours must be rejected, got %s %v", reply.Step, reply.Err)
	}
}

func TestMachine_FullDayIsNotOffered(t *testing.T) {
	h := newHarness(t)
	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	for _, hour := range []int{8, 10, 11, 12, 13} {
		h.addEvent(t, day.Add(time.Duration(hour)*time.Hour))
	}

	h.handle(t, "u1", InputStart, "")
	h.handle(t, "u1", InputText, "Ana")
	reply := h.handle(t, "u1", InputText, "(11)91234-5678")
	if contains(reply.Options, testDayKey) {
		t.Fatalf("full day must not be offered, got %v", reply.Options)
	}
	reply = h.handle(t, "u1", InputDay, testDayKey)
	if reply.Step != StepSelectingDay || KindOf(reply.Err) != KindValidation {
		t.Fatalf("full day must be rejected, got %s %v", reply.Step, reply.Err)
	}
}

func TestMachine_InputWithoutDraft(t *testing.T) {
	h := newHarness(t)
	reply, err := h.machine.Handle(context.Background(), "u1", Input{Kind: InputText, Text: "hello"})
	if !errors.Is(err, ErrValidation) || reply.Step != StepNone {
		t.Fatalf("expected validation with no draft, got %s %v", reply.Step, err)
	}
	if _, err := h.machine.Handle(context.Background(), " ", Input{Kind: InputStart}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestMachine_CalendarOutageKeepsDraft(t *testing.T) {
	h := newHarness(t)
	h.cal.SetFailList(errors.New("503"))
	h.handle(t, "u1", InputStart, "")
	h.handle(t, "u1", InputText, "Ana")
	reply := h.handle(t, "u1", InputText, "(11)91234-5678")
	if reply.Step != StepSelectingDay || KindOf(reply.Err) != KindCalendarUnavailable || len(reply.Options) != 0 {
		t.Fatalf("expected calendar unavailable at selecting_day, got %s %v %v", reply.Step, reply.Err, reply.Options)
	}

	h.cal.SetFailList(nil)
	reply = h.handle(t, "u1", InputDay, testDayKey)
	if reply.Step != StepSelectingSlot {
		t.Fatalf("expected recovery once calendar is back, got %s %v", reply.Step, reply.Err)
	}
}
