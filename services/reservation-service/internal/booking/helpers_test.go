package booking

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/availability"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/calendar"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/notify"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/slotgrid"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/slotlock"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Details
	fail error
}

func (n *recordingNotifier) Send(_ context.Context, _ string, d notify.Details) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, d)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type harness struct {
	grid     slotgrid.Grid
	clock    *testClock
	cal      *calendar.Memory
	locks    *slotlock.MemoryStore
	cache    *availability.Cache
	notifier *recordingNotifier
	orch     *Orchestrator
	machine  *Machine
}

const (
	testDayKey  = "2026-10-16"
	testSlotKey = "09:00"
	testSlotID  = "slot:2026:10:16:09:00"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newHarness wires the engine on in-memory collaborators with the clock at
// 2026-10-15 10:30 UTC.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		grid:     slotgrid.Grid{StartHour: 8, EndHour: 17, Duration: time.Hour, Location: time.UTC},
		clock:    &testClock{now: time.Date(2026, 10, 15, 10, 30, 0, 0, time.UTC)},
		cal:      calendar.NewMemory(),
		notifier: &recordingNotifier{},
	}
	h.locks = slotlock.NewMemoryStore(h.clock.Now)
	h.cache = availability.NewCache(h.cal, testLogger, availability.Config{
		Grid: h.grid,
		TTL:  2 * time.Minute,
		Now:  h.clock.Now,
	})
	h.orch = NewOrchestrator(h.cache, slotlock.NewManager(h.locks, 5*time.Minute), h.cal, h.notifier, testLogger, Config{
		Grid:   h.grid,
		Limits: Limits{PerSlot: 1, PerDay: 5, LookaheadDays: 7},
		Now:    h.clock.Now,
	})
	h.machine = NewMachine(h.orch, nil, testLogger)
	return h
}

func (h *harness) handle(t *testing.T, user string, kind InputKind, text string) Reply {
	t.Helper()
	reply, _ := h.machine.Handle(context.Background(), user, Input{Kind: kind, Text: text})
	return reply
}

// toEmail drives a user up to the email step holding day/slot.
func (h *harness) toEmail(t *testing.T, user, day, slot string) Reply {
	t.Helper()
	steps := []Input{
		{Kind: InputStart},
		{Kind: InputText, Text: "Ana"},
		{Kind: InputText, Text: "(11)91234-5678"},
		{Kind: InputDay, Text: day},
		{Kind: InputSlot, Text: slot},
	}
	var reply Reply
	for _, in := range steps {
		var err error
		reply, err = h.machine.Handle(context.Background(), user, in)
		if err != nil {
			t.Fatalf("input %+v: %v", in, err)
		}
	}
	if reply.Step != StepCollectingEmail {
		t.Fatalf("expected collecting_email, got %s", reply.Step)
	}
	return reply
}

func (h *harness) toConfirming(t *testing.T, user, day, slot string) {
	t.Helper()
	h.toEmail(t, user, day, slot)
	if reply := h.handle(t, user, InputText, user+"@example.com"); reply.Step != StepConfirming {
		t.Fatalf("expected confirming, got %s (%v)", reply.Step, reply.Err)
	}
}

func (h *harness) addEvent(t *testing.T, start time.Time) {
	t.Helper()
	if _, err := h.cal.CreateEvent(context.Background(), "busy", start, start.Add(time.Hour), calendar.Attendee{Name: "x", Email: "x@example.com"}); err != nil {
		t.Fatalf("create event: %v", err)
	}
}

func (h *harness) occupancy(t *testing.T, day, slot string) int {
	t.Helper()
	info, err := h.cache.Get(context.Background(), availability.NewWindow(h.grid, h.clock.Now(), 7))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	return info.Occupancy(day, slot)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
