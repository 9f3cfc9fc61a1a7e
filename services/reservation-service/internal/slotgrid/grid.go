package slotgrid

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DayLayout  = "2006-01-02"
	SlotLayout = "15:04"
)

var ErrInvalidGrid = errors.New("invalid slot grid")

// Grid is the fixed daily schedule: slots of Duration starting at StartHour,
// each ending no later than EndHour, in Location.
type Grid struct {
	StartHour int
	EndHour   int
	Duration  time.Duration
	Location  *time.Location
}

func (g Grid) Validate() error {
	switch {
	case g.StartHour < 0 || g.StartHour > 23:
		return fmt.Errorf("%w: start hour %d out of range", ErrInvalidGrid, g.StartHour)
	case g.EndHour < 1 || g.EndHour > 24:
		return fmt.Errorf("%w: end hour %d out of range", ErrInvalidGrid, g.EndHour)
	case g.EndHour <= g.StartHour:
		return fmt.Errorf("%w: end hour %d must be after start hour %d", ErrInvalidGrid, g.EndHour, g.StartHour)
	case g.Duration <= 0:
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidGrid)
	case g.Duration > time.Duration(g.EndHour-g.StartHour)*time.Hour:
		return fmt.Errorf("%w: slot duration %s exceeds operating hours", ErrInvalidGrid, g.Duration)
	}
	return nil
}

func (g Grid) loc() *time.Location {
	if g.Location == nil {
		return time.UTC
	}
	return g.Location
}

// Day truncates t to midnight in the grid's location.
func (g Grid) Day(t time.Time) time.Time {
	t = t.In(g.loc())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, g.loc())
}

func (g Grid) open(day time.Time) time.Time {
	d := g.Day(day)
	return time.Date(d.Year(), d.Month(), d.Day(), g.StartHour, 0, 0, 0, g.loc())
}

func (g Grid) close(day time.Time) time.Time {
	d := g.Day(day)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, g.loc()).Add(time.Duration(g.EndHour) * time.Hour)
}

// Slots returns every slot of the given day in start order.
func (g Grid) Slots(day time.Time) []Slot {
	var slots []Slot
	end := g.close(day)
	for t := g.open(day); !t.Add(g.Duration).After(end); t = t.Add(g.Duration) {
		slots = append(slots, Slot{Start: t, End: t.Add(g.Duration)})
	}
	return slots
}

// SlotFor returns the slot whose interval contains t. Events starting outside
// operating hours belong to no slot.
func (g Grid) SlotFor(t time.Time) (Slot, bool) {
	t = t.In(g.loc())
	open := g.open(t)
	if t.Before(open) {
		return Slot{}, false
	}
	idx := t.Sub(open) / g.Duration
	start := open.Add(idx * g.Duration)
	if start.Add(g.Duration).After(g.close(t)) {
		return Slot{}, false
	}
	return Slot{Start: start, End: start.Add(g.Duration)}, true
}

// Lookup resolves a day and "HH:MM" pair to a slot on the grid.
func (g Grid) Lookup(day time.Time, hhmm string) (Slot, bool) {
	for _, s := range g.Slots(day) {
		if s.Key() == strings.TrimSpace(hhmm) {
			return s, true
		}
	}
	return Slot{}, false
}

// ParseDay parses a "2006-01-02" day in the grid's location.
func (g Grid) ParseDay(raw string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, strings.TrimSpace(raw), g.loc())
}

// Slot is one grid interval [Start, End).
type Slot struct {
	Start time.Time
	End   time.Time
}

func (s Slot) DayKey() string { return s.Start.Format(DayLayout) }

func (s Slot) Key() string { return s.Start.Format(SlotLayout) }

// ID is the canonical lock key, e.g. "slot:2026:10:16:09:00".
func (s Slot) ID() string {
	return fmt.Sprintf("slot:%04d:%02d:%02d:%s", s.Start.Year(), int(s.Start.Month()), s.Start.Day(), s.Key())
}

func DayKey(t time.Time) string { return t.Format(DayLayout) }
