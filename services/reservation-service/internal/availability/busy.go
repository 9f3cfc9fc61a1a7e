package availability

import (
	"time"

	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/calendar"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/slotgrid"
)

// BusyInfo is an immutable occupancy snapshot of a window. Days are keyed
// "2006-01-02" and slots "15:04".
type BusyInfo struct {
	Window        calendar.Window           `json:"window"`
	SlotOccupancy map[string]map[string]int `json:"slot_occupancy"`
	DayTotal      map[string]int            `json:"day_total"`
	ComputedAt    time.Time                 `json:"computed_at"`
}

func (b *BusyInfo) Occupancy(day, slot string) int {
	if b == nil {
		return 0
	}
	return b.SlotOccupancy[day][slot]
}

func (b *BusyInfo) Total(day string) int {
	if b == nil {
		return 0
	}
	return b.DayTotal[day]
}

// Compute buckets every event that starts inside the window into its day
// total and, when it starts within operating hours, into the grid slot that
// contains its start.
func Compute(grid slotgrid.Grid, w calendar.Window, events []calendar.Event, now time.Time) *BusyInfo {
	info := &BusyInfo{
		Window:        w,
		SlotOccupancy: map[string]map[string]int{},
		DayTotal:      map[string]int{},
		ComputedAt:    now,
	}
	for _, e := range events {
		if !w.Contains(e.Start) {
			continue
		}
		day := slotgrid.DayKey(grid.Day(e.Start))
		info.DayTotal[day]++
		slot, ok := grid.SlotFor(e.Start)
		if !ok {
			continue
		}
		if info.SlotOccupancy[day] == nil {
			info.SlotOccupancy[day] = map[string]int{}
		}
		info.SlotOccupancy[day][slot.Key()]++
	}
	return info
}

// NewWindow covers days whole days starting at the day of from.
func NewWindow(grid slotgrid.Grid, from time.Time, days int) calendar.Window {
	if days <= 0 {
		days = 1
	}
	start := grid.Day(from)
	return calendar.Window{Start: start, End: start.AddDate(0, 0, days)}
}
