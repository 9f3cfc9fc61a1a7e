package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process calendar for local runs and tests.
type Memory struct {
	mu     sync.Mutex
	events map[string]Event
	// failList and failCreate make calls fail until cleared.
	failList   error
	failCreate error
	lists      int
}

func NewMemory() *Memory {
	return &Memory{events: map[string]Event{}}
}

func (m *Memory) ListEvents(_ context.Context, w Window) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.failList != nil {
		return nil, m.failList
	}
	var out []Event
	for _, e := range m.events {
		if e.Start.Before(w.End) && e.End.After(w.Start) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *Memory) CreateEvent(_ context.Context, summary string, start, end time.Time, attendee Attendee) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return "", m.failCreate
	}
	id := uuid.NewString()
	m.events[id] = Event{
		ID:          id,
		Summary:     summary,
		Description: Description(attendee),
		Start:       start,
		End:         end,
	}
	return id, nil
}

func (m *Memory) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}

// ListCalls is the number of ListEvents calls served so far.
func (m *Memory) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

func (m *Memory) SetFailList(err error) {
	m.mu.Lock()
	m.failList = err
	m.mu.Unlock()
}

func (m *Memory) SetFailCreate(err error) {
	m.mu.Lock()
	m.failCreate = err
	m.mu.Unlock()
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
