package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/calendar"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/slotgrid"
)

var (
	ErrCalendarUnavailable = errors.New("calendar unavailable")
	ErrStore               = errors.New("availability store failure")
)

const DefaultTTL = 2 * time.Minute

type Config struct {
	Grid  slotgrid.Grid
	TTL   time.Duration
	Now   func() time.Time
	Store SnapshotStore
}

// Cache shares BusyInfo snapshots across users. A snapshot is served while
// younger than the TTL and recomputed from the calendar otherwise; two
// concurrent misses may both recompute.
type Cache struct {
	mu       sync.Mutex
	store    SnapshotStore
	calendar calendar.Client
	grid     slotgrid.Grid
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger

	// gen counts invalidations; a recompute that started before one is not stored.
	gen uint64
}

func NewCache(client calendar.Client, logger *slog.Logger, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	return &Cache{
		store:    cfg.Store,
		calendar: client,
		grid:     cfg.Grid,
		ttl:      cfg.TTL,
		now:      cfg.Now,
		logger:   logger,
	}
}

func (c *Cache) Get(ctx context.Context, w calendar.Window) (*BusyInfo, error) {
	key := w.Key()

	c.mu.Lock()
	snap, ok, err := c.store.Load(ctx, key)
	gen := c.gen
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", ErrStore, key, err)
	}
	if ok && c.now().Sub(snap.ComputedAt) < c.ttl {
		return snap, nil
	}

	events, err := c.calendar.ListEvents(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCalendarUnavailable, err)
	}
	info := Compute(c.grid, w, events, c.now())

	c.mu.Lock()
	stale := c.gen != gen
	if !stale {
		err = c.store.Save(ctx, key, info, c.ttl)
	}
	c.mu.Unlock()
	if stale {
		c.logger.Debug("availability recompute raced an invalidation; not stored", "window", key)
		return info, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: save %s: %w", ErrStore, key, err)
	}
	c.logger.Debug("availability recomputed", "window", key, "events", len(events))
	return info, nil
}

// Invalidate drops every cached window that contains day, so the next Get
// recomputes it.
func (c *Cache) Invalidate(ctx context.Context, day time.Time) error {
	dayKey := slotgrid.DayKey(c.grid.Day(day))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("%w: keys: %w", ErrStore, err)
	}
	for _, key := range keys {
		if !windowKeyContains(key, dayKey) {
			continue
		}
		if err := c.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("%w: delete %s: %w", ErrStore, key, err)
		}
	}
	return nil
}

// windowKeyContains compares "start/end" day keys lexically; the layout sorts
// chronologically.
func windowKeyContains(windowKey, dayKey string) bool {
	start, end, ok := strings.Cut(windowKey, "/")
	if !ok {
		return false
	}
	return dayKey >= start && dayKey < end
}
