package slotlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
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

const slotID = "slot:2026:10:16:09:00"

func TestReserve_ExactlyOneWinner(t *testing.T) {
	m := NewManager(NewMemoryStore(nil), time.Minute)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.Reserve(context.Background(), slotID)
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestReserve_AfterRelease(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(nil), time.Minute)
	if ok, _ := m.Reserve(ctx, slotID); !ok {
		t.Fatal("expected first reserve to win")
	}
	if err := m.Release(ctx, slotID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := m.Release(ctx, slotID); err != nil {
		t.Fatalf("second release must be a no-op: %v", err)
	}
	if ok, _ := m.Reserve(ctx, slotID); !ok {
		t.Fatal("expected reserve after release to win")
	}
}

func TestReserve_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	m := NewManager(NewMemoryStore(clock.Now), 5*time.Minute)

	if ok, _ := m.Reserve(ctx, slotID); !ok {
		t.Fatal("expected first reserve to win")
	}
	clock.Advance(5*time.Minute - time.Second)
	if ok, _ := m.Reserve(ctx, slotID); ok {
		t.Fatal("slot must stay held before TTL")
	}
	clock.Advance(2 * time.Second)
	if ok, _ := m.Reserve(ctx, slotID); !ok {
		t.Fatal("slot must be reservable after TTL")
	}
}

func TestReserveFor_ReentrantForSameOwner(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	m := NewManager(store, 5*time.Minute)

	if ok, _ := m.ReserveFor(ctx, slotID, "user-1"); !ok {
		t.Fatal("expected hold")
	}
	clock.Advance(4 * time.Minute)
	if ok, _ := m.ReserveFor(ctx, slotID, "user-1"); !ok {
		t.Fatal("same owner must refresh")
	}
	if ok, _ := m.ReserveFor(ctx, slotID, "user-2"); ok {
		t.Fatal("other owner must not take a held slot")
	}
	clock.Advance(4 * time.Minute)
	if !store.Held(slotID) {
		t.Fatal("refresh must extend the expiry")
	}
	if _, err := m.ReserveFor(ctx, "", "user-1"); err == nil {
		t.Fatal("expected error for empty slot id")
	}
}
