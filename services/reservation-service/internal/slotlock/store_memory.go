package slotlock

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	owner     string
	expiresAt time.Time
}

// MemoryStore serves a single process.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]entry
	now   func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{locks: map[string]entry{}, now: now}
}

func (s *MemoryStore) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	cur, ok := s.locks[key]
	if ok && now.Before(cur.expiresAt) && cur.owner != owner {
		return false, nil
	}
	s.locks[key] = entry{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

// Held reports whether key has an unexpired lock.
func (s *MemoryStore) Held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.locks[key]
	return ok && s.now().Before(cur.expiresAt)
}
