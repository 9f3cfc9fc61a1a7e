package availability

import (
	"context"
	"sync"
	"time"
)

// SnapshotStore is the storage medium behind the Cache.
type SnapshotStore interface {
	Load(ctx context.Context, key string) (*BusyInfo, bool, error)
	Save(ctx context.Context, key string, info *BusyInfo, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*BusyInfo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]*BusyInfo{}}
}

func (s *MemoryStore) Load(_ context.Context, key string) (*BusyInfo, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.items[key]
	return info, ok, nil
}

// Save replaces the entry and prunes snapshots that were already older than
// ttl when info was computed.
func (s *MemoryStore) Save(_ context.Context, key string, info *BusyInfo, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.items {
		if info.ComputedAt.Sub(v.ComputedAt) >= ttl {
			delete(s.items, k)
		}
	}
	s.items[key] = info
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemoryStore) Keys(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys, nil
}
