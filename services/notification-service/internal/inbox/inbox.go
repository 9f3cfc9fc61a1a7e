package inbox

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRetention = 7 * 24 * time.Hour

// Redis records processed event ids with SET NX so redeliveries are skipped.
type Redis struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

func NewRedis(rdb *redis.Client, prefix string, retention time.Duration) *Redis {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "inbox:"
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Redis{rdb: rdb, prefix: prefix, retention: retention}
}

func (r *Redis) key(eventID, eventType string) string {
	return r.prefix + eventType + ":" + eventID
}

// Record reports true the first time an event is seen.
func (r *Redis) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	return r.rdb.SetNX(ctx, r.key(eventID, eventType), time.Now().UTC().Format(time.RFC3339), r.retention).Result()
}

// Forget removes the record so a redelivery is processed again.
func (r *Redis) Forget(ctx context.Context, eventID, eventType string) error {
	return r.rdb.Del(ctx, r.key(eventID, eventType)).Err()
}

// Memory is a process-local inbox for runs without Redis.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: map[string]struct{}{}}
}

func (m *Memory) Record(_ context.Context, eventID, eventType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := eventType + ":" + eventID
	if _, ok := m.seen[k]; ok {
		return false, nil
	}
	m.seen[k] = struct{}{}
	return true, nil
}

func (m *Memory) Forget(_ context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, eventType+":"+eventID)
	return nil
}
