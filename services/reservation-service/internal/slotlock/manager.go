package slotlock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultTTL = 5 * time.Minute

// Store is the shared lock medium: an atomic acquire-with-expiry and an
// unconditional delete.
type Store interface {
	// Acquire creates key with owner and ttl when absent, or refreshes ttl when
	// key is already held by owner. It reports whether owner now holds key.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

type Manager struct {
	store Store
	ttl   time.Duration
}

func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Reserve takes the slot with a fresh marker; true only if this call created it.
func (m *Manager) Reserve(ctx context.Context, slotID string) (bool, error) {
	return m.ReserveFor(ctx, slotID, uuid.NewString())
}

// ReserveFor takes or refreshes the slot on behalf of owner. A slot held by a
// different owner is not taken.
func (m *Manager) ReserveFor(ctx context.Context, slotID, owner string) (bool, error) {
	if strings.TrimSpace(slotID) == "" || strings.TrimSpace(owner) == "" {
		return false, errors.New("slot id and owner are required")
	}
	return m.store.Acquire(ctx, slotID, owner, m.ttl)
}

// Release drops the slot whoever holds it. Releasing a free slot is a no-op.
func (m *Manager) Release(ctx context.Context, slotID string) error {
	return m.store.Delete(ctx, slotID)
}
