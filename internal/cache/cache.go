// Package cache holds availability-snapshot caches. A snapshot fetched once
// for an item/warehouse pair is reused for the rest of the cart session;
// nothing here expires entries on its own, refresh is always explicit.
package cache

import (
	"context"
	"sync"

	"scanline/backend/internal/domain"
)

// AvailabilityCache stores stock snapshots keyed by item and warehouse.
type AvailabilityCache interface {
	// Get returns the cached snapshot and whether one was present.
	Get(ctx context.Context, itemCode, warehouse string) (*domain.AvailabilitySnapshot, bool, error)
	Set(ctx context.Context, itemCode, warehouse string, snap *domain.AvailabilitySnapshot) error
	Delete(ctx context.Context, itemCode, warehouse string) error
}

// SessionAvailabilityCache is a mutex-guarded map cache scoped to one cart
// session. It never evicts; entries only leave through Delete.
type SessionAvailabilityCache struct {
	mu    sync.RWMutex
	snaps map[string]domain.AvailabilitySnapshot
}

func NewSessionAvailabilityCache() *SessionAvailabilityCache {
	return &SessionAvailabilityCache{snaps: make(map[string]domain.AvailabilitySnapshot)}
}

func snapshotKey(itemCode, warehouse string) string {
	return itemCode + "@" + warehouse
}

func (c *SessionAvailabilityCache) Get(_ context.Context, itemCode, warehouse string) (*domain.AvailabilitySnapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.snaps[snapshotKey(itemCode, warehouse)]
	if !ok {
		return nil, false, nil
	}
	out := snap
	return &out, true, nil
}

func (c *SessionAvailabilityCache) Set(_ context.Context, itemCode, warehouse string, snap *domain.AvailabilitySnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[snapshotKey(itemCode, warehouse)] = *snap
	return nil
}

func (c *SessionAvailabilityCache) Delete(_ context.Context, itemCode, warehouse string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snaps, snapshotKey(itemCode, warehouse))
	return nil
}

// NoopAvailabilityCache disables caching; every availability check hits the
// store.
type NoopAvailabilityCache struct{}

func (NoopAvailabilityCache) Get(context.Context, string, string) (*domain.AvailabilitySnapshot, bool, error) {
	return nil, false, nil
}

func (NoopAvailabilityCache) Set(context.Context, string, string, *domain.AvailabilitySnapshot) error {
	return nil
}

func (NoopAvailabilityCache) Delete(context.Context, string, string) error {
	return nil
}
