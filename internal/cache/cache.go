// Package cache keeps successful upstream fetches of today's events so page
// loads do not hit the events source every time.
package cache

import (
	"context"
	"sync"
	"time"

	"eventstoday/internal/model"
)

// Store holds today's events keyed by venue-local date.
type Store interface {
	Get(ctx context.Context, key string) ([]model.Event, bool, error)
	Set(ctx context.Context, key string, events []model.Event, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key returns the cache key for the given venue-local day.
func Key(day time.Time) string {
	return "events:today:" + day.Format("2006-01-02")
}

type memoryEntry struct {
	events    []model.Event
	expiresAt time.Time
}

// Memory is an in-process Store guarded by an RWMutex.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]model.Event, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, still := m.entries[key]; still && !m.now().Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.events, true, nil
}

func (m *Memory) Set(_ context.Context, key string, events []model.Event, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Old days are never read again.
	for k, e := range m.entries {
		if !m.now().Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}

	m.entries[key] = memoryEntry{
		events:    events,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
