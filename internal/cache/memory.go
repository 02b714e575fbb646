package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Expired entries are swept on write once per
// cleanup interval.
type Memory struct {
	mu              sync.RWMutex
	entries         map[string]memoryEntry
	lastCleanup     time.Time
	cleanupInterval time.Duration
	now             func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries:         make(map[string]memoryEntry),
		cleanupInterval: 5 * time.Minute,
		now:             time.Now,
	}
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, ErrMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a copy of value under key for ttl.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	now := m.now()
	m.entries[key] = memoryEntry{value: stored, expiresAt: now.Add(ttl)}

	if now.Sub(m.lastCleanup) >= m.cleanupInterval {
		m.lastCleanup = now
		for k, e := range m.entries {
			if !now.Before(e.expiresAt) {
				delete(m.entries, k)
			}
		}
	}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
