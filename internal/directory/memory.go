// ABOUTME: In-memory directory store with optional TTL and LRU size bound
// ABOUTME: The default (no bound, no TTL) matches append-only process-lifetime mapping

package directory

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// memoryEntry stores the thread handle plus bookkeeping for bounds.
type memoryEntry struct {
	threadID string
	storedAt time.Time
	element  *list.Element
}

// MemoryStore keeps the user-to-thread mapping in process memory. With zero
// maxEntries and zero ttl it grows by one entry per distinct user for the
// lifetime of the process. A non-zero maxEntries evicts the least recently
// used entry at capacity; a non-zero ttl lets entries lapse so a quiet user's
// next message starts a fresh thread.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*memoryEntry
	order      *list.List // user IDs, least recently used at the front
	maxEntries int
	ttl        time.Duration

	now func() time.Time
}

// NewMemoryStore creates a memory store. maxEntries and ttl of zero disable
// the respective bound.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the stored thread for a user, or "" if absent or expired.
func (m *MemoryStore) Get(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[userID]
	if !ok {
		return "", nil
	}
	if m.expired(entry) {
		m.removeLocked(userID, entry)
		return "", nil
	}
	m.order.MoveToBack(entry.element)
	return entry.threadID, nil
}

// Put stores the thread for a user, evicting the oldest entry at capacity.
func (m *MemoryStore) Put(_ context.Context, userID, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[userID]; ok {
		entry.threadID = threadID
		entry.storedAt = m.now()
		m.order.MoveToBack(entry.element)
		return nil
	}

	if m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictOldestLocked()
	}

	elem := m.order.PushBack(userID)
	m.entries[userID] = &memoryEntry{
		threadID: threadID,
		storedAt: m.now(),
		element:  elem,
	}
	return nil
}

// Len returns the number of live entries, dropping any that have expired.
func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, entry := range m.entries {
		if m.expired(entry) {
			m.removeLocked(userID, entry)
		}
	}
	return len(m.entries), nil
}

// expired reports whether the entry has outlived the TTL. Must be called with mu held.
func (m *MemoryStore) expired(entry *memoryEntry) bool {
	return m.ttl > 0 && m.now().Sub(entry.storedAt) >= m.ttl
}

// evictOldestLocked removes the least recently used entry. Must be called with mu held.
func (m *MemoryStore) evictOldestLocked() {
	front := m.order.Front()
	if front == nil {
		return
	}
	userID, _ := front.Value.(string)
	if entry, ok := m.entries[userID]; ok {
		m.removeLocked(userID, entry)
	}
}

// removeLocked deletes an entry. Must be called with mu held.
func (m *MemoryStore) removeLocked(userID string, entry *memoryEntry) {
	m.order.Remove(entry.element)
	delete(m.entries, userID)
}
