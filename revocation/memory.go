package revocation

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Memory is an in-process Cache with a fixed entry capacity. Entries expire
// after the configured TTL; beyond capacity the oldest insertion is evicted
// first. All operations are internally synchronized.
type Memory struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = oldest insertion
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// NewMemory builds a Memory cache. Zero capacity or TTL fall back to the
// package defaults; a nil clock falls back to time.Now.
func NewMemory(capacity int, ttl time.Duration, now func() time.Time) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Add marks token as revoked until the TTL elapses.
func (m *Memory) Add(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.expireLocked(now)

	if elem, ok := m.entries[token]; ok {
		elem.Value.(*memoryEntry).expiresAt = now.Add(m.ttl)
		m.order.MoveToBack(elem)
		return nil
	}

	for len(m.entries) >= m.capacity {
		m.evictOldestLocked()
	}

	m.entries[token] = m.order.PushBack(&memoryEntry{
		token:     token,
		expiresAt: now.Add(m.ttl),
	})
	return nil
}

// Contains reports whether token is revoked and not yet expired.
func (m *Memory) Contains(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked(m.now())
	_, ok := m.entries[token]
	return ok, nil
}

// Len reports the current entry count after shedding expired entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked(m.now())
	return len(m.entries)
}

func (m *Memory) expireLocked(now time.Time) {
	for {
		front := m.order.Front()
		if front == nil {
			return
		}
		entry := front.Value.(*memoryEntry)
		if entry.expiresAt.After(now) {
			return
		}
		m.order.Remove(front)
		delete(m.entries, entry.token)
	}
}

func (m *Memory) evictOldestLocked() {
	front := m.order.Front()
	if front == nil {
		return
	}
	entry := front.Value.(*memoryEntry)
	m.order.Remove(front)
	delete(m.entries, entry.token)
}
