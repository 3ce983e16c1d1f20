// Package keylock serializes mutations per string key.
//
// The engine uses one lock per user identity so that MFA transitions,
// recovery-code consumption, and password changes for the same user never
// interleave, while operations on different users proceed concurrently.
// Token validation does not take these locks; it only needs consistent reads.
package keylock

import "sync"

// Mutex is a set of named mutexes. The zero value is not usable; call New.
type Mutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty keyed mutex set.
func New() *Mutex {
	return &Mutex{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, creating it on first use.
func (m *Mutex) Lock(key string) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. Entries with no waiters are removed so
// the set stays proportional to in-flight operations, not total users.
func (m *Mutex) Unlock(key string) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
	}
	m.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}
