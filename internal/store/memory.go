package store

import (
	"sync"
	"time"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// It starts in [PhaseLoading]. Subscribers receive updates via buffered
// channels (buffer size 100). Sends never block: when a subscriber's buffer
// is full its oldest pending snapshot is discarded, so the newest snapshot
// is always delivered.
type MemoryStore struct {
	mu          sync.RWMutex
	current     Snapshot
	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex
	now         func() time.Time
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		current:     Snapshot{Phase: PhaseLoading},
		subscribers: make(map[chan Snapshot]struct{}),
		now:         time.Now,
	}
}

// Set stores a copy of s as the current snapshot and notifies all subscribers.
func (m *MemoryStore) Set(s Snapshot) Snapshot {
	stored := s.clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	stored.Revision = m.current.Revision + 1
	stored.UpdatedAt = m.now()
	m.current = stored

	// notify under mu so subscribers see revisions in order
	m.notifySubscribers(stored)
	return stored.clone()
}

// Get returns a copy of the current snapshot.
func (m *MemoryStore) Get() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.clone()
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the snapshot to all active subscribers without blocking.
// Callers hold mu.
func (m *MemoryStore) notifySubscribers(s Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- s.clone():
			continue
		default:
		}
		// slow subscriber: make room by dropping the oldest snapshot.
		// Set holds mu, so no other sender can refill the slot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.clone():
		default:
		}
	}
}
