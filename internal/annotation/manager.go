package annotation

import (
	"context"
	"sync"
)

type storeKey struct {
	userID     int64
	documentID int64
}

// storeEntry gates readers on load completion. ready is closed once Load
// finished; err holds the load result.
type storeEntry struct {
	store *Store
	ready chan struct{}
	err   error
}

// Manager hands out one Store per (user, document) pair, loading it on first
// use and keeping it open until the document is closed or deleted.
type Manager struct {
	mu     sync.Mutex
	stores map[storeKey]*storeEntry
	open   func(userID, documentID int64) *Store
}

// NewManager creates a Manager. open constructs an unloaded Store for a pair.
func NewManager(open func(userID, documentID int64) *Store) *Manager {
	return &Manager{
		stores: make(map[storeKey]*storeEntry),
		open:   open,
	}
}

// Get returns the store for the pair, creating and loading it on first use.
// Concurrent callers for the same pair block until that load finishes, so a
// second tab never observes an empty store mid-load.
func (m *Manager) Get(ctx context.Context, userID, documentID int64) (*Store, error) {
	key := storeKey{userID, documentID}

	m.mu.Lock()
	entry, ok := m.stores[key]
	if !ok {
		entry = &storeEntry{
			store: m.open(userID, documentID),
			ready: make(chan struct{}),
		}
		m.stores[key] = entry
	}
	m.mu.Unlock()

	if !ok {
		entry.err = entry.store.Load(ctx)
		if entry.err != nil {
			m.mu.Lock()
			delete(m.stores, key)
			m.mu.Unlock()
			entry.store.Close()
		}
		close(entry.ready)
	}

	select {
	case <-entry.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.store, nil
}

// Drop closes and forgets the pair's store, if open.
func (m *Manager) Drop(userID, documentID int64) {
	key := storeKey{userID, documentID}

	m.mu.Lock()
	entry, ok := m.stores[key]
	delete(m.stores, key)
	m.mu.Unlock()

	if ok {
		<-entry.ready
		if entry.err == nil {
			entry.store.Close()
		}
	}
}

// CloseAll shuts down every open store. Called on server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	entries := make([]*storeEntry, 0, len(m.stores))
	for _, e := range m.stores {
		entries = append(entries, e)
	}
	m.stores = make(map[storeKey]*storeEntry)
	m.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		if e.err == nil {
			e.store.Close()
		}
	}
}
