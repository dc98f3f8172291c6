package store

import (
	"errors"
	"sync"
	"time"

	"github.com/restexporter/restexporter/pkg/types"
)

// ErrStale is returned by Put for an update older than the stored one.
var ErrStale = errors.New("store: configuration is older than the stored one")

// Entry is the stored update together with the time it was received.
type Entry struct {
	Update    types.ConfigurationUpdate
	UpdatedAt time.Time
}

// Store is a thread-safe holder of the latest configuration update. Stored
// timestamps never decrease.
type Store struct {
	mu    sync.RWMutex
	entry *Entry
	now   func() time.Time // injectable for deterministic tests
}

// New returns an empty Store.
func New() *Store {
	return &Store{now: time.Now}
}

// Put stores u unless its timestamp is older than the stored one, in which
// case ErrStale is returned. An equal timestamp replaces the stored update.
func (s *Store) Put(u types.ConfigurationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != nil && u.Timestamp < s.entry.Update.Timestamp {
		return ErrStale
	}
	s.entry = &Entry{Update: u, UpdatedAt: s.now()}
	return nil
}

// Get returns the stored entry and whether there is one.
func (s *Store) Get() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entry == nil {
		return Entry{}, false
	}
	return *s.entry, true
}
