package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Speed-Jobs/jobwatch/internal/posting"
)

// MemoryStore is a volatile in-process store, used for one-shot runs
// and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	lastCheck   time.Time
	seen        map[posting.Fingerprint]SeenEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[posting.Fingerprint]SeenEntry)}
}

// Initialized reports whether first-run seeding has completed.
func (s *MemoryStore) Initialized(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized, nil
}

// Initialize seeds the store and marks it initialized.
func (s *MemoryStore) Initialize(ctx context.Context, fps []posting.Fingerprint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fp := range fps {
		if _, exists := s.seen[fp]; !exists {
			s.seen[fp] = SeenEntry{Fingerprint: fp, FirstSeenAt: at, LastSeenAt: at}
		}
	}
	s.initialized = true
	return nil
}

// Has reports whether the fingerprint has been observed.
func (s *MemoryStore) Has(ctx context.Context, fp posting.Fingerprint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[fp]
	return ok, nil
}

// RecordSeen inserts or advances the entry for fp.
func (s *MemoryStore) RecordSeen(ctx context.Context, fp posting.Fingerprint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.seen[fp]
	if !ok {
		s.seen[fp] = SeenEntry{Fingerprint: fp, FirstSeenAt: at, LastSeenAt: at}
		return nil
	}
	advance(&entry, at)
	s.seen[fp] = entry
	return nil
}

// Entry returns the entry for fp.
func (s *MemoryStore) Entry(ctx context.Context, fp posting.Fingerprint) (*SeenEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.seen[fp]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// Entries returns all entries ordered by first observation.
func (s *MemoryStore) Entries(ctx context.Context) ([]SeenEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEntries(s.seen), nil
}

// Count returns the number of stored entries.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.seen)), nil
}

// LastCheck returns the time of the last completed check cycle.
func (s *MemoryStore) LastCheck(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCheck, nil
}

// SetLastCheck records the time of the last completed check cycle.
func (s *MemoryStore) SetLastCheck(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCheck = at
	return nil
}

// Clear removes all entries and metadata.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[posting.Fingerprint]SeenEntry)
	s.initialized = false
	s.lastCheck = time.Time{}
	return nil
}

// sortedEntries orders entries by first observation, then fingerprint
// for a deterministic listing.
func sortedEntries(seen map[posting.Fingerprint]SeenEntry) []SeenEntry {
	entries := make([]SeenEntry, 0, len(seen))
	for _, entry := range seen {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].FirstSeenAt.Equal(entries[j].FirstSeenAt) {
			return entries[i].Fingerprint < entries[j].Fingerprint
		}
		return entries[i].FirstSeenAt.Before(entries[j].FirstSeenAt)
	})
	return entries
}
