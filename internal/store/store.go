// Package store persists the set of previously observed posting
// fingerprints so that change detection survives process restarts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Speed-Jobs/jobwatch/internal/posting"
)

// ErrNotFound is returned when no entry exists for a fingerprint.
var ErrNotFound = errors.New("seen entry not found")

// SeenEntry is one row of the snapshot store.
type SeenEntry struct {
	Fingerprint posting.Fingerprint `json:"fingerprint"`
	FirstSeenAt time.Time           `json:"first_seen_at"`
	LastSeenAt  time.Time           `json:"last_seen_at"`
}

// Store is the durable keyed set of observed fingerprints plus check
// metadata. Implementations assume a single logical writer (the watcher
// cycle); readers may observe slightly stale state.
//
// Loading missing or corrupt persisted state yields an empty store,
// never an error: the system degrades to re-seeding instead of
// crashing.
type Store interface {
	// Initialized reports whether the first-run seeding has completed.
	Initialized(ctx context.Context) (bool, error)

	// Initialize seeds the store with every given fingerprint at
	// firstSeen = lastSeen = at and marks initialization complete.
	Initialize(ctx context.Context, fps []posting.Fingerprint, at time.Time) error

	// Has reports whether the fingerprint has been observed before.
	Has(ctx context.Context, fp posting.Fingerprint) (bool, error)

	// RecordSeen inserts a new entry for fp (firstSeen = lastSeen = at)
	// or advances LastSeenAt of an existing one. Idempotent: recording
	// the same fingerprint and timestamp twice equals recording once.
	RecordSeen(ctx context.Context, fp posting.Fingerprint, at time.Time) error

	// Entry returns the entry for fp, or ErrNotFound.
	Entry(ctx context.Context, fp posting.Fingerprint) (*SeenEntry, error)

	// Entries returns all entries ordered by first observation.
	Entries(ctx context.Context) ([]SeenEntry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int64, error)

	// LastCheck returns the time of the last completed check cycle, or
	// the zero time when no cycle has completed.
	LastCheck(ctx context.Context) (time.Time, error)

	// SetLastCheck records the time of the last completed check cycle.
	SetLastCheck(ctx context.Context, at time.Time) error

	// Clear removes all entries and metadata.
	Clear(ctx context.Context) error
}

// advance merges an observation into an existing entry, keeping
// FirstSeenAt and never moving LastSeenAt backwards.
func advance(entry *SeenEntry, at time.Time) {
	if at.After(entry.LastSeenAt) {
		entry.LastSeenAt = at
	}
}
