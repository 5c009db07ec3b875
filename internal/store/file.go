package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Speed-Jobs/jobwatch/internal/logger"
	"github.com/Speed-Jobs/jobwatch/internal/posting"
)

const snapshotFileMode = 0o600

// snapshot is the on-disk layout of the file store.
type snapshot struct {
	Initialized bool                              `json:"initialized"`
	LastCheck   time.Time                         `json:"last_check"`
	Seen        map[posting.Fingerprint]SeenEntry `json:"seen"`
}

// FileStore persists the snapshot as a single JSON file, rewritten
// atomically (temp file + rename) on every mutation. Suited to
// single-host deployments without Redis.
type FileStore struct {
	*MemoryStore
	path   string
	logger logger.Interface
}

// NewFileStore opens the store at path, loading any existing snapshot.
// A missing or corrupt snapshot yields an empty store.
func NewFileStore(path string, log logger.Interface) (*FileStore, error) {
	if log == nil {
		log = logger.NewNoOp()
	}

	s := &FileStore{
		MemoryStore: NewMemoryStore(),
		path:        path,
		logger:      log.WithComponent("file_store"),
	}
	s.load()
	return s, nil
}

// load reads the snapshot from disk into memory. Read failures are
// logged and leave the store empty.
func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		s.logger.Warn("Failed to read snapshot, starting empty",
			"path", s.path, "error", err)
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("Snapshot is corrupt, starting empty",
			"path", s.path, "error", err)
		return
	}

	s.MemoryStore.initialized = snap.Initialized
	s.MemoryStore.lastCheck = snap.LastCheck
	if snap.Seen != nil {
		s.MemoryStore.seen = snap.Seen
	}
}

// persist writes the current state to disk atomically.
func (s *FileStore) persist() error {
	s.MemoryStore.mu.RLock()
	snap := snapshot{
		Initialized: s.MemoryStore.initialized,
		LastCheck:   s.MemoryStore.lastCheck,
		Seen:        s.MemoryStore.seen,
	}
	data, err := json.Marshal(snap)
	s.MemoryStore.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, snapshotFileMode); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Initialize seeds the store, marks it initialized, and persists.
func (s *FileStore) Initialize(ctx context.Context, fps []posting.Fingerprint, at time.Time) error {
	if err := s.MemoryStore.Initialize(ctx, fps, at); err != nil {
		return err
	}
	return s.persist()
}

// RecordSeen inserts or advances the entry for fp and persists.
func (s *FileStore) RecordSeen(ctx context.Context, fp posting.Fingerprint, at time.Time) error {
	if err := s.MemoryStore.RecordSeen(ctx, fp, at); err != nil {
		return err
	}
	return s.persist()
}

// SetLastCheck records the last check time and persists.
func (s *FileStore) SetLastCheck(ctx context.Context, at time.Time) error {
	if err := s.MemoryStore.SetLastCheck(ctx, at); err != nil {
		return err
	}
	return s.persist()
}

// Clear removes all state in memory and on disk.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := s.MemoryStore.Clear(ctx); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}
