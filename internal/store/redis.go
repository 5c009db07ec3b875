package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Speed-Jobs/jobwatch/internal/logger"
	"github.com/Speed-Jobs/jobwatch/internal/posting"
)

const (
	// DefaultKeyPrefix namespaces all jobwatch keys in Redis.
	DefaultKeyPrefix = "jobwatch"

	connectionTimeout = 2 * time.Second
)

// NewClient creates a Redis client and verifies connectivity.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// RedisStore keeps the snapshot in a Redis hash: one field per
// fingerprint holding the JSON-encoded entry, plus scalar keys for the
// initialized flag and last check time.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger logger.Interface
}

// NewRedisStore creates a store on the given client. An empty prefix
// falls back to DefaultKeyPrefix.
func NewRedisStore(client *redis.Client, prefix string, log logger.Interface) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if log == nil {
		log = logger.NewNoOp()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: log.WithComponent("redis_store"),
	}
}

func (s *RedisStore) seenKey() string        { return s.prefix + ":seen" }
func (s *RedisStore) initializedKey() string { return s.prefix + ":initialized" }
func (s *RedisStore) lastCheckKey() string   { return s.prefix + ":last_check" }

// Initialized reports whether first-run seeding has completed.
func (s *RedisStore) Initialized(ctx context.Context) (bool, error) {
	val, err := s.client.Get(ctx, s.initializedKey()).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get initialized flag: %w", err)
	}
	return val == "1", nil
}

// Initialize seeds the store and marks it initialized.
func (s *RedisStore) Initialize(ctx context.Context, fps []posting.Fingerprint, at time.Time) error {
	if len(fps) > 0 {
		fields := make(map[string]any, len(fps))
		for _, fp := range fps {
			entry := SeenEntry{Fingerprint: fp, FirstSeenAt: at, LastSeenAt: at}
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshal seen entry: %w", err)
			}
			fields[string(fp)] = data
		}
		if err := s.client.HSet(ctx, s.seenKey(), fields).Err(); err != nil {
			return fmt.Errorf("seed seen set: %w", err)
		}
	}

	if err := s.client.Set(ctx, s.initializedKey(), "1", 0).Err(); err != nil {
		return fmt.Errorf("set initialized flag: %w", err)
	}
	return nil
}

// Has reports whether the fingerprint has been observed.
func (s *RedisStore) Has(ctx context.Context, fp posting.Fingerprint) (bool, error) {
	ok, err := s.client.HExists(ctx, s.seenKey(), string(fp)).Result()
	if err != nil {
		return false, fmt.Errorf("check seen set: %w", err)
	}
	return ok, nil
}

// RecordSeen inserts or advances the entry for fp. The read-modify-write
// is unguarded; the watcher guarantees a single writer per store.
func (s *RedisStore) RecordSeen(ctx context.Context, fp posting.Fingerprint, at time.Time) error {
	entry, err := s.Entry(ctx, fp)
	if errors.Is(err, ErrNotFound) {
		entry = &SeenEntry{Fingerprint: fp, FirstSeenAt: at, LastSeenAt: at}
	} else if err != nil {
		return err
	} else {
		advance(entry, at)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal seen entry: %w", err)
	}
	if err := s.client.HSet(ctx, s.seenKey(), string(fp), data).Err(); err != nil {
		return fmt.Errorf("store seen entry: %w", err)
	}
	return nil
}

// Entry returns the entry for fp. A corrupt stored value is treated as
// absent so one bad row cannot wedge the cycle.
func (s *RedisStore) Entry(ctx context.Context, fp posting.Fingerprint) (*SeenEntry, error) {
	data, err := s.client.HGet(ctx, s.seenKey(), string(fp)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get seen entry: %w", err)
	}

	var entry SeenEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn("Discarding corrupt seen entry", "fingerprint", string(fp), "error", err)
		return nil, ErrNotFound
	}
	return &entry, nil
}

// Entries returns all entries ordered by first observation, skipping
// corrupt rows.
func (s *RedisStore) Entries(ctx context.Context) ([]SeenEntry, error) {
	raw, err := s.client.HGetAll(ctx, s.seenKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list seen entries: %w", err)
	}

	entries := make([]SeenEntry, 0, len(raw))
	for field, data := range raw {
		var entry SeenEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			s.logger.Warn("Skipping corrupt seen entry", "fingerprint", field, "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].FirstSeenAt.Equal(entries[j].FirstSeenAt) {
			return entries[i].Fingerprint < entries[j].Fingerprint
		}
		return entries[i].FirstSeenAt.Before(entries[j].FirstSeenAt)
	})
	return entries, nil
}

// Count returns the number of stored entries.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	count, err := s.client.HLen(ctx, s.seenKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count seen entries: %w", err)
	}
	return count, nil
}

// LastCheck returns the time of the last completed check cycle. A
// missing or unparseable value reads as the zero time.
func (s *RedisStore) LastCheck(ctx context.Context) (time.Time, error) {
	val, err := s.client.Get(ctx, s.lastCheckKey()).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last check time: %w", err)
	}

	at, parseErr := time.Parse(time.RFC3339Nano, val)
	if parseErr != nil {
		s.logger.Warn("Discarding corrupt last check time", "value", val, "error", parseErr)
		return time.Time{}, nil
	}
	return at, nil
}

// SetLastCheck records the time of the last completed check cycle.
func (s *RedisStore) SetLastCheck(ctx context.Context, at time.Time) error {
	if err := s.client.Set(ctx, s.lastCheckKey(), at.Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("set last check time: %w", err)
	}
	return nil
}

// Clear removes all entries and metadata.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.seenKey(), s.initializedKey(), s.lastCheckKey()).Err(); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}
