package diff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Speed-Jobs/jobwatch/internal/diff"
	"github.com/Speed-Jobs/jobwatch/internal/posting"
	"github.com/Speed-Jobs/jobwatch/internal/store"
)

var (
	jobA = posting.Posting{ID: "1", Title: "A", Company: "SK AX"}
	jobB = posting.Posting{ID: "2", Title: "B", Company: "SK AX"}
	jobC = posting.Posting{ID: "3", Title: "C", Company: "SK AX"}
)

func newEngine(t *testing.T) (*diff.Engine, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	return diff.NewEngine(s, nil), s
}

func TestEngine_FirstRunReportsNothingNew(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, s := newEngine(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	batch := []posting.Posting{jobA, jobB}

	result, err := engine.Run(ctx, batch, now)
	require.NoError(t, err)
	assert.Empty(t, result.New)
	assert.False(t, result.HasNew())
	assert.Equal(t, now, result.CheckedAt)

	initialized, err := s.Initialized(ctx)
	require.NoError(t, err)
	assert.True(t, initialized)

	// Re-running the same batch immediately is still quiet.
	result, err = engine.Run(ctx, batch, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, result.New)
}

func TestEngine_DetectsAddedPosting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	_, err := engine.Run(ctx, []posting.Posting{jobA, jobB}, now)
	require.NoError(t, err)

	result, err := engine.Run(ctx, []posting.Posting{jobA, jobB, jobC}, now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, result.HasNew())
	require.Len(t, result.New, 1)
	assert.Equal(t, "C", result.New[0].Title)
}

func TestEngine_PreservesBatchOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	_, err := engine.Run(ctx, []posting.Posting{jobB}, now)
	require.NoError(t, err)

	// New postings keep their relative input order regardless of where
	// the seen ones sit between them.
	result, err := engine.Run(ctx, []posting.Posting{jobC, jobB, jobA}, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, result.New, 2)
	assert.Equal(t, "C", result.New[0].Title)
	assert.Equal(t, "A", result.New[1].Title)
}

func TestEngine_EmptyBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, s := newEngine(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	_, err := engine.Run(ctx, []posting.Posting{jobA}, now)
	require.NoError(t, err)

	result, err := engine.Run(ctx, nil, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, result.New)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "empty batch must not grow the store")
}

func TestEngine_DuplicateInBatchReportedOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	_, err := engine.Run(ctx, []posting.Posting{jobA}, now)
	require.NoError(t, err)

	first := posting.Posting{Title: "Backend Engineer", Company: "SK AX", Location: "Seoul"}
	second := posting.Posting{Title: "backend engineer", Company: " SK AX ", Location: "Busan"}

	result, err := engine.Run(ctx, []posting.Posting{first, second}, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, result.New, 1, "same fingerprint twice in one batch must be reported once")
	assert.Equal(t, "Seoul", result.New[0].Location, "the first occurrence wins")
}

func TestEngine_AdvancesLastCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, s := newEngine(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	_, err := engine.Run(ctx, []posting.Posting{jobA}, now)
	require.NoError(t, err)

	lastCheck, err := s.LastCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, now, lastCheck.UTC())

	later := now.Add(time.Hour)
	_, err = engine.Run(ctx, []posting.Posting{jobA}, later)
	require.NoError(t, err)

	lastCheck, err = s.LastCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, later, lastCheck.UTC())
}

// failingStore wraps a Store and fails writes on demand.
type failingStore struct {
	store.Store
	failWrites bool
}

func (f *failingStore) RecordSeen(ctx context.Context, fp posting.Fingerprint, at time.Time) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.Store.RecordSeen(ctx, fp, at)
}

func (f *failingStore) SetLastCheck(ctx context.Context, at time.Time) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.Store.SetLastCheck(ctx, at)
}

func TestEngine_WriteFailureStillDeliversResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := store.NewMemoryStore()
	fs := &failingStore{Store: backing}
	engine := diff.NewEngine(fs, nil)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	_, err := engine.Run(ctx, []posting.Posting{jobA}, now)
	require.NoError(t, err)

	fs.failWrites = true
	result, err := engine.Run(ctx, []posting.Posting{jobA, jobC}, now.Add(time.Hour))
	require.NoError(t, err, "write failures must not abort the cycle")
	require.Len(t, result.New, 1)
	assert.Equal(t, "C", result.New[0].Title)

	// The marker did not advance, so C is re-evaluated next cycle.
	lastCheck, err := backing.LastCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, now, lastCheck.UTC())

	fs.failWrites = false
	result, err = engine.Run(ctx, []posting.Posting{jobA, jobC}, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, result.New, 1)
	assert.Equal(t, "C", result.New[0].Title)
}
