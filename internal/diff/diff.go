// Package diff classifies incoming posting batches as new or already
// seen against the snapshot store.
package diff

import (
	"context"
	"fmt"
	"time"

	"github.com/Speed-Jobs/jobwatch/internal/logger"
	"github.com/Speed-Jobs/jobwatch/internal/posting"
	"github.com/Speed-Jobs/jobwatch/internal/store"
)

// Result is the outcome of one check cycle. It is consumed by the
// dispatcher immediately and never persisted.
type Result struct {
	// New holds the postings absent from the store at cycle start, in
	// input batch order.
	New []posting.Posting
	// CheckedAt is the cycle timestamp.
	CheckedAt time.Time
}

// HasNew reports whether the cycle found anything to announce.
func (r *Result) HasNew() bool {
	return len(r.New) > 0
}

// Engine computes the set difference between a batch and the store and
// updates the store as it goes.
type Engine struct {
	store  store.Store
	logger logger.Interface
}

// NewEngine creates a diff engine over the given store.
func NewEngine(s store.Store, log logger.Interface) *Engine {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Engine{store: s, logger: log.WithComponent("diff")}
}

// Run executes one diff cycle over the batch.
//
// The very first run seeds the store from the batch and reports nothing
// new; there is nothing to compare against. On later runs each posting
// is checked against the store state at cycle start, in batch order; a
// fingerprint occurring twice in one batch is reported once.
//
// Store write failures are logged, not returned: the in-memory result
// is still delivered so the user sees the detection, but the last-check
// marker is not advanced and the same postings may be re-evaluated next
// cycle. Only store read failures abort the cycle.
func (e *Engine) Run(ctx context.Context, batch []posting.Posting, at time.Time) (*Result, error) {
	initialized, err := e.store.Initialized(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store state: %w", err)
	}

	if !initialized {
		return e.seed(ctx, batch, at)
	}

	result := &Result{CheckedAt: at}
	seenInBatch := make(map[posting.Fingerprint]struct{}, len(batch))
	writeFailed := false

	for _, p := range batch {
		fp := posting.FingerprintOf(p)

		known, hasErr := e.store.Has(ctx, fp)
		if hasErr != nil {
			return nil, fmt.Errorf("check fingerprint: %w", hasErr)
		}

		if _, dup := seenInBatch[fp]; !known && !dup {
			result.New = append(result.New, p)
		}
		seenInBatch[fp] = struct{}{}

		if recordErr := e.store.RecordSeen(ctx, fp, at); recordErr != nil {
			e.logger.Error("Failed to record fingerprint",
				"fingerprint", string(fp), "error", recordErr)
			writeFailed = true
		}
	}

	e.finishCycle(ctx, at, writeFailed)

	e.logger.Debug("Cycle complete",
		"batch_size", len(batch),
		"new_count", len(result.New),
	)
	return result, nil
}

// seed performs the first-run initialization: every fingerprint in the
// batch becomes seen, nothing is reported as new.
func (e *Engine) seed(ctx context.Context, batch []posting.Posting, at time.Time) (*Result, error) {
	fps := make([]posting.Fingerprint, 0, len(batch))
	for _, p := range batch {
		fps = append(fps, posting.FingerprintOf(p))
	}

	if err := e.store.Initialize(ctx, fps, at); err != nil {
		// Delivery beats durability: report the (empty) result and let
		// the next cycle retry the seeding.
		e.logger.Error("Failed to seed store", "batch_size", len(batch), "error", err)
		return &Result{CheckedAt: at}, nil
	}

	e.finishCycle(ctx, at, false)

	e.logger.Info("Snapshot store seeded", "batch_size", len(batch))
	return &Result{CheckedAt: at}, nil
}

// finishCycle advances the last-check marker unless a write already
// failed this cycle.
func (e *Engine) finishCycle(ctx context.Context, at time.Time, writeFailed bool) {
	if writeFailed {
		return
	}
	if err := e.store.SetLastCheck(ctx, at); err != nil {
		e.logger.Error("Failed to record check time", "error", err)
	}
}
