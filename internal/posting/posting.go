// Package posting defines the job posting domain model and the
// fingerprinting used to identify the same posting across fetch cycles.
package posting

import (
	"context"
	"encoding/json"
	"time"
)

// Posting represents one job posting as observed at fetch time.
// Instances are immutable; the core holds them only for the duration of
// one check cycle.
type Posting struct {
	// ID is the upstream source's persistent identifier, if any.
	ID string `json:"id,omitempty"`
	// Title is the posting title.
	Title string `json:"title"`
	// Company is the hiring company name as reported by the source.
	Company string `json:"company"`
	// Location is the posting location, if reported.
	Location string `json:"location,omitempty"`
	// PostedAt is the upstream posting date, if reported.
	PostedAt *time.Time `json:"posted_at,omitempty"`
	// Raw carries the original upstream payload untouched. The core
	// never inspects it beyond the fingerprinting fields above.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Source supplies the current batch of postings for the tracked domain.
// How postings are obtained (transport, parsing, pagination) is the
// implementation's concern; the watcher only consumes batches.
type Source interface {
	Fetch(ctx context.Context) ([]Posting, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]Posting, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) ([]Posting, error) {
	return f(ctx)
}
