// Package notify fans a batch of newly detected postings out to the
// configured notification sinks.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Speed-Jobs/jobwatch/internal/posting"
)

// DefaultExpiry is how long a presented alert stays up before the
// dispatcher expires it on the presenter's behalf.
const DefaultExpiry = 10 * time.Second

// maxSummaryTitles bounds how many titles the OS-level summary names.
const maxSummaryTitles = 3

// Alert is one presented batch of new postings.
type Alert struct {
	// ID uniquely identifies the alert for the dismiss/expiry callback.
	ID string
	// Postings are the new postings, in detection order.
	Postings []posting.Posting
	// ExpiresAfter is how long the presentation may stay up.
	ExpiresAfter time.Duration
}

// Presenter renders an alert to the user-facing surface (a UI toast,
// an event stream). The implementation must call done exactly once when
// the alert is dismissed or its expiry elapses; the dispatcher also
// arms its own expiry timer as a backstop.
type Presenter interface {
	Present(alert Alert, done func()) error
}

// Notifier raises an OS-level (or otherwise out-of-band) notification.
type Notifier interface {
	Notify(ctx context.Context, summary string) error
}

// PermissionGate reports whether the host environment allows OS-level
// notifications. Request is invoked once at startup and never
// re-prompted mid-session.
type PermissionGate interface {
	Granted() bool
	Request(ctx context.Context) error
}

// Summarize renders the one-line OS notification text: the count plus
// up to the first three titles, with a "+N more" suffix beyond that.
func Summarize(postings []posting.Posting) string {
	noun := "postings"
	if len(postings) == 1 {
		noun = "posting"
	}

	shown := len(postings)
	if shown > maxSummaryTitles {
		shown = maxSummaryTitles
	}
	titles := make([]string, 0, shown)
	for _, p := range postings[:shown] {
		titles = append(titles, p.Title)
	}

	summary := fmt.Sprintf("%d new %s: %s", len(postings), noun, strings.Join(titles, ", "))
	if rest := len(postings) - shown; rest > 0 {
		summary += fmt.Sprintf(" +%d more", rest)
	}
	return summary
}
