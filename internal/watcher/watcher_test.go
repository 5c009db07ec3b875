package watcher_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Speed-Jobs/jobwatch/internal/diff"
	"github.com/Speed-Jobs/jobwatch/internal/notify"
	"github.com/Speed-Jobs/jobwatch/internal/posting"
	"github.com/Speed-Jobs/jobwatch/internal/store"
	"github.com/Speed-Jobs/jobwatch/internal/watcher"
)

// scriptedSource returns one batch (or error) per fetch, in order,
// repeating the last script entry when exhausted.
type scriptedSource struct {
	mu      sync.Mutex
	script  []fetchResult
	fetches int32
}

type fetchResult struct {
	batch []posting.Posting
	err   error
}

func (s *scriptedSource) Fetch(ctx context.Context) ([]posting.Posting, error) {
	atomic.AddInt32(&s.fetches, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := int(atomic.LoadInt32(&s.fetches)) - 1
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	return s.script[idx].batch, s.script[idx].err
}

func (s *scriptedSource) fetchCount() int {
	return int(atomic.LoadInt32(&s.fetches))
}

// blockingSource parks every fetch until released.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
	batch   []posting.Posting
	fetches int32
}

func newBlockingSource(batch []posting.Posting) *blockingSource {
	return &blockingSource{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
		batch:   batch,
	}
}

func (s *blockingSource) Fetch(ctx context.Context) ([]posting.Posting, error) {
	atomic.AddInt32(&s.fetches, 1)
	s.entered <- struct{}{}
	<-s.release
	return s.batch, nil
}

// capturingPresenter records presented alerts.
type capturingPresenter struct {
	mu     sync.Mutex
	alerts []notify.Alert
	called chan struct{}
}

func newCapturingPresenter() *capturingPresenter {
	return &capturingPresenter{called: make(chan struct{}, 16)}
}

func (p *capturingPresenter) Present(alert notify.Alert, done func()) error {
	p.mu.Lock()
	p.alerts = append(p.alerts, alert)
	p.mu.Unlock()
	p.called <- struct{}{}
	done()
	return nil
}

func (p *capturingPresenter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

// capturingNotifier records OS-level summaries.
type capturingNotifier struct {
	mu        sync.Mutex
	summaries []string
	called    chan struct{}
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{called: make(chan struct{}, 16)}
}

func (n *capturingNotifier) Notify(ctx context.Context, summary string) error {
	n.mu.Lock()
	n.summaries = append(n.summaries, summary)
	n.mu.Unlock()
	n.called <- struct{}{}
	return nil
}

func waitSignal(t *testing.T, ch chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out: " + msg)
	}
}

func waitState(t *testing.T, w *watcher.Watcher, want watcher.State) {
	t.Helper()
	require.Eventually(t, func() bool { return w.State() == want },
		2*time.Second, 5*time.Millisecond, "waiting for state %s", want)
}

func TestWatcher_LifecycleStates(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	src := &scriptedSource{script: []fetchResult{{batch: nil}}}
	w := watcher.New(nil, src, diff.NewEngine(s, nil), nil, s,
		watcher.WithInterval(time.Hour),
		watcher.WithInitialDelay(time.Hour),
	)

	assert.Equal(t, watcher.StateIdle, w.State())

	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, watcher.StateRunning, w.State())

	assert.ErrorIs(t, w.Start(context.Background()), watcher.ErrAlreadyStarted)

	w.Stop()
	assert.Equal(t, watcher.StateStopped, w.State())

	// Stop is idempotent and CheckNow after stop is a dropped no-op.
	w.Stop()
	assert.False(t, w.CheckNow())
}

func TestWatcher_InitialCheckAfterDelay(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	src := &scriptedSource{script: []fetchResult{
		{batch: []posting.Posting{{ID: "1", Title: "A"}}},
	}}
	w := watcher.New(nil, src, diff.NewEngine(s, nil), nil, s,
		watcher.WithInterval(time.Hour),
		watcher.WithInitialDelay(10*time.Millisecond),
	)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.Eventually(t, func() bool { return src.fetchCount() == 1 },
		2*time.Second, 5*time.Millisecond)

	initialized, err := s.Initialized(context.Background())
	require.NoError(t, err)
	assert.True(t, initialized, "first cycle must seed the store")
	assert.False(t, w.LastCheck().IsZero())
}

func TestWatcher_PeriodicChecks(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	src := &scriptedSource{script: []fetchResult{{batch: nil}}}
	w := watcher.New(nil, src, diff.NewEngine(s, nil), nil, s,
		watcher.WithInterval(20*time.Millisecond),
		watcher.WithInitialDelay(0),
	)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.Eventually(t, func() bool { return src.fetchCount() >= 3 },
		2*time.Second, 5*time.Millisecond)
}

func TestWatcher_AtMostOneCycleInFlight(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	src := newBlockingSource(nil)
	w := watcher.New(nil, src, diff.NewEngine(s, nil), nil, s,
		watcher.WithInterval(time.Hour),
		watcher.WithInitialDelay(0),
	)
	require.NoError(t, w.Start(context.Background()))

	waitSignal(t, src.entered, "first cycle should reach the source")

	// Rapid manual triggers while the first cycle is checking are
	// dropped, not queued.
	assert.False(t, w.CheckNow())
	assert.False(t, w.CheckNow())

	close(src.release)
	waitState(t, w, watcher.StateRunning)

	assert.Equal(t, 1, int(atomic.LoadInt32(&src.fetches)),
		"dropped triggers must not produce extra cycles")

	w.Stop()
}

func TestWatcher_ManualTrigger(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	src := &scriptedSource{script: []fetchResult{{batch: nil}}}
	w := watcher.New(nil, src, diff.NewEngine(s, nil), nil, s,
		watcher.WithInterval(time.Hour),
		watcher.WithInitialDelay(time.Hour),
	)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.True(t, w.CheckNow())
	require.Eventually(t, func() bool { return src.fetchCount() == 1 },
		2*time.Second, 5*time.Millisecond)
}

func TestWatcher_FetchFailureSkipsCycleAndKeepsRunning(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	src := &scriptedSource{script: []fetchResult{
		{err: errors.New("upstream down")},
		{batch: []posting.Posting{{ID: "1", Title: "A"}}},
	}}
	w := watcher.New(nil, src, diff.NewEngine(s, nil), nil, s,
		watcher.WithInterval(20*time.Millisecond),
		watcher.WithInitialDelay(0),
	)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.Eventually(t, func() bool { return src.fetchCount() >= 2 },
		2*time.Second, 5*time.Millisecond, "watcher must keep retrying after a failed fetch")

	require.Eventually(t, func() bool {
		initialized, err := s.Initialized(context.Background())
		return err == nil && initialized
	}, 2*time.Second, 5*time.Millisecond)

	// The failed first cycle must not have advanced the check marker.
	lastCheck, err := s.LastCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, lastCheck.IsZero())
}

func TestWatcher_StopDiscardsInFlightResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryStore()
	engine := diff.NewEngine(s, nil)

	// Seed the store so the blocked cycle would otherwise report C.
	_, err := engine.Run(ctx, []posting.Posting{{ID: "1", Title: "A"}}, time.Now())
	require.NoError(t, err)

	presenter := newCapturingPresenter()
	dispatcher := notify.NewDispatcher(nil, presenter, nil, nil)
	defer dispatcher.Close()

	src := newBlockingSource([]posting.Posting{
		{ID: "1", Title: "A"},
		{ID: "3", Title: "C"},
	})
	w := watcher.New(nil, src, engine, dispatcher, s,
		watcher.WithInterval(time.Hour),
		watcher.WithInitialDelay(0),
	)
	require.NoError(t, w.Start(ctx))

	waitSignal(t, src.entered, "cycle should reach the source")

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	// Let the in-flight fetch finish; Stop waits for it, then the
	// result is discarded.
	close(src.release)
	waitSignal(t, stopped, "stop should return once the cycle finishes")

	assert.Zero(t, presenter.count(), "result of a cycle finishing after stop must be discarded")
}

func TestWatcher_EndToEndScenario(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	presenter := newCapturingPresenter()
	notifier := newCapturingNotifier()
	dispatcher := notify.NewDispatcher(nil, presenter, notifier, notify.NewStaticGate(true))
	defer dispatcher.Close()

	src := &scriptedSource{script: []fetchResult{
		{batch: []posting.Posting{{ID: "1", Title: "A"}, {ID: "2", Title: "B"}}},
		{batch: []posting.Posting{{ID: "1", Title: "A"}, {ID: "2", Title: "B"}, {ID: "3", Title: "C"}}},
	}}
	w := watcher.New(nil, src, diff.NewEngine(s, nil), dispatcher, s,
		watcher.WithInterval(time.Hour),
		watcher.WithInitialDelay(0),
	)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// Cycle 1 seeds the store; nothing is announced.
	require.Eventually(t, func() bool { return src.fetchCount() == 1 && w.State() == watcher.StateRunning },
		2*time.Second, 5*time.Millisecond)
	assert.Zero(t, presenter.count())

	// Cycle 2 sees C for the first time.
	require.True(t, w.CheckNow())
	waitSignal(t, presenter.called, "presenter should receive the new posting")
	waitSignal(t, notifier.called, "notifier should receive the summary")

	require.Equal(t, 1, presenter.count())
	require.Len(t, presenter.alerts[0].Postings, 1)
	assert.Equal(t, "C", presenter.alerts[0].Postings[0].Title)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, "1 new posting: C", notifier.summaries[0])
}
