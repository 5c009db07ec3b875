// Package watcher runs the periodic check-and-notify loop over a
// posting source.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Speed-Jobs/jobwatch/internal/diff"
	"github.com/Speed-Jobs/jobwatch/internal/logger"
	"github.com/Speed-Jobs/jobwatch/internal/metrics"
	"github.com/Speed-Jobs/jobwatch/internal/notify"
	"github.com/Speed-Jobs/jobwatch/internal/posting"
	"github.com/Speed-Jobs/jobwatch/internal/store"
)

// State is the watcher lifecycle state.
type State string

const (
	// StateIdle is the initial state before Start.
	StateIdle State = "idle"
	// StateRunning means the periodic timer is armed.
	StateRunning State = "running"
	// StateChecking means one cycle is in flight.
	StateChecking State = "checking"
	// StateStopped is terminal; the timer is released.
	StateStopped State = "stopped"
)

// Default scheduling parameters.
const (
	DefaultInterval     = 5 * time.Minute
	DefaultInitialDelay = 3 * time.Second
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("watcher already started")

// Watcher owns the check cycle: fetch the current batch from the
// source, diff it against the snapshot store, hand new postings to the
// dispatcher. At most one cycle runs at a time; triggers arriving while
// a cycle is in flight are dropped, not queued — the next timer tick
// picks up where they left off.
type Watcher struct {
	logger     logger.Interface
	source     posting.Source
	engine     *diff.Engine
	dispatcher *notify.Dispatcher
	store      store.Store
	metrics    *metrics.Metrics

	interval     time.Duration
	initialDelay time.Duration
	cronSpec     string
	now          func() time.Time

	cron     *cron.Cron
	loopCtx  context.Context
	stopLoop context.CancelFunc
	cycleCtx context.Context
	wg       sync.WaitGroup

	checking atomic.Bool
	trigger  chan struct{}

	mu        sync.RWMutex
	state     State
	lastCheck time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the periodic check interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithInitialDelay sets the delay before the first check.
func WithInitialDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.initialDelay = d
		}
	}
}

// WithCronSchedule arms an additional cron-driven trigger (standard
// five-field spec) alongside the fixed interval.
func WithCronSchedule(spec string) Option {
	return func(w *Watcher) { w.cronSpec = spec }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Watcher) { w.metrics = m }
}

// WithNowFunc overrides the clock, for deterministic tests.
func WithNowFunc(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// New creates a watcher in the Idle state.
func New(
	log logger.Interface,
	source posting.Source,
	engine *diff.Engine,
	dispatcher *notify.Dispatcher,
	s store.Store,
	opts ...Option,
) *Watcher {
	if log == nil {
		log = logger.NewNoOp()
	}

	w := &Watcher{
		logger:       log.WithComponent("watcher"),
		source:       source,
		engine:       engine,
		dispatcher:   dispatcher,
		store:        s,
		metrics:      metrics.NewUnregistered(),
		interval:     DefaultInterval,
		initialDelay: DefaultInitialDelay,
		now:          time.Now,
		trigger:      make(chan struct{}, 1),
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start arms the periodic timer and schedules the first check after the
// initial delay. The given context is handed to cycles (and thus to
// source fetches); Stop does not cancel it, so an in-flight fetch is
// allowed to finish and only its result is discarded.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateIdle {
		w.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, w.state)
	}
	w.state = StateRunning
	w.mu.Unlock()

	w.cycleCtx = ctx
	w.loopCtx, w.stopLoop = context.WithCancel(context.Background())

	if w.dispatcher != nil {
		w.dispatcher.RequestPermission(ctx)
	}

	if w.cronSpec != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		w.cron = cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
		if _, err := w.cron.AddFunc(w.cronSpec, func() { w.CheckNow() }); err != nil {
			w.stopLoop()
			return fmt.Errorf("invalid cron schedule %q: %w", w.cronSpec, err)
		}
		w.cron.Start()
	}

	w.wg.Add(1)
	go w.run()

	w.logger.Info("Watcher started",
		"interval", w.interval,
		"initial_delay", w.initialDelay,
		"cron", w.cronSpec,
	)
	return nil
}

// run is the scheduling loop.
func (w *Watcher) run() {
	defer w.wg.Done()

	initial := time.NewTimer(w.initialDelay)
	defer initial.Stop()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.loopCtx.Done():
			return
		case <-initial.C:
			w.startCycle()
		case <-ticker.C:
			w.startCycle()
		case <-w.trigger:
			w.startCycle()
		}
	}
}

// startCycle launches one cycle unless one is already in flight, in
// which case the trigger is dropped.
func (w *Watcher) startCycle() {
	if !w.checking.CompareAndSwap(false, true) {
		w.metrics.CyclesDropped.Inc()
		w.logger.Debug("Check dropped, cycle already in flight")
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.checking.Store(false)
		w.runCycle()
	}()
}

// runCycle executes fetch → diff → dispatch once.
func (w *Watcher) runCycle() {
	w.setState(StateChecking)
	defer w.restoreRunning()

	at := w.now()

	batch, err := w.source.Fetch(w.cycleCtx)
	if err != nil {
		// Transient source failures skip this cycle; the next tick
		// retries and lastCheck does not advance.
		w.metrics.CyclesFailed.Inc()
		w.logger.Error("Posting fetch failed", "error", err)
		return
	}

	result, err := w.engine.Run(w.cycleCtx, batch, at)
	if err != nil {
		w.metrics.CyclesFailed.Inc()
		w.logger.Error("Diff cycle failed", "error", err)
		return
	}

	if w.State() == StateStopped {
		w.logger.Debug("Discarding cycle result after stop")
		return
	}

	if w.dispatcher != nil {
		w.dispatcher.Dispatch(result)
	}

	w.mu.Lock()
	w.lastCheck = result.CheckedAt
	w.mu.Unlock()

	w.metrics.CyclesTotal.Inc()
	if count, countErr := w.store.Count(w.cycleCtx); countErr == nil {
		w.metrics.SeenEntries.Set(float64(count))
	}

	w.logger.Info("Check cycle complete",
		"batch_size", len(batch),
		"new_count", len(result.New),
	)
}

// CheckNow requests an immediate check. Returns false when the request
// was dropped because a cycle is already in flight or the watcher is
// not running.
func (w *Watcher) CheckNow() bool {
	if w.State() != StateRunning {
		w.metrics.CyclesDropped.Inc()
		return false
	}
	if w.checking.Load() {
		w.metrics.CyclesDropped.Inc()
		return false
	}

	select {
	case w.trigger <- struct{}{}:
		return true
	default:
		w.metrics.CyclesDropped.Inc()
		return false
	}
}

// Stop releases the timer and cron entries, waits for any in-flight
// cycle to finish, and discards its result. Safe to call at any time,
// more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.state == StateStopped {
		w.mu.Unlock()
		return
	}
	alreadyStarted := w.state != StateIdle
	w.state = StateStopped
	w.mu.Unlock()

	if !alreadyStarted {
		return
	}

	w.stopLoop()
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
	w.wg.Wait()

	w.logger.Info("Watcher stopped")
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// LastCheck returns the completion time of the most recent successful
// cycle in this process, or the zero time.
func (w *Watcher) LastCheck() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastCheck
}

// setState transitions to next unless already stopped.
func (w *Watcher) setState(next State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateStopped {
		w.state = next
	}
}

// restoreRunning returns from Checking to Running after a cycle.
func (w *Watcher) restoreRunning() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateChecking {
		w.state = StateRunning
	}
}
