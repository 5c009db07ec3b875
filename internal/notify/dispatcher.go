package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Speed-Jobs/jobwatch/internal/diff"
	"github.com/Speed-Jobs/jobwatch/internal/logger"
	"github.com/Speed-Jobs/jobwatch/internal/metrics"
)

// sendTimeout bounds how long a single sink delivery may take.
const sendTimeout = 15 * time.Second

// Dispatcher fans a check result out to the presenter and the OS-level
// notifier. Both sinks run fire-and-forget: a slow or failing sink
// never blocks the watcher, and a failure in one sink does not affect
// the other.
type Dispatcher struct {
	logger    logger.Interface
	presenter Presenter
	notifier  Notifier
	gate      PermissionGate
	expiry    time.Duration
	metrics   *metrics.Metrics

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
	closed  bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithExpiry overrides the alert auto-expiry duration.
func WithExpiry(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.expiry = d
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(disp *Dispatcher) { disp.metrics = m }
}

// NewDispatcher creates a dispatcher. Nil sinks are allowed and simply
// disable that channel.
func NewDispatcher(log logger.Interface, presenter Presenter, notifier Notifier, gate PermissionGate, opts ...Option) *Dispatcher {
	if log == nil {
		log = logger.NewNoOp()
	}

	d := &Dispatcher{
		logger:    log.WithComponent("dispatcher"),
		presenter: presenter,
		notifier:  notifier,
		gate:      gate,
		expiry:    DefaultExpiry,
		metrics:   metrics.NewUnregistered(),
		pending:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RequestPermission asks the gate once, at startup. Errors are logged;
// a denied or failed request only suppresses the OS-level sink.
func (d *Dispatcher) RequestPermission(ctx context.Context) {
	if d.gate == nil {
		return
	}
	if err := d.gate.Request(ctx); err != nil {
		d.logger.Warn("Notification permission request failed", "error", err)
	}
}

// Dispatch delivers a check result. No-op when nothing is new.
func (d *Dispatcher) Dispatch(result *diff.Result) {
	if result == nil || !result.HasNew() {
		return
	}

	alert := Alert{
		ID:           uuid.NewString(),
		Postings:     result.New,
		ExpiresAfter: d.expiry,
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.presenter != nil {
		// Backstop expiry in case the presenter never calls back.
		d.pending[alert.ID] = time.AfterFunc(d.expiry, func() { d.release(alert.ID) })
		d.wg.Add(1)
		go d.present(alert)
	}
	if d.notifier != nil && d.gate != nil && d.gate.Granted() {
		d.wg.Add(1)
		go d.raise(alert)
	}
	d.mu.Unlock()

	d.metrics.NewPostings.Add(float64(len(result.New)))
	d.logger.Info("Dispatching new postings",
		"alert_id", alert.ID,
		"count", len(result.New),
	)
}

// present delivers the alert to the UI presenter.
func (d *Dispatcher) present(alert Alert) {
	defer d.wg.Done()

	if err := d.presenter.Present(alert, func() { d.release(alert.ID) }); err != nil {
		d.logger.Error("Presenter failed", "alert_id", alert.ID, "error", err)
		d.release(alert.ID)
		return
	}
	d.metrics.NotificationsSent.WithLabelValues("presenter").Inc()
}

// raise delivers the OS-level summary notification. It runs under its
// own deadline, detached from the cycle that produced the result.
func (d *Dispatcher) raise(alert Alert) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, Summarize(alert.Postings)); err != nil {
		d.logger.Error("OS notification failed", "alert_id", alert.ID, "error", err)
		return
	}
	d.metrics.NotificationsSent.WithLabelValues("os").Inc()
}

// release drops the retained state for an alert. Safe to call more than
// once; the dismiss callback and the expiry timer may race.
func (d *Dispatcher) release(alertID string) {
	d.mu.Lock()
	timer, ok := d.pending[alertID]
	if ok {
		delete(d.pending, alertID)
	}
	d.mu.Unlock()

	if ok {
		timer.Stop()
		d.logger.Debug("Alert released", "alert_id", alertID)
	}
}

// Pending reports how many alerts are awaiting dismissal or expiry.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close stops expiry timers and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	for id, timer := range d.pending {
		timer.Stop()
		delete(d.pending, id)
	}
	d.mu.Unlock()

	d.wg.Wait()
}
