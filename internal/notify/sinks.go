package notify

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/Speed-Jobs/jobwatch/internal/logger"
)

// LogPresenter writes alerts to the application log. It is the default
// presentation surface when no UI channel is configured; released by
// the dispatcher's expiry backstop.
type LogPresenter struct {
	logger logger.Interface
}

// NewLogPresenter creates a presenter writing to log.
func NewLogPresenter(log logger.Interface) *LogPresenter {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &LogPresenter{logger: log.WithComponent("presenter")}
}

// Present logs each new posting.
func (p *LogPresenter) Present(alert Alert, done func()) error {
	for _, job := range alert.Postings {
		p.logger.Info("New posting",
			"alert_id", alert.ID,
			"title", job.Title,
			"company", job.Company,
			"location", job.Location,
		)
	}
	return nil
}

// LogNotifier writes the OS-level summary to the application log. Used
// where no desktop notification command is available.
type LogNotifier struct {
	logger logger.Interface
}

// NewLogNotifier creates a notifier writing to log.
func NewLogNotifier(log logger.Interface) *LogNotifier {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &LogNotifier{logger: log.WithComponent("notifier")}
}

// Notify logs the summary.
func (n *LogNotifier) Notify(ctx context.Context, summary string) error {
	n.logger.Info("Notification", "summary", summary)
	return nil
}

// ExecNotifier raises desktop notifications by running an external
// command (notify-send, osascript, terminal-notifier) with the summary
// appended as the final argument.
type ExecNotifier struct {
	command string
	args    []string
}

// NewExecNotifier creates a notifier shelling out to command.
func NewExecNotifier(command string, args ...string) *ExecNotifier {
	return &ExecNotifier{command: command, args: args}
}

// Notify runs the configured command.
func (n *ExecNotifier) Notify(ctx context.Context, summary string) error {
	args := make([]string, 0, len(n.args)+1)
	args = append(args, n.args...)
	args = append(args, summary)

	if out, err := exec.CommandContext(ctx, n.command, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("run %s: %w: %s", n.command, err, out)
	}
	return nil
}

// Available reports whether the command exists on PATH, which doubles
// as the permission gate for exec-based notifications.
func (n *ExecNotifier) Available() bool {
	_, err := exec.LookPath(n.command)
	return err == nil
}

// StaticGate is a PermissionGate with a fixed answer.
type StaticGate struct {
	granted bool
}

// NewStaticGate creates a gate that always answers granted.
func NewStaticGate(granted bool) *StaticGate {
	return &StaticGate{granted: granted}
}

// Granted reports the fixed answer.
func (g *StaticGate) Granted() bool { return g.granted }

// Request is a no-op; the answer is fixed.
func (g *StaticGate) Request(ctx context.Context) error { return nil }

// ExecGate grants OS notifications when the notifier's command exists.
type ExecGate struct {
	notifier *ExecNotifier
}

// NewExecGate creates a gate over an exec notifier.
func NewExecGate(n *ExecNotifier) *ExecGate {
	return &ExecGate{notifier: n}
}

// Granted reports whether the command is on PATH.
func (g *ExecGate) Granted() bool { return g.notifier.Available() }

// Request checks availability once; missing commands are not an error,
// they just leave the gate closed.
func (g *ExecGate) Request(ctx context.Context) error { return nil }
