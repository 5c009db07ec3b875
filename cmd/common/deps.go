// Package common provides shared wiring for command implementations.
package common

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Speed-Jobs/jobwatch/internal/config"
	"github.com/Speed-Jobs/jobwatch/internal/logger"
	"github.com/Speed-Jobs/jobwatch/internal/metrics"
	"github.com/Speed-Jobs/jobwatch/internal/notify"
	"github.com/Speed-Jobs/jobwatch/internal/posting"
	"github.com/Speed-Jobs/jobwatch/internal/store"
)

// CommandDeps holds common dependencies for all commands.
// Use this instead of context.Value for type-safe dependency injection.
type CommandDeps struct {
	Config *config.Config
	Logger logger.Interface
	Store  store.Store
	Redis  *redis.Client
}

// NewCommandDeps loads configuration and constructs the logger, the
// snapshot store backend it selects, and a Redis client when any
// component needs one.
func NewCommandDeps() (*CommandDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Development: cfg.Logger.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	deps := &CommandDeps{
		Config: cfg,
		Logger: log,
	}

	// A Redis client is shared between the redis store backend and the
	// alert channel presenter.
	if cfg.Store.Backend == config.BackendRedis || cfg.Notify.Channel != "" {
		client, clientErr := store.NewClient(cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB)
		if clientErr != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", clientErr)
		}
		deps.Redis = client
	}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		deps.Store = store.NewMemoryStore()
	case config.BackendFile:
		fileStore, storeErr := store.NewFileStore(cfg.Store.Path, log)
		if storeErr != nil {
			return nil, fmt.Errorf("failed to open snapshot file: %w", storeErr)
		}
		deps.Store = fileStore
	case config.BackendRedis:
		deps.Store = store.NewRedisStore(deps.Redis, cfg.Store.Redis.KeyPrefix, log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return deps, nil
}

// Validate ensures all required dependencies are present.
func (d *CommandDeps) Validate() error {
	if d.Config == nil {
		return ErrConfigRequired
	}
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Store == nil {
		return ErrStoreRequired
	}
	return nil
}

// Close releases held connections.
func (d *CommandDeps) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn("Failed to close redis client", "error", err)
		}
	}
}

// NewSource builds the posting source from configuration.
func (d *CommandDeps) NewSource() (posting.Source, error) {
	if d.Config.Watch.SourceURL == "" {
		return nil, config.ErrMissingSourceURL
	}
	return posting.NewHTTPSource(d.Config.Watch.SourceURL, d.Config.Watch.FetchTimeout), nil
}

// NewDispatcher wires the notification sinks selected by configuration:
// the Redis alert channel (or the log) as presenter, and an external
// command (or the log) as the OS-level notifier.
func (d *CommandDeps) NewDispatcher(m *metrics.Metrics) *notify.Dispatcher {
	cfg := d.Config.Notify

	var presenter notify.Presenter
	if cfg.Channel != "" && d.Redis != nil {
		presenter = notify.NewRedisPresenter(d.Redis, cfg.Channel)
	} else {
		presenter = notify.NewLogPresenter(d.Logger)
	}

	var notifier notify.Notifier
	var gate notify.PermissionGate
	switch {
	case !cfg.OSEnabled:
		gate = notify.NewStaticGate(false)
	case cfg.OSCommand != "":
		execNotifier := notify.NewExecNotifier(cfg.OSCommand, cfg.OSArgs...)
		notifier = execNotifier
		gate = notify.NewExecGate(execNotifier)
	default:
		notifier = notify.NewLogNotifier(d.Logger)
		gate = notify.NewStaticGate(true)
	}

	opts := []notify.Option{notify.WithMetrics(m)}
	if cfg.Expiry > 0 {
		opts = append(opts, notify.WithExpiry(cfg.Expiry))
	}
	return notify.NewDispatcher(d.Logger, presenter, notifier, gate, opts...)
}
