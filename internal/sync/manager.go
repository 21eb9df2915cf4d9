package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pluginmanifest/registry/internal/gitstore"
	"github.com/pluginmanifest/registry/internal/middleware"
)

const pullRetries = 3

// Puller updates the local copy of the plugin repository
type Puller interface {
	PullWithRetry(ctx context.Context, maxRetries int) (gitstore.Update, error)
}

// Refresher reloads the plugin index and drops the manifests rendered from
// changed files. A nil list means every file may have changed.
type Refresher interface {
	Refresh(changed []string) error
	PluginCount() int
}

// Status is a snapshot of the sync loop
type Status struct {
	LastSync   time.Time
	LastCommit string
	LastError  string
	Syncing    bool
}

// Manager keeps the registry in step with the plugin repository
type Manager struct {
	store        Puller
	registry     Refresher
	pollInterval time.Duration
	debounce     time.Duration
	logger       *slog.Logger

	triggerChan chan struct{}
	mu          sync.Mutex
	status      Status
}

// Config holds sync manager configuration
type Config struct {
	Store        Puller
	Registry     Refresher
	PollInterval time.Duration
	Debounce     time.Duration
	Logger       *slog.Logger
}

// NewManager creates a new sync manager
func NewManager(cfg Config) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		store:        cfg.Store,
		registry:     cfg.Registry,
		pollInterval: cfg.PollInterval,
		debounce:     cfg.Debounce,
		logger:       cfg.Logger,
		triggerChan:  make(chan struct{}, 1),
	}
}

// Start runs the polling loop until ctx is done. Webhook triggers are
// debounced against the last successful sync.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.logger.Info("sync manager started",
		"poll_interval", m.pollInterval,
		"debounce", m.debounce,
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sync manager stopped")
			return

		case <-ticker.C:
			m.doSync(ctx, "poll")

		case <-m.triggerChan:
			if m.debounced() {
				continue
			}
			m.doSync(ctx, "webhook")
		}
	}
}

// Trigger requests a sync without blocking; pending triggers coalesce
func (m *Manager) Trigger() {
	select {
	case m.triggerChan <- struct{}{}:
		m.logger.Debug("sync triggered")
	default:
		m.logger.Debug("sync already pending")
	}
}

// Status returns the current sync state
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) debounced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Since(m.status.LastSync) < m.debounce {
		m.logger.Debug("sync debounced", "last_sync", m.status.LastSync)
		return true
	}
	return false
}

// begin marks a sync as running; false when one already is
func (m *Manager) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.Syncing {
		return false
	}
	m.status.Syncing = true
	return true
}

func (m *Manager) finish(commit string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Syncing = false
	if err != nil {
		m.status.LastError = err.Error()
		return
	}
	m.status.LastError = ""
	m.status.LastSync = time.Now()
	if commit != "" {
		m.status.LastCommit = commit
	}
}

func (m *Manager) doSync(ctx context.Context, source string) {
	if !m.begin() {
		m.logger.Debug("sync already in progress")
		return
	}

	start := time.Now()
	m.logger.Info("starting sync", "source", source)

	update, err := m.store.PullWithRetry(ctx, pullRetries)
	if err != nil {
		middleware.RegistrySyncErrors.Inc()
		m.logger.Error("sync failed",
			"source", source,
			"error", err,
			"duration", time.Since(start),
		)
		m.finish("", err)
		return
	}

	if !update.Changed() {
		m.logger.Debug("no changes detected", "source", source)
		m.finish(update.NewCommit, nil)
		return
	}

	if err := m.registry.Refresh(update.Files); err != nil {
		middleware.RegistrySyncErrors.Inc()
		m.logger.Error("failed to refresh registry",
			"source", source,
			"commit", update.NewCommit,
			"error", err,
		)
		m.finish("", err)
		return
	}

	m.finish(update.NewCommit, nil)
	middleware.RegistrySyncDuration.Observe(time.Since(start).Seconds())

	m.logger.Info("sync completed",
		"source", source,
		"commit", update.NewCommit,
		"changed_files", len(update.Files),
		"plugin_count", m.registry.PluginCount(),
		"duration", time.Since(start),
	)
}
