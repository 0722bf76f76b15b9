package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"bisub/internal/config"
	"bisub/internal/logging"
	"bisub/internal/preflight"
	"bisub/internal/profiler"
	"bisub/internal/queue"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	profile      profiler.Profile
	pollInterval time.Duration
	workers      int

	heartbeat   *heartbeats
	purger      *Purger
	accelerator *semaphore.Weighted
	preflight   func(context.Context, *config.Config) []preflight.Result
	sleep       func(context.Context, time.Duration) error

	stages     map[queue.Status]pipelineStage
	stageOrder []pipelineStage

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
	active  map[int64]struct{}
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithProfile sets the resolved environment profile used for admission
// limits and model defaults.
func WithProfile(p profiler.Profile) ManagerOption {
	return func(m *Manager) {
		m.profile = p
	}
}

// WithPreflight replaces the checks Start runs before accepting work.
func WithPreflight(check func(context.Context, *config.Config) []preflight.Result) ManagerOption {
	return func(m *Manager) {
		if check != nil {
			m.preflight = check
		}
	}
}

// WithSleep replaces the backoff sleep between stage attempts (used in tests).
func WithSleep(sleep func(context.Context, time.Duration) error) ManagerOption {
	return func(m *Manager) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		workers:      workers,
		profile: profiler.Profile{
			Device:        profiler.DeviceCPU,
			Model:         cfg.Recognition.Model,
			MaxInputBytes: cfg.MaxInputBytes(),
		},
		heartbeat: newHeartbeats(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		accelerator: semaphore.NewWeighted(1),
		preflight:   preflight.RunAll,
		sleep:       sleepContext,
		stages:      make(map[queue.Status]pipelineStage),
		active:      make(map[int64]struct{}),
	}
	m.purger = NewPurger(store, logger, cfg.Workflow.RetentionDays, cfg.Workflow.PurgeSchedule)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Profile returns the environment profile the manager admits jobs against.
func (m *Manager) Profile() profiler.Profile {
	return m.profile
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
