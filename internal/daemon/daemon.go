package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"bisub/internal/config"
	"bisub/internal/logging"
	"bisub/internal/queue"
	"bisub/internal/staging"
	"bisub/internal/workflow"
)

const (
	lockFileName = "bisubd.lock"
	pidFileName  = "bisubd.pid"
)

// Daemon coordinates background processing and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager

	lockPath string
	pidPath  string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	LogPath      string
}

// LockPath returns the lock file guarding the queue database in cfg.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, lockFileName)
}

// PIDPath returns the file the running daemon writes its pid to.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, pidFileName)
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := LockPath(cfg)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		pidPath:  PIDPath(cfg),
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, clears orphaned staging directories, and
// launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bisub daemon instance is already running")
	}

	if err := writePIDFile(d.pidPath); err != nil {
		d.logger.Warn("failed to write pid file",
			logging.Error(err),
			logging.String("pid_file", d.pidPath),
			logging.String(logging.FieldEventType, "pid_file_failed"),
		)
	}
	d.sweepStaging(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.releaseLock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("bisub daemon started",
		logging.String("lock", d.lockPath),
		logging.String("queue_db", d.store.Path()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("bisub daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon. The store stays open; its owner closes it.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		LogPath:      filepath.Join(d.cfg.Paths.LogDir, logging.LogFileName),
	}
	if st.Running {
		st.PID = os.Getpid()
	}
	return st
}

func (d *Daemon) releaseLock() {
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		d.logger.Debug("failed to remove pid file", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// sweepStaging removes staging directories no job still holds.
func (d *Daemon) sweepStaging(ctx context.Context) {
	jobs, err := d.store.List(ctx)
	if err != nil {
		d.logger.Warn("skipping staging sweep",
			logging.Error(err),
			logging.String(logging.FieldEventType, "staging_sweep_skipped"),
		)
		return
	}
	active := make(map[int64]struct{}, len(jobs))
	for _, job := range jobs {
		if job.HoldsStaging() {
			active[job.ID] = struct{}{}
		}
	}
	result := staging.CleanOrphaned(ctx, d.cfg.Paths.StagingDir, active, d.logger)
	if len(result.Removed) > 0 {
		d.logger.Info("staging sweep complete",
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)),
			logging.String(logging.FieldEventType, "staging_sweep"),
		)
	}
}

// ProbeResult describes a daemon observed from outside its process.
type ProbeResult struct {
	Running  bool
	PID      int
	LockPath string
}

// Probe reports whether some process holds the daemon lock for cfg.
func Probe(cfg *config.Config) (ProbeResult, error) {
	result := ProbeResult{LockPath: LockPath(cfg)}
	if _, err := os.Stat(result.LockPath); err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, err
	}
	lock := flock.New(result.LockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return result, fmt.Errorf("probe lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return result, nil
	}
	result.Running = true
	result.PID, _ = ReadPID(PIDPath(cfg))
	return result, nil
}

// ReadPID reads a pid file written by a running daemon.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}
