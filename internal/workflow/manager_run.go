package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bisub/internal/logging"
	"bisub/internal/preflight"
	"bisub/internal/queue"
	"bisub/internal/services"
)

// Start runs preflight checks, recovers jobs left mid-stage by a previous
// run, and begins background processing with the configured worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stageOrder) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	m.mu.Unlock()

	logger := logging.NewComponentLogger(m.logger, "workflow-manager")
	if err := m.runPreflightChecks(ctx, logger); err != nil {
		m.setLastError(err)
		return err
	}

	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return fmt.Errorf("reset interrupted jobs: %w", err)
	}
	if reset > 0 {
		logger.Info("returned interrupted jobs to their last checkpoint",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "jobs_recovered"),
		)
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers + 1)
	m.mu.Unlock()

	for i := 1; i <= m.workers; i++ {
		go m.runWorker(runCtx, fmt.Sprintf("worker-%d", i))
	}
	go m.runMaintenance(runCtx)
	if err := m.purger.Start(); err != nil {
		logger.Warn("purge schedule disabled",
			logging.Error(err),
			logging.String(logging.FieldEventType, "purge_schedule_invalid"),
			logging.String(logging.FieldErrorHint, "fix workflow.purge_schedule"),
		)
	}

	logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.String("device", m.profile.Device),
		logging.String("model", m.profile.Model),
	)
	return nil
}

// Stop terminates background processing and waits for in-flight stages to
// hand their jobs back.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	m.purger.Stop()
	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, name string) {
	defer m.wg.Done()
	ctx = services.WithWorker(ctx, name)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(m.logger, "workflow-"+name))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, holds, err := m.claim(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		m.processJob(ctx, logger, job, holds)
	}
}

// claim takes the accelerator when it is free so the worker may pick up a
// recognition job; otherwise it only claims stages that do not need it. The
// returned flag reports whether the caller now holds the accelerator.
func (m *Manager) claim(ctx context.Context) (*queue.Job, bool, error) {
	holds := m.accelerator.TryAcquire(1)
	job, err := m.store.ClaimNext(ctx, m.claimable(holds)...)
	if err != nil || job == nil {
		if holds {
			m.accelerator.Release(1)
		}
		return nil, false, err
	}
	if holds {
		if stg, ok := m.stageForProcessing(job.Status); !ok || !stg.exclusive {
			m.accelerator.Release(1)
			holds = false
		}
	}
	return job, holds, nil
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	m.waitForJobOrShutdown(ctx)
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	wait := m.pollInterval
	if wait <= 0 {
		wait = 10 * time.Millisecond
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

// runMaintenance reclaims jobs whose heartbeat expired and settles
// cancellations that arrived while a stage was running.
func (m *Manager) runMaintenance(ctx context.Context) {
	defer m.wg.Done()
	logger := logging.NewComponentLogger(m.logger, "workflow-maintenance")
	for {
		if err := m.heartbeat.reclaimStale(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("reclaim stale processing failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		if err := m.settleCancellations(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("cancellation sweep failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "cancel_sweep_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.maintenanceInterval()):
		}
	}
}

func (m *Manager) maintenanceInterval() time.Duration {
	if m.pollInterval > 0 {
		return m.pollInterval
	}
	return 50 * time.Millisecond
}

func (m *Manager) settleCancellations(ctx context.Context, logger *slog.Logger) error {
	pending, err := m.store.PendingCancellations(ctx)
	if err != nil {
		return err
	}
	for _, job := range pending {
		if m.isActive(job.ID) {
			continue
		}
		decision := Decide(*job, Event{Kind: EventCancelRequested, Stage: job.Status})
		m.applyTerminal(ctx, logging.WithContext(services.WithJobID(ctx, job.ID), logger), job, job.Status, decision)
	}
	return nil
}

func (m *Manager) runPreflightChecks(ctx context.Context, logger *slog.Logger) error {
	results := m.preflight(ctx, m.cfg)
	var failures []string
	for _, r := range results {
		switch {
		case r.Passed:
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
		case r.Advisory:
			logging.WarnWithContext(logger, "preflight check failed (advisory)", "preflight_advisory",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "processing continues with reduced functionality"),
			)
		default:
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"),
			)
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if blocking := preflight.Blocking(results); len(blocking) > 0 {
		return services.Wrap(services.ErrConfiguration, "preflight", "run checks", strings.Join(failures, "; "), nil)
	}
	return nil
}
