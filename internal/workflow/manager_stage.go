package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bisub/internal/logging"
	"bisub/internal/queue"
	"bisub/internal/services"
	"bisub/internal/stage"
)

func (m *Manager) processJob(ctx context.Context, workerLogger *slog.Logger, job *queue.Job, holdsAccelerator bool) {
	if holdsAccelerator {
		defer m.accelerator.Release(1)
	}
	m.markActive(job.ID)
	defer m.markInactive(job.ID)

	stg, ok := m.stageForProcessing(job.Status)
	if !ok {
		workerLogger.Warn("no stage configured for status",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String("status", string(job.Status)),
		)
		m.release(context.WithoutCancel(ctx), workerLogger, job, job.Status)
		m.waitForJobOrShutdown(ctx)
		return
	}

	requestID := uuid.NewString()
	stageCtx := stageContext(ctx, stg.processingStatus, job, requestID)
	logger := m.stageLogger(stageCtx)
	m.setLastJob(job)
	m.executeStage(stageCtx, logger, stg, job)
}

func (m *Manager) executeStage(ctx context.Context, logger *slog.Logger, stg pipelineStage, job *queue.Job) {
	stageStart := time.Now()
	processing := stg.processingStatus
	maxAttempts := m.cfg.Workflow.StageAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("handler", stg.name),
		logging.String("input", strings.TrimSpace(job.InputPath)),
		logging.Bool("exclusive", stg.exclusive),
	)

	for attempt := 1; ; attempt++ {
		attemptLogger := logger.With(logging.Int(logging.FieldAttempt, attempt))
		err := m.runAttempt(ctx, stg, job)

		var decision Decision
		if err == nil {
			cancelled, cerr := m.store.CancelRequested(ctx, job.ID)
			if cerr != nil {
				attemptLogger.Warn("could not read cancel flag", logging.Error(cerr))
			}
			job.CancelRequested = cancelled
			decision = Decide(*job, Event{Kind: EventStageSucceeded, Stage: processing, Attempt: attempt, MaxAttempts: maxAttempts})
		} else {
			decision = Decide(*job, Event{Kind: EventStageFailed, Stage: processing, Err: err, Attempt: attempt, MaxAttempts: maxAttempts})
		}

		switch decision.Action {
		case ActionRetry:
			delay := m.retryDelay(attempt)
			details := services.Details(err)
			logging.WarnWithContext(attemptLogger, "stage attempt failed; retrying", "stage_retry",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, details.Kind),
				logging.String(logging.FieldErrorHint, details.Hint),
				logging.Duration("backoff", delay),
				logging.Int("max_attempts", maxAttempts),
			)
			if serr := m.sleep(ctx, delay); serr != nil {
				m.release(context.WithoutCancel(ctx), attemptLogger, job, processing)
				return
			}
			continue
		case ActionAdvance:
			m.advance(context.WithoutCancel(ctx), attemptLogger, job, decision, time.Since(stageStart))
		case ActionRelease:
			attemptLogger.Debug("stage interrupted by shutdown")
			m.release(context.WithoutCancel(ctx), attemptLogger, job, processing)
		default:
			if err != nil {
				m.setLastError(err)
			}
			m.applyTerminal(context.WithoutCancel(ctx), attemptLogger, job, processing, decision)
		}
		return
	}
}

// runAttempt prepares and executes one attempt of stg under the stage's
// wall-clock ceiling.
func (m *Manager) runAttempt(ctx context.Context, stg pipelineStage, job *queue.Job) error {
	timeout := m.cfg.StageTimeout(string(stg.processingStatus), job.MediaDuration)
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	err := m.prepareAndExecute(attemptCtx, stg.handler, job)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, string(stg.processingStatus), stg.name,
			fmt.Sprintf("stage exceeded its %s limit", timeout.Round(time.Second)), err)
	}
	return err
}

func (m *Manager) prepareAndExecute(ctx context.Context, handler stage.Handler, job *queue.Job) error {
	if err := handler.Prepare(ctx, job); err != nil {
		return err
	}
	if err := m.store.Update(ctx, job); err != nil {
		return services.Wrap(services.ErrTransient, job.Status.StageKey(), "persist preparation", "", err)
	}
	return m.executeWithHeartbeat(ctx, handler, job)
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job) error {
	stop := m.heartbeat.keepAlive(ctx, job.ID)
	defer stop()
	return handler.Execute(ctx, job)
}

func (m *Manager) retryDelay(attempt int) time.Duration {
	base := time.Duration(m.cfg.Workflow.StageRetryBackoff) * time.Second
	if base <= 0 {
		return 0
	}
	return base * time.Duration(attempt)
}

func (m *Manager) advance(ctx context.Context, logger *slog.Logger, job *queue.Job, decision Decision, elapsed time.Duration) {
	job.Status = decision.Next
	job.LastHeartbeat = nil
	if job.Status == queue.StatusCompleted {
		job.SetProgressComplete(stageLabel(queue.StatusCompleted), completionMessage(job))
	}
	if err := m.store.Update(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		logger.Error("failed to persist stage result",
			logging.Error(wrapped),
			logging.String(logging.FieldEventType, "stage_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access; the stage re-runs after heartbeat reclaim"),
		)
		m.setLastError(wrapped)
		return
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(job.Status)),
		logging.String("progress_message", strings.TrimSpace(job.ProgressMessage)),
		logging.Duration("stage_duration", elapsed),
	)
	if decision.Reclaim {
		m.reclaimArtifacts(logger, job)
	}
	if job.Status == queue.StatusCompleted {
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.String("output_path", job.OutputPath),
			logging.Int("warnings", len(job.Warnings)),
		)
	}
	m.setLastJob(job)
}

// release hands a job back to the start status of the stage it was in so a
// later claim re-runs the stage from its input checkpoint.
func (m *Manager) release(ctx context.Context, logger *slog.Logger, job *queue.Job, processing queue.Status) {
	if start, ok := queue.RollbackStatusFor(processing); ok {
		job.Status = start
	}
	job.LastHeartbeat = nil
	job.ProgressStage = stageLabel(job.Status)
	job.ProgressMessage = "Interrupted; waiting to resume"
	job.ProgressPercent = 0
	if err := m.store.Update(ctx, job); err != nil {
		logger.Warn("failed to release job; heartbeat reclaim will recover it",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_release_failed"),
		)
	}
}

func completionMessage(job *queue.Job) string {
	if n := len(job.Warnings); n > 0 {
		return fmt.Sprintf("Completed with %d degraded segment(s)", n)
	}
	return "Completed"
}

func (m *Manager) markActive(id int64) {
	m.mu.Lock()
	m.active[id] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) markInactive(id int64) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *Manager) isActive(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[id]
	return ok
}
