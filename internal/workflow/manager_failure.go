package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"bisub/internal/logging"
	"bisub/internal/queue"
	"bisub/internal/staging"
)

// applyTerminal records a failure or cancellation decided for job while it
// was in stage and reclaims its staging directory.
func (m *Manager) applyTerminal(ctx context.Context, logger *slog.Logger, job *queue.Job, stage queue.Status, decision Decision) {
	if logger == nil {
		logger = logging.NewNop()
	}
	job.SetFailed(stage, decision.ErrorKind, strings.TrimSpace(decision.Message), decision.ResumeFrom)
	if decision.Action == ActionCancel {
		job.CancelRequested = true
	}

	attrs := []logging.Attr{
		logging.String("failed_stage", string(stage)),
		logging.String("error_message", job.ErrorMessage),
		logging.String(logging.FieldErrorKind, job.ErrorKind),
		logging.Bool("partial_output", job.PartialOutput),
		logging.String("resume_from", string(job.ResumeFrom)),
	}
	if decision.Action == ActionCancel {
		logger.Info("job cancelled", logging.Args(append(attrs, logging.String(logging.FieldEventType, "job_cancelled"))...)...)
	} else {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, failureHint(job)))
		logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)
	}

	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not record stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	if decision.Reclaim {
		m.reclaimArtifacts(logger, job)
	}
	m.setLastJob(job)
}

func failureHint(job *queue.Job) string {
	if job.Resumable() {
		return "retry the job to resume from the " + string(job.ResumeFrom) + " checkpoint"
	}
	return "retry the job to restart it from extraction"
}

func (m *Manager) reclaimArtifacts(logger *slog.Logger, job *queue.Job) {
	root := job.StagingRoot(m.cfg.Paths.StagingDir)
	if err := staging.Reclaim(root); err != nil {
		logging.WarnWithContext(logger, "failed to reclaim staging directory", "staging_reclaim_failed",
			logging.Error(err),
			logging.String("staging_root", root),
			logging.String(logging.FieldErrorHint, "run bisub staging clean to remove it"),
		)
		return
	}
	logger.Debug("staging directory reclaimed", logging.String("staging_root", root))
}
