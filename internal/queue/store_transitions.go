package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// CancelOutcome describes how a cancel request was applied.
type CancelOutcome int

const (
	// CancelNotFound means no job has the requested identifier.
	CancelNotFound CancelOutcome = iota
	// CancelApplied means the job was waiting between stages and is now failed.
	CancelApplied
	// CancelDeferred means a stage is in flight; the job stops at the next boundary.
	CancelDeferred
	// CancelAlreadyTerminal means the job had already completed or failed.
	CancelAlreadyTerminal
)

// rollbackCase renders the CASE expression that maps processing statuses to
// their checkpoint status, plus its bind arguments.
func rollbackCase() (string, []any) {
	processing := make([]Status, 0, len(stageRollback))
	for status := range stageRollback {
		processing = append(processing, status)
	}
	sort.Slice(processing, func(i, j int) bool { return processing[i] < processing[j] })

	var b strings.Builder
	args := make([]any, 0, len(processing)*2)
	b.WriteString("CASE status")
	for _, status := range processing {
		b.WriteString(" WHEN ? THEN ?")
		args = append(args, status, stageRollback[status])
	}
	b.WriteString(" ELSE status END")
	return b.String(), args
}

func processingArgs() []any {
	args := make([]any, 0, len(stageRollback))
	for status := range stageRollback {
		args = append(args, status)
	}
	return args
}

// ResetStuckProcessing returns every in-flight job to the checkpoint its
// stage started from. It is used at daemon start when no worker can still own
// a job.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	caseExpr, caseArgs := rollbackCase()
	args := append([]any{}, caseArgs...)
	args = append(args, formatTime(time.Now()))
	args = append(args, processingArgs()...)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = `+caseExpr+`,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(stageRollback))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := formatTime(time.Now())
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns jobs whose heartbeat expired to the
// checkpoint their stage started from, so the stage re-runs without
// recomputing earlier stages.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	caseExpr, caseArgs := rollbackCase()
	args := append([]any{}, caseArgs...)
	args = append(args, formatTime(time.Now()))
	args = append(args, processingArgs()...)
	args = append(args, formatTime(cutoff))
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
        SET status = `+caseExpr+`,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (`+makePlaceholders(len(stageRollback))+`)
          AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to the checkpoint recorded at failure
// time (or to queued when none is usable). With no ids every failed job is
// retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE jobs
        SET status = COALESCE(resume_from, ?), progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, error_kind = NULL, failed_stage = NULL,
            resume_from = NULL, partial_output = 0, cancel_requested = 0, updated_at = ?
        WHERE status = ?`
	args := []any{StatusQueued, formatTime(time.Now()), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// RequestCancel stops a job. Jobs waiting between stages fail immediately;
// jobs inside a stage are flagged and stop at the next stage boundary.
func (s *Store) RequestCancel(ctx context.Context, id int64) (CancelOutcome, error) {
	waiting := make([]Status, 0, len(processingFor))
	for start := range processingFor {
		waiting = append(waiting, start)
	}

	for attempt := 0; attempt < 3; attempt++ {
		now := formatTime(time.Now())
		args := []any{StatusFailed, CancelReason, "cancelled", CancelReason, now, id}
		args = append(args, statusArgs(waiting)...)
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs
            SET status = ?, error_message = ?, error_kind = ?, failed_stage = status, resume_from = NULL,
                progress_stage = 'Failed', progress_percent = 0, progress_message = ?,
                cancel_requested = 1, last_heartbeat = NULL, updated_at = ?
            WHERE id = ? AND status IN (`+makePlaceholders(len(waiting))+`)`,
			args...,
		)
		if err != nil {
			return CancelNotFound, fmt.Errorf("cancel waiting job: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return CancelApplied, nil
		}

		args = []any{now, id}
		args = append(args, processingArgs()...)
		res, err = s.execWithRetry(
			ctx,
			`UPDATE jobs SET cancel_requested = 1, updated_at = ?
            WHERE id = ? AND status IN (`+makePlaceholders(len(stageRollback))+`)`,
			args...,
		)
		if err != nil {
			return CancelNotFound, fmt.Errorf("flag running job: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return CancelDeferred, nil
		}

		job, err := s.GetByID(ctx, id)
		if err != nil {
			return CancelNotFound, err
		}
		if job == nil {
			return CancelNotFound, nil
		}
		if IsTerminal(job.Status) {
			return CancelAlreadyTerminal, nil
		}
		// The job moved between the two updates; try again.
	}
	return CancelNotFound, errors.New("cancel: job kept changing status")
}

// CancelRequested reports whether a cancel is pending for the job.
func (s *Store) CancelRequested(ctx context.Context, id int64) (bool, error) {
	var flag int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT cancel_requested FROM jobs WHERE id = ?`, id).Scan(&flag); err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// PendingCancellations returns non-terminal jobs waiting between stages with a
// cancel flag set. These are jobs whose stage finished after the flag was
// raised.
func (s *Store) PendingCancellations(ctx context.Context) ([]*Job, error) {
	waiting := make([]Status, 0, len(processingFor))
	for start := range processingFor {
		waiting = append(waiting, start)
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE cancel_requested = 1 AND status IN (`+makePlaceholders(len(waiting))+`) ORDER BY id`,
		statusArgs(waiting)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending cancellations: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
