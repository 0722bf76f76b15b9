package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewJob inserts a queued job for the given input.
func (s *Store) NewJob(ctx context.Context, inputPath string, inputBytes int64, opts Options) (*Job, error) {
	inputPath = strings.TrimSpace(inputPath)
	if inputPath == "" {
		return nil, errors.New("input path is required")
	}
	optionsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	timestamp := formatTime(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            input_path, input_bytes, options_json, status, created_at, updated_at,
            progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inputPath,
		inputBytes,
		string(optionsJSON),
		StatusQueued,
		timestamp,
		timestamp,
		"Queued",
		0.0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. It returns nil, nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	warningsJSON, err := marshalWarnings(job.Warnings)
	if err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET input_path = ?, input_bytes = ?, options_json = ?, status = ?,
             media_duration_ms = ?, audio_path = ?, source_language = ?, segments_json = ?,
             translations_json = ?, subtitle_path = ?, output_path = ?, warnings_json = ?,
             error_message = ?, error_kind = ?, failed_stage = ?, resume_from = ?,
             partial_output = ?, progress_stage = ?, progress_percent = ?, progress_message = ?,
             updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		job.InputPath,
		job.InputBytes,
		string(optionsJSON),
		job.Status,
		job.MediaDuration.Milliseconds(),
		nullableString(job.AudioPath),
		nullableString(job.SourceLanguage),
		nullableString(job.SegmentsJSON),
		nullableString(job.TranslationsJSON),
		nullableString(job.SubtitlePath),
		nullableString(job.OutputPath),
		warningsJSON,
		nullableString(job.ErrorMessage),
		nullableString(job.ErrorKind),
		nullableString(string(job.FailedStage)),
		nullableString(string(job.ResumeFrom)),
		boolToInt(job.PartialOutput),
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		formatTime(job.UpdatedAt),
		nullableTime(job.LastHeartbeat),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// UpdateProgress persists only the progress fields, leaving checkpoints untouched.
func (s *Store) UpdateProgress(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		formatTime(job.UpdatedAt),
		job.ID,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		query := baseQuery + ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, statusArgs(statuses)...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
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

// ClaimNext moves the oldest job waiting in any of the start statuses into
// the matching processing status and returns it. Jobs with a pending cancel
// are skipped. It returns nil, nil when nothing is claimable.
func (s *Store) ClaimNext(ctx context.Context, starts ...Status) (*Job, error) {
	ctx = ensureContext(ctx)
	if len(starts) == 0 {
		return nil, nil
	}
	for _, start := range starts {
		if _, ok := processingFor[start]; !ok {
			return nil, fmt.Errorf("status %q does not begin a stage", start)
		}
	}

	query := `SELECT id, status FROM jobs WHERE status IN (` + makePlaceholders(len(starts)) + `)
        AND cancel_requested = 0 ORDER BY created_at, id LIMIT 1`
	for {
		var (
			id     int64
			status Status
		)
		err := s.db.QueryRowContext(ctx, query, statusArgs(starts)...).Scan(&id, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select claimable job: %w", err)
		}

		now := formatTime(time.Now())
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET status = ?, last_heartbeat = ?, updated_at = ?
             WHERE id = ? AND status = ? AND cancel_requested = 0`,
			processingFor[status],
			now,
			now,
			id,
			status,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 1 {
			return s.GetByID(ctx, id)
		}
		// Another worker won the race; look again.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every job.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

// PurgeTerminal deletes completed and failed jobs last updated before cutoff.
func (s *Store) PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND updated_at < ?`,
		StatusCompleted,
		StatusFailed,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("purge terminal jobs: %w", err)
	}
	return res.RowsAffected()
}
