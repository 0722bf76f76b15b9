package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"bisub/internal/config"
	"bisub/internal/language"
	"bisub/internal/logging"
	"bisub/internal/media/ffmpeg"
	"bisub/internal/profiler"
	"bisub/internal/queue"
	"bisub/internal/services"
	"bisub/internal/subtitles"
)

// SupportedExtensions lists the video containers Submit accepts.
var SupportedExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm"}

// JobOptions are the per-job choices made at submission. Zero values take
// the configured defaults.
type JobOptions struct {
	Mode           string
	BurnIn         *bool
	SourceLanguage string
	TargetLanguage string
	Model          string
	Style          queue.Style
}

// Submit validates input and options and queues a job. It returns the new
// job's id.
func (m *Manager) Submit(ctx context.Context, input string, opts JobOptions) (int64, error) {
	path, size, err := validateInput(input, m.profile.MaxInputBytes)
	if err != nil {
		return 0, err
	}
	resolved, err := ResolveOptions(m.cfg, opts)
	if err != nil {
		return 0, err
	}
	job, err := m.store.NewJob(ctx, path, size, resolved)
	if err != nil {
		return 0, fmt.Errorf("queue job: %w", err)
	}
	logging.NewComponentLogger(m.logger, "workflow-submit").Info("job submitted",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("input", path),
		logging.String("mode", resolved.Mode),
		logging.Bool("burn_in", resolved.BurnIn),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	return job.ID, nil
}

func validateInput(input string, maxBytes int64) (string, int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", 0, services.Wrap(services.ErrValidation, "submit", "validate input", "input path is required", nil)
	}
	path, err := config.ExpandPath(input)
	if err != nil {
		return "", 0, services.Wrap(services.ErrValidation, "submit", "expand input", input, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(SupportedExtensions, ext) {
		return "", 0, services.Wrap(services.ErrValidation, "submit", "validate input",
			fmt.Sprintf("unsupported file type %q (supported: %s)", ext, strings.Join(SupportedExtensions, " ")), nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, services.Wrap(services.ErrNotFound, "submit", "stat input", path, err)
	}
	if info.IsDir() {
		return "", 0, services.Wrap(services.ErrValidation, "submit", "validate input", path+" is a directory", nil)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return "", 0, services.Wrap(services.ErrValidation, "submit", "validate input",
			fmt.Sprintf("input is %d MB; the limit is %d MB", info.Size()>>20, maxBytes>>20), nil)
	}
	return path, info.Size(), nil
}

// ResolveOptions fills unset options from cfg and validates the result.
func ResolveOptions(cfg *config.Config, opts JobOptions) (queue.Options, error) {
	invalid := func(message string) error {
		return services.Wrap(services.ErrValidation, "submit", "validate options", message, nil)
	}

	modeName := strings.TrimSpace(opts.Mode)
	if modeName == "" {
		modeName = cfg.Subtitles.Mode
	}
	mode, err := subtitles.ParseMode(modeName)
	if err != nil {
		return queue.Options{}, invalid(fmt.Sprintf("%v (choose one of %s)", err, strings.Join(subtitles.Modes(), ", ")))
	}
	burnIn := cfg.Subtitles.BurnIn
	if opts.BurnIn != nil {
		burnIn = *opts.BurnIn
	}

	source := firstNonEmpty(opts.SourceLanguage, cfg.Translation.SourceLanguage, language.Auto)
	sourceCode, ok := language.Normalize(source)
	if !ok {
		return queue.Options{}, invalid(fmt.Sprintf("unknown source language %q", source))
	}
	target := firstNonEmpty(opts.TargetLanguage, cfg.Translation.TargetLanguage)
	targetCode := ""
	if target != "" {
		code, ok := language.Normalize(target)
		if !ok {
			return queue.Options{}, invalid(fmt.Sprintf("unknown target language %q", target))
		}
		if code != language.Auto {
			targetCode = code
		}
	}

	model := strings.TrimSpace(opts.Model)
	if model != "" && !profiler.KnownModel(model) {
		names := make([]string, 0, len(profiler.Ladder))
		for _, rung := range profiler.Ladder {
			names = append(names, rung.Name)
		}
		return queue.Options{}, invalid(fmt.Sprintf("unknown model %q (choose one of %s)", model, strings.Join(names, ", ")))
	}

	style := queue.Style{
		FontSize:     opts.Style.FontSize,
		FontColor:    firstNonEmpty(opts.Style.FontColor, cfg.Subtitles.Style.FontColor),
		OutlineColor: firstNonEmpty(opts.Style.OutlineColor, cfg.Subtitles.Style.OutlineColor),
		OutlineWidth: opts.Style.OutlineWidth,
	}
	if style.FontSize <= 0 {
		style.FontSize = cfg.Subtitles.Style.FontSize
	}
	if style.OutlineWidth <= 0 {
		style.OutlineWidth = cfg.Subtitles.Style.OutlineWidth
	}
	if burnIn {
		if _, err := ffmpeg.ASSColor(style.FontColor); err != nil {
			return queue.Options{}, invalid(err.Error())
		}
		if _, err := ffmpeg.ASSColor(style.OutlineColor); err != nil {
			return queue.Options{}, invalid(err.Error())
		}
	}

	return queue.Options{
		Mode:           mode.Name(),
		BurnIn:         burnIn,
		SourceLanguage: sourceCode,
		TargetLanguage: targetCode,
		Model:          model,
		Style:          style,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Cancel stops a job. A job waiting between stages fails immediately; a job
// inside a stage stops when that stage returns.
func (m *Manager) Cancel(ctx context.Context, id int64) error {
	outcome, err := m.store.RequestCancel(ctx, id)
	if err != nil {
		return err
	}
	logger := logging.WithContext(services.WithJobID(ctx, id), logging.NewComponentLogger(m.logger, "workflow-cancel"))
	switch outcome {
	case queue.CancelNotFound:
		return services.Wrap(services.ErrNotFound, "cancel", "load job", fmt.Sprintf("job %d not found", id), nil)
	case queue.CancelAlreadyTerminal:
		return services.Wrap(services.ErrValidation, "cancel", "request cancel", fmt.Sprintf("job %d already finished", id), nil)
	case queue.CancelApplied:
		job, err := m.store.GetByID(ctx, id)
		if err == nil && job != nil {
			m.reclaimArtifacts(logger, job)
		}
		logger.Info("job cancelled", logging.String(logging.FieldEventType, "job_cancelled"))
	case queue.CancelDeferred:
		logger.Info("cancellation requested; job stops after its current stage",
			logging.String(logging.FieldEventType, "job_cancel_deferred"))
	}
	return nil
}

// Retry moves failed jobs back to their resume checkpoint. With no ids every
// failed job is retried.
func (m *Manager) Retry(ctx context.Context, ids ...int64) (int64, error) {
	n, err := m.store.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	logging.NewComponentLogger(m.logger, "workflow-retry").Info("failed jobs requeued",
		logging.Int64("count", n),
		logging.String(logging.FieldEventType, "jobs_retried"),
	)
	return n, nil
}
