package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"bisub/internal/config"
	"bisub/internal/logging"
	"bisub/internal/queue"
	"bisub/internal/services"
	"bisub/internal/stage"
	"bisub/internal/subtitles"
)

// Synchronizer renders the subtitle document and publishes it to the output
// directory. The published file is the job's deliverable unless burn-in was
// requested.
type Synchronizer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewSynchronizer constructs the synchronizing stage.
func NewSynchronizer(cfg *config.Config, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{cfg: cfg, logger: logging.NewComponentLogger(logger, "synchronizer")}
}

func (s *Synchronizer) Prepare(ctx context.Context, job *queue.Job) error {
	job.InitProgress("Synchronizing", "Loading translations")
	_, err := DecodeTranslations(job)
	return err
}

func (s *Synchronizer) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)

	cp, err := DecodeTranslations(job)
	if err != nil {
		return err
	}
	mode, err := subtitles.ParseMode(job.Options.Mode)
	if err != nil {
		return services.Wrap(services.ErrValidation, "synchronizing", "parse mode", err.Error(), nil)
	}
	doc, err := subtitles.Synchronize(cp.Segments, cp.Results, mode, subtitles.OptionsFromConfig(s.cfg.Subtitles))
	if err != nil {
		return err
	}

	dest := SubtitlePath(s.cfg.Paths.OutputDir, job, mode)
	if err := doc.WriteFile(dest); err != nil {
		return services.Wrap(services.ErrTransient, "synchronizing", "write subtitles", "failed to write subtitle file", err)
	}
	job.SubtitlePath = dest
	if !job.Options.BurnIn {
		job.OutputPath = dest
	}

	job.ClearWarnings(string(queue.StatusSynchronizing))
	for _, d := range doc.Degraded {
		job.AddWarning(queue.Warning{
			SegmentIndex: d.SegmentIndex,
			Stage:        string(queue.StatusSynchronizing),
			Message:      fmt.Sprintf("segment %d shown without translation: %s", d.SegmentIndex, d.Reason),
		})
	}
	for _, issue := range subtitles.ValidateSRTContent(dest, job.MediaDuration) {
		logging.WarnWithContext(logger, "subtitle validation issue", "subtitle_validation",
			logging.String("issue", issue),
			logging.String("subtitle_path", dest),
			logging.String(logging.FieldErrorHint, "inspect the subtitle file; playback may still work"),
		)
	}

	job.SetProgressComplete("Synchronizing", fmt.Sprintf("Wrote %d entries", len(doc.Entries)))
	logger.Info("subtitles synchronized",
		logging.Int("entries", len(doc.Entries)),
		logging.Int("degraded", len(doc.Degraded)),
		logging.String("mode", doc.Mode),
		logging.String("subtitle_path", dest),
		logging.String(logging.FieldEventType, "stage_output"),
	)
	return nil
}

func (s *Synchronizer) HealthCheck(context.Context) stage.Health {
	const name = "synchronizer"
	if s.cfg == nil || strings.TrimSpace(s.cfg.Paths.OutputDir) == "" {
		return stage.Unhealthy(name, "output directory not configured")
	}
	return stage.Healthy(name)
}

// SubtitlePath is where the job's subtitle file is published.
func SubtitlePath(outputDir string, job *queue.Job, mode subtitles.Mode) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s.%s.srt", job.OutputStem(), mode.Name()))
}
