package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bisub/internal/config"
	"bisub/internal/language"
	"bisub/internal/logging"
	"bisub/internal/media/ffmpeg"
	"bisub/internal/media/ffprobe"
	"bisub/internal/queue"
	"bisub/internal/services"
	"bisub/internal/stage"
	"bisub/internal/staging"
)

// Extractor pulls the audio track out of the submitted video.
type Extractor struct {
	cfg       *config.Config
	store     ProgressStore
	logger    *slog.Logger
	probe     Prober
	extractor AudioExtractor
}

// NewExtractor wires the extraction stage to ffprobe and ffmpeg.
func NewExtractor(cfg *config.Config, store ProgressStore, logger *slog.Logger) *Extractor {
	return NewExtractorWithDependencies(cfg, store, logger,
		ffprobe.Runner(cfg.Tools.FFprobe),
		ffmpeg.NewExtractor(cfg.Tools.FFmpeg, logger),
	)
}

// NewExtractorWithDependencies allows injecting collaborators (used in tests).
func NewExtractorWithDependencies(cfg *config.Config, store ProgressStore, logger *slog.Logger, probe Prober, extractor AudioExtractor) *Extractor {
	return &Extractor{
		cfg:       cfg,
		store:     store,
		logger:    logging.NewComponentLogger(logger, "extractor"),
		probe:     probe,
		extractor: extractor,
	}
}

func (e *Extractor) Prepare(ctx context.Context, job *queue.Job) error {
	job.InitProgress("Extracting", "Inspecting input")
	job.ErrorMessage = ""
	return requireFile("extracting", "stat input", job.InputPath)
}

func (e *Extractor) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, e.logger)

	info, err := e.probe(ctx, job.InputPath)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExtraction, "extracting", "probe input", "ffprobe could not read the input", err)
	}
	if info.AudioStreamCount() == 0 {
		return services.Wrap(services.ErrValidation, "extracting", "probe input", "input has no audio stream", nil)
	}
	job.MediaDuration = info.Duration()
	if tag := info.AudioLanguage(); tag != "" && job.SourceLanguage == "" {
		job.SourceLanguage = tag
	}
	logger.Info("input inspected",
		logging.Duration("duration", job.MediaDuration),
		logging.Int("audio_streams", info.AudioStreamCount()),
		logging.String("audio_language", language.DisplayName(info.AudioLanguage())),
	)

	layout := staging.ForJob(job.StagingRoot(e.cfg.Paths.StagingDir))
	if err := layout.Ensure(); err != nil {
		return services.Wrap(services.ErrConfiguration, "extracting", "prepare staging", "staging directory is not writable", err)
	}
	reportProgress(ctx, e.store, logger, job, "Extracting", "Extracting audio", 20)

	if err := e.extractor.Extract(ctx, job.InputPath, layout.Audio); err != nil {
		return err
	}
	job.AudioPath = layout.Audio
	job.SetProgressComplete("Extracting", fmt.Sprintf("Audio extracted (%s)", job.MediaDuration.Round(time.Second)))
	logger.Info("audio extracted",
		logging.String("audio_path", layout.Audio),
		logging.String(logging.FieldEventType, "stage_output"),
	)
	return nil
}

func (e *Extractor) HealthCheck(context.Context) stage.Health {
	const name = "extractor"
	switch {
	case e.cfg == nil:
		return stage.Unhealthy(name, "configuration unavailable")
	case e.probe == nil || e.extractor == nil:
		return stage.Unhealthy(name, "collaborators not configured")
	case strings.TrimSpace(e.cfg.Paths.StagingDir) == "":
		return stage.Unhealthy(name, "staging directory not configured")
	}
	return stage.Healthy(name)
}
