package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"bisub/internal/config"
	"bisub/internal/fileutil"
	"bisub/internal/logging"
	"bisub/internal/media/ffmpeg"
	"bisub/internal/queue"
	"bisub/internal/services"
	"bisub/internal/stage"
	"bisub/internal/staging"
)

// Muxer burns the published subtitles into a new copy of the input video.
type Muxer struct {
	cfg    *config.Config
	store  ProgressStore
	logger *slog.Logger
	muxer  VideoMuxer
}

// NewMuxer wires the muxing stage to ffmpeg.
func NewMuxer(cfg *config.Config, store ProgressStore, logger *slog.Logger) *Muxer {
	return NewMuxerWithDependencies(cfg, store, logger, ffmpeg.NewMuxer(cfg.Tools.FFmpeg, logger))
}

// NewMuxerWithDependencies allows injecting collaborators (used in tests).
func NewMuxerWithDependencies(cfg *config.Config, store ProgressStore, logger *slog.Logger, muxer VideoMuxer) *Muxer {
	return &Muxer{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "muxer"),
		muxer:  muxer,
	}
}

func (m *Muxer) Prepare(ctx context.Context, job *queue.Job) error {
	job.InitProgress("Muxing", "Checking subtitles")
	if err := requireFile("muxing", "stat subtitles", job.SubtitlePath); err != nil {
		return err
	}
	return requireFile("muxing", "stat input", job.InputPath)
}

func (m *Muxer) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, m.logger)

	dest := BurnedVideoPath(m.cfg.Paths.OutputDir, job)
	layout := staging.ForJob(job.StagingRoot(m.cfg.Paths.StagingDir))
	if err := layout.Ensure(); err != nil {
		return services.Wrap(services.ErrMux, "muxing", "prepare staging", layout.Root, err)
	}
	scratch := filepath.Join(layout.Root, filepath.Base(dest))
	style := ffmpeg.Style{
		FontSize:     job.Options.Style.FontSize,
		FontColor:    job.Options.Style.FontColor,
		OutlineColor: job.Options.Style.OutlineColor,
		OutlineWidth: job.Options.Style.OutlineWidth,
	}
	reportProgress(ctx, m.store, logger, job, "Muxing", "Burning subtitles into video", 10)
	if err := m.muxer.BurnIn(ctx, job.InputPath, job.SubtitlePath, scratch, style); err != nil {
		return err
	}
	if err := fileutil.MoveFile(scratch, dest); err != nil {
		return services.Wrap(services.ErrMux, "muxing", "publish video", dest, err)
	}
	job.OutputPath = dest
	job.SetProgressComplete("Muxing", "Subtitled video written")
	logger.Info("subtitles burned in",
		logging.String("output_path", dest),
		logging.String(logging.FieldEventType, "stage_output"),
	)
	return nil
}

func (m *Muxer) HealthCheck(context.Context) stage.Health {
	const name = "muxer"
	if m.muxer == nil {
		return stage.Unhealthy(name, "muxer not configured")
	}
	return stage.Healthy(name)
}

// BurnedVideoPath is where the subtitled copy of the job's input is written.
func BurnedVideoPath(outputDir string, job *queue.Job) string {
	return filepath.Join(outputDir, job.OutputStem()+".subtitled.mp4")
}
