package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"bisub/internal/logging"
	"bisub/internal/media/ffmpeg"
	"bisub/internal/media/ffprobe"
	"bisub/internal/queue"
	"bisub/internal/services"
	"bisub/internal/services/whisperx"
	"bisub/internal/subtitles"
	"bisub/internal/translation"
)

// AudioExtractor writes a mono audio track of input to dest.
type AudioExtractor interface {
	Extract(ctx context.Context, input, dest string) error
}

// Recognizer transcribes an audio file.
type Recognizer interface {
	Recognize(ctx context.Context, source, outputDir, languageHint string) (whisperx.Transcript, error)
}

// Translator translates units, returning one result per unit in order.
type Translator interface {
	Translate(ctx context.Context, units []translation.Unit) ([]translation.Result, error)
}

// VideoMuxer burns a subtitle file into a copy of video.
type VideoMuxer interface {
	BurnIn(ctx context.Context, video, subtitlePath, dest string, style ffmpeg.Style) error
}

// ProgressStore persists mid-stage progress. *queue.Store satisfies it.
type ProgressStore interface {
	UpdateProgress(ctx context.Context, job *queue.Job) error
}

// Prober inspects media files.
type Prober = ffprobe.Func

// TranslationCheckpoint is the translating stage's output. Segments are the
// recognized segments after splitting; Results are keyed by their indices.
type TranslationCheckpoint struct {
	Source   string               `json:"source"`
	Target   string               `json:"target,omitempty"`
	Segments []subtitles.Segment  `json:"segments"`
	Results  []translation.Result `json:"results,omitempty"`
}

func decodeSegments(stageName string, job *queue.Job) ([]subtitles.Segment, error) {
	if strings.TrimSpace(job.SegmentsJSON) == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "load segments", "job has no recognized segments; recognition must complete first", nil)
	}
	var segments []subtitles.Segment
	if err := json.Unmarshal([]byte(job.SegmentsJSON), &segments); err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "decode segments", "segment checkpoint is corrupt", err)
	}
	return segments, nil
}

// DecodeTranslations reads the translating stage's checkpoint from job.
func DecodeTranslations(job *queue.Job) (TranslationCheckpoint, error) {
	var cp TranslationCheckpoint
	if strings.TrimSpace(job.TranslationsJSON) == "" {
		return cp, services.Wrap(services.ErrValidation, "synchronizing", "load translations", "job has no translation checkpoint; translation must complete first", nil)
	}
	if err := json.Unmarshal([]byte(job.TranslationsJSON), &cp); err != nil {
		return cp, services.Wrap(services.ErrValidation, "synchronizing", "decode translations", "translation checkpoint is corrupt", err)
	}
	return cp, nil
}

func requireFile(stageName, operation, path string) error {
	if strings.TrimSpace(path) == "" {
		return services.Wrap(services.ErrValidation, stageName, operation, "path not recorded on job", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrNotFound, stageName, operation, path, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, stageName, operation, path+" is a directory", nil)
	}
	return nil
}

func reportProgress(ctx context.Context, store ProgressStore, logger *slog.Logger, job *queue.Job, stageLabel, message string, percent float64) {
	job.SetProgress(stageLabel, message, percent)
	if store == nil {
		return
	}
	if err := store.UpdateProgress(ctx, job); err != nil {
		logger.Warn("failed to persist progress",
			logging.Error(err),
			logging.String(logging.FieldEventType, "progress_persist_failed"),
		)
	}
}
