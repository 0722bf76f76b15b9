package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"bisub/internal/config"
	"bisub/internal/language"
	"bisub/internal/logging"
	"bisub/internal/profiler"
	"bisub/internal/queue"
	"bisub/internal/services"
	"bisub/internal/services/whisperx"
	"bisub/internal/stage"
	"bisub/internal/staging"
	"bisub/internal/subtitles"
)

// RecognizerFactory returns the recognizer that loads model.
type RecognizerFactory func(model string) Recognizer

// Transcriber runs speech recognition over the extracted audio.
type Transcriber struct {
	cfg          *config.Config
	store        ProgressStore
	logger       *slog.Logger
	defaultModel string
	recognizer   RecognizerFactory
}

// NewTranscriber wires the recognition stage to WhisperX using the device
// and model the profile resolved.
func NewTranscriber(cfg *config.Config, profile profiler.Profile, store ProgressStore, logger *slog.Logger) *Transcriber {
	svc := whisperx.NewService(whisperx.Config{
		Command:   cfg.Tools.WhisperX,
		Model:     profile.Model,
		Device:    profile.Device,
		BatchSize: cfg.Recognition.BatchSize,
		VADMethod: cfg.Recognition.VADMethod,
		HFToken:   cfg.Recognition.HFToken,
	}, logger)
	factory := func(model string) Recognizer { return svc.WithModel(model) }
	return NewTranscriberWithDependencies(cfg, store, logger, profile.Model, factory)
}

// NewTranscriberWithDependencies allows injecting collaborators (used in tests).
func NewTranscriberWithDependencies(cfg *config.Config, store ProgressStore, logger *slog.Logger, defaultModel string, factory RecognizerFactory) *Transcriber {
	return &Transcriber{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "transcriber"),
		defaultModel: defaultModel,
		recognizer:   factory,
	}
}

func (t *Transcriber) Prepare(ctx context.Context, job *queue.Job) error {
	job.InitProgress("Recognizing", "Checking extracted audio")
	return requireFile("recognizing", "stat audio", job.AudioPath)
}

func (t *Transcriber) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, t.logger)

	model := strings.TrimSpace(job.Options.Model)
	if model == "" {
		model = t.defaultModel
	}
	hint := language.Auto
	if code, ok := language.Normalize(job.Options.SourceLanguage); ok && code != language.Auto {
		hint = code
	} else if code, ok := language.Normalize(job.SourceLanguage); ok && code != language.Auto {
		hint = code
	}

	layout := staging.ForJob(job.StagingRoot(t.cfg.Paths.StagingDir))
	reportProgress(ctx, t.store, logger, job, "Recognizing", fmt.Sprintf("Transcribing with %s", model), 10)
	logger.Info("recognition started",
		logging.String("model", model),
		logging.String("language_hint", hint),
	)

	transcript, err := t.recognizer(model).Recognize(ctx, job.AudioPath, layout.RecognizerDir, hint)
	if err != nil {
		return err
	}

	segments := transcript.Segments
	if segments == nil {
		segments = []subtitles.Segment{}
	}
	for i := range segments {
		segments[i].Index = i
	}
	encoded, err := json.Marshal(segments)
	if err != nil {
		return services.Wrap(services.ErrRecognition, "recognizing", "encode segments", "failed to encode segment checkpoint", err)
	}
	job.SegmentsJSON = string(encoded)
	job.SourceLanguage = language.ResolveSource(job.Options.SourceLanguage, transcript.Language, sampleText(segments))

	job.SetProgressComplete("Recognizing", fmt.Sprintf("Recognized %d segments", len(segments)))
	logger.Info("recognition completed",
		logging.Int("segments", len(segments)),
		logging.String("source_language", job.SourceLanguage),
		logging.String(logging.FieldEventType, "stage_output"),
	)
	if len(segments) == 0 {
		logging.WarnWithContext(logger, "no speech recognized", "empty_transcript",
			logging.String(logging.FieldErrorHint, "the subtitle file will be empty; check the audio track"),
		)
	}
	return nil
}

func (t *Transcriber) HealthCheck(context.Context) stage.Health {
	const name = "transcriber"
	if t.recognizer == nil {
		return stage.Unhealthy(name, "recognizer not configured")
	}
	if strings.TrimSpace(t.defaultModel) == "" {
		return stage.Unhealthy(name, "no recognition model resolved")
	}
	return stage.Healthy(name)
}

// sampleText joins the first segments for language detection.
func sampleText(segments []subtitles.Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		if b.Len() > 400 {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(seg.Text))
	}
	return b.String()
}
