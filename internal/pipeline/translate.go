package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bisub/internal/config"
	"bisub/internal/language"
	"bisub/internal/logging"
	"bisub/internal/queue"
	"bisub/internal/services"
	"bisub/internal/stage"
	"bisub/internal/subtitles"
	"bisub/internal/translation"
)

// TranslationStage splits recognized segments to display length and
// translates them. Failed units are recorded, not returned as errors; the
// synchronizer degrades their entries to source text.
type TranslationStage struct {
	cfg        *config.Config
	store      ProgressStore
	logger     *slog.Logger
	translator Translator
}

// NewTranslationStage wires the translating stage to the configured endpoint.
func NewTranslationStage(cfg *config.Config, store ProgressStore, logger *slog.Logger) *TranslationStage {
	return NewTranslationStageWithDependencies(cfg, store, logger, translation.NewClientFromConfig(cfg.Translation, logger))
}

// NewTranslationStageWithDependencies allows injecting collaborators (used in tests).
func NewTranslationStageWithDependencies(cfg *config.Config, store ProgressStore, logger *slog.Logger, translator Translator) *TranslationStage {
	return &TranslationStage{
		cfg:        cfg,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "translator"),
		translator: translator,
	}
}

func (s *TranslationStage) Prepare(ctx context.Context, job *queue.Job) error {
	job.InitProgress("Translating", "Loading recognized segments")
	if _, err := subtitles.ParseMode(job.Options.Mode); err != nil {
		return services.Wrap(services.ErrValidation, "translating", "parse mode", err.Error(), nil)
	}
	_, err := decodeSegments("translating", job)
	return err
}

func (s *TranslationStage) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)

	raw, err := decodeSegments("translating", job)
	if err != nil {
		return err
	}
	mode, err := subtitles.ParseMode(job.Options.Mode)
	if err != nil {
		return services.Wrap(services.ErrValidation, "translating", "parse mode", err.Error(), nil)
	}
	segments, _ := subtitles.Split(raw, nil, subtitles.OptionsFromConfig(s.cfg.Subtitles))

	source := job.SourceLanguage
	if source == "" {
		source = language.ResolveSource(job.Options.SourceLanguage, "", sampleText(segments))
	}
	cp := TranslationCheckpoint{Source: source, Segments: segments}

	switch {
	case !mode.NeedsTranslation():
		logger.Info("translation skipped", logging.String("mode", mode.Name()))
	case len(segments) == 0:
		logger.Info("translation skipped", logging.String("reason", "no segments"))
	default:
		cp.Target = language.ChooseTarget(source, job.Options.TargetLanguage)
		results, err := s.translate(ctx, job, logger, segments, cp.Source, cp.Target)
		if err != nil {
			return err
		}
		cp.Results = results
	}

	encoded, err := json.Marshal(cp)
	if err != nil {
		return services.Wrap(services.ErrTranslation, "translating", "encode checkpoint", "failed to encode translation checkpoint", err)
	}
	job.TranslationsJSON = string(encoded)
	if job.Options.TargetLanguage == "" && cp.Target != "" {
		job.Options.TargetLanguage = cp.Target
	}

	failed := 0
	for _, r := range cp.Results {
		if !r.OK() {
			failed++
		}
	}
	job.SetProgressComplete("Translating", fmt.Sprintf("Translated %d of %d segments", len(cp.Results)-failed, len(cp.Results)))
	logger.Info("translation completed",
		logging.Int("segments", len(segments)),
		logging.Int("failed", failed),
		logging.String("source_language", cp.Source),
		logging.String("target_language", cp.Target),
		logging.String(logging.FieldEventType, "stage_output"),
	)
	return nil
}

func (s *TranslationStage) translate(ctx context.Context, job *queue.Job, logger *slog.Logger, segments []subtitles.Segment, source, target string) ([]translation.Result, error) {
	if language.ToISO2(source) == language.ToISO2(target) && source != "" {
		logger.Info("source and target languages match; reusing source text",
			logging.String("language", source),
		)
		results := make([]translation.Result, len(segments))
		for i, seg := range segments {
			results[i] = translation.Result{Index: seg.Index, Text: seg.Text, Status: translation.StatusOK}
		}
		return results, nil
	}

	units := make([]translation.Unit, len(segments))
	for i, seg := range segments {
		units[i] = translation.Unit{
			Index:  seg.Index,
			Text:   strings.TrimSpace(seg.Text),
			Source: source,
			Target: target,
		}
	}
	reportProgress(ctx, s.store, logger, job, "Translating",
		fmt.Sprintf("Translating %d segments to %s", len(units), language.DisplayName(target)), 10)

	results, err := s.translator.Translate(ctx, units)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logging.WarnWithContext(logger, "translation ran out of time; entries keep source text", "translation_deadline",
				logging.Error(err),
				logging.Int("segments", len(units)),
				logging.String(logging.FieldErrorHint, "raise workflow.stage_timeout_base or the translating timeout factor"),
			)
			return failedResults(units, "translation deadline exceeded"), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTranslation, "translating", "translate", "translation client failed", err)
	}
	return results, nil
}

func failedResults(units []translation.Unit, reason string) []translation.Result {
	results := make([]translation.Result, len(units))
	for i, u := range units {
		results[i] = translation.Result{Index: u.Index, Status: translation.StatusFailed, Error: reason}
	}
	return results
}

func (s *TranslationStage) HealthCheck(context.Context) stage.Health {
	const name = "translator"
	if s.translator == nil {
		return stage.Unhealthy(name, "translation client not configured")
	}
	if s.cfg != nil && (strings.TrimSpace(s.cfg.Translation.AppID) == "" || strings.TrimSpace(s.cfg.Translation.AppKey) == "") {
		return stage.Unhealthy(name, "translation credentials missing; bilingual entries will degrade to source text")
	}
	return stage.Healthy(name)
}
