package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

var (
	validDevices       = map[string]struct{}{"auto": {}, "cpu": {}, "cuda": {}}
	validSubtitleModes = map[string]struct{}{"bilingual": {}, "source-only": {}, "translated-only": {}}
	validLogLevels     = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEnvironment(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEnvironment() error {
	if _, ok := validDevices[c.Environment.Device]; !ok {
		return fmt.Errorf("environment.device must be one of auto, cpu, cuda (got %q)", c.Environment.Device)
	}
	if c.Environment.MemoryBudgetMB < 0 {
		return errors.New("environment.memory_budget_mb must not be negative")
	}
	if c.Environment.MaxInputMB <= 0 {
		return errors.New("environment.max_input_mb must be positive")
	}
	if _, err := language.Parse(c.Environment.Locale); err != nil {
		return fmt.Errorf("environment.locale %q is not a valid language tag: %w", c.Environment.Locale, err)
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if err := ensurePositiveMap(map[string]int{
		"translation.batch_max_units":          c.Translation.BatchMaxUnits,
		"translation.batch_max_chars":          c.Translation.BatchMaxChars,
		"translation.burst":                    c.Translation.Burst,
		"translation.concurrency":              c.Translation.Concurrency,
		"translation.max_attempts":             c.Translation.MaxAttempts,
		"translation.initial_backoff_ms":       c.Translation.InitialBackoffMS,
		"translation.max_backoff_ms":           c.Translation.MaxBackoffMS,
		"translation.breaker_threshold":        c.Translation.BreakerThreshold,
		"translation.breaker_cooldown_seconds": c.Translation.BreakerCooldownSeconds,
		"translation.request_timeout_seconds":  c.Translation.RequestTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Translation.RequestsPerSecond <= 0 {
		return errors.New("translation.requests_per_second must be positive")
	}
	if c.Translation.MaxBackoffMS < c.Translation.InitialBackoffMS {
		return errors.New("translation.max_backoff_ms must be at least translation.initial_backoff_ms")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if _, ok := validSubtitleModes[c.Subtitles.Mode]; !ok {
		return fmt.Errorf("subtitles.mode must be one of bilingual, source-only, translated-only (got %q)", c.Subtitles.Mode)
	}
	if c.Subtitles.MaxDisplaySeconds <= 0 {
		return errors.New("subtitles.max_display_seconds must be positive")
	}
	if c.Subtitles.MinDisplaySeconds < 0 {
		return errors.New("subtitles.min_display_seconds must not be negative")
	}
	if c.Subtitles.MinDisplaySeconds >= c.Subtitles.MaxDisplaySeconds {
		return errors.New("subtitles.min_display_seconds must be less than subtitles.max_display_seconds")
	}
	if c.Subtitles.MergeGapSeconds < 0 {
		return errors.New("subtitles.merge_gap_seconds must not be negative")
	}
	if c.Subtitles.SilenceGapSeconds < 0 {
		return errors.New("subtitles.silence_gap_seconds must not be negative")
	}
	if c.Subtitles.Style.FontSize <= 0 {
		return errors.New("subtitles.style.font_size must be positive")
	}
	if c.Subtitles.Style.OutlineWidth < 0 {
		return errors.New("subtitles.style.outline_width must not be negative")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":             c.Workflow.Workers,
		"workflow.queue_poll_interval": c.Workflow.QueuePollInterval,
		"workflow.stage_attempts":      c.Workflow.StageAttempts,
		"workflow.stage_timeout_base":  c.Workflow.StageTimeoutBase,
	}); err != nil {
		return err
	}
	if c.Workflow.StageRetryBackoff < 0 {
		return errors.New("workflow.stage_retry_backoff must not be negative")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	for stage, factor := range c.Workflow.StageTimeoutFactors {
		if factor < 0 {
			return fmt.Errorf("workflow.stage_timeout_factors.%s must not be negative", stage)
		}
	}
	if c.Workflow.PurgeSchedule != "" {
		if _, err := cron.ParseStandard(c.Workflow.PurgeSchedule); err != nil {
			return fmt.Errorf("workflow.purge_schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	for stage, level := range c.Logging.StageOverrides {
		if _, ok := validLogLevels[level]; !ok {
			return fmt.Errorf("logging.stage_overrides.%s: unsupported level %q", stage, level)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", strings.TrimSpace(key))
		}
	}
	return nil
}
