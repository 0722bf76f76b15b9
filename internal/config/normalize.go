package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEnvironment()
	c.normalizeRecognition()
	c.normalizeTranslation()
	c.normalizeSubtitles()
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.normalizeTools()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEnvironment() {
	c.Environment.Device = strings.ToLower(strings.TrimSpace(c.Environment.Device))
	switch c.Environment.Device {
	case "":
		c.Environment.Device = defaultDevice
	case "gpu":
		c.Environment.Device = "cuda"
	}
	c.Environment.Locale = strings.TrimSpace(c.Environment.Locale)
	if c.Environment.Locale == "" {
		c.Environment.Locale = localeFromEnv()
	}
}

// localeFromEnv turns POSIX locale values such as "zh_CN.UTF-8" into BCP 47
// form ("zh-CN").
func localeFromEnv() string {
	for _, key := range []string{envLocaleAll, envLocaleLang} {
		value, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if idx := strings.IndexAny(value, ".@"); idx >= 0 {
			value = value[:idx]
		}
		if value == "" || value == "C" || value == "POSIX" {
			continue
		}
		return strings.ReplaceAll(value, "_", "-")
	}
	return defaultLocale
}

func (c *Config) normalizeRecognition() {
	c.Recognition.Model = strings.TrimSpace(c.Recognition.Model)
	c.Recognition.Language = strings.ToLower(strings.TrimSpace(c.Recognition.Language))
	if c.Recognition.Language == "" {
		c.Recognition.Language = defaultRecognitionLanguage
	}
	c.Recognition.VADMethod = strings.ToLower(strings.TrimSpace(c.Recognition.VADMethod))
	if c.Recognition.VADMethod == "" {
		c.Recognition.VADMethod = defaultVADMethod
	}
	if c.Recognition.HFToken == "" {
		if value, ok := os.LookupEnv(envHuggingFaceToken); ok {
			c.Recognition.HFToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeTranslation() {
	c.Translation.Endpoint = strings.TrimSpace(c.Translation.Endpoint)
	if c.Translation.Endpoint == "" {
		c.Translation.Endpoint = defaultTranslationEndpoint
	}
	c.Translation.AppID = strings.TrimSpace(c.Translation.AppID)
	if c.Translation.AppID == "" {
		if value, ok := os.LookupEnv(envTranslationAppID); ok {
			c.Translation.AppID = strings.TrimSpace(value)
		}
	}
	c.Translation.AppKey = strings.TrimSpace(c.Translation.AppKey)
	if c.Translation.AppKey == "" {
		if value, ok := os.LookupEnv(envTranslationAppKey); ok {
			c.Translation.AppKey = strings.TrimSpace(value)
		}
	}
	c.Translation.SourceLanguage = strings.ToLower(strings.TrimSpace(c.Translation.SourceLanguage))
	if c.Translation.SourceLanguage == "" {
		c.Translation.SourceLanguage = defaultSourceLanguage
	}
	c.Translation.TargetLanguage = strings.ToLower(strings.TrimSpace(c.Translation.TargetLanguage))
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.Mode = strings.ToLower(strings.TrimSpace(c.Subtitles.Mode))
	if c.Subtitles.Mode == "" {
		c.Subtitles.Mode = defaultSubtitleMode
	}
	c.Subtitles.Style.FontColor = strings.TrimSpace(c.Subtitles.Style.FontColor)
	if c.Subtitles.Style.FontColor == "" {
		c.Subtitles.Style.FontColor = defaultFontColor
	}
	c.Subtitles.Style.OutlineColor = strings.TrimSpace(c.Subtitles.Style.OutlineColor)
	if c.Subtitles.Style.OutlineColor == "" {
		c.Subtitles.Style.OutlineColor = defaultOutlineColor
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.StageTimeoutFactors == nil {
		c.Workflow.StageTimeoutFactors = defaultStageTimeoutFactors()
	}
	for stage, factor := range defaultStageTimeoutFactors() {
		if _, ok := c.Workflow.StageTimeoutFactors[stage]; !ok {
			c.Workflow.StageTimeoutFactors[stage] = factor
		}
	}
	c.Workflow.PurgeSchedule = strings.TrimSpace(c.Workflow.PurgeSchedule)
	if c.Workflow.RetentionDays < 0 {
		c.Workflow.RetentionDays = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if value, ok := os.LookupEnv(envLogLevel); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.StageOverrides == nil {
		c.Logging.StageOverrides = map[string]string{}
	}
	normalized := make(map[string]string, len(c.Logging.StageOverrides))
	for stage, level := range c.Logging.StageOverrides {
		stage = strings.ToLower(strings.TrimSpace(stage))
		level = strings.ToLower(strings.TrimSpace(level))
		if stage == "" || level == "" {
			continue
		}
		normalized[stage] = level
	}
	c.Logging.StageOverrides = normalized
}

func (c *Config) normalizeTools() {
	trimOr := func(value, fallback string) string {
		if value = strings.TrimSpace(value); value == "" {
			return fallback
		}
		return value
	}
	c.Tools.FFmpeg = trimOr(c.Tools.FFmpeg, defaultFFmpegBinary)
	c.Tools.FFprobe = trimOr(c.Tools.FFprobe, defaultFFprobeBinary)
	c.Tools.WhisperX = trimOr(c.Tools.WhisperX, defaultWhisperXCommand)
	c.Tools.NvidiaSMI = trimOr(c.Tools.NvidiaSMI, defaultNvidiaSMIBinary)
}
