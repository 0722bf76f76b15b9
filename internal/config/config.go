package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
}

// Environment contains inputs to the environment profiler.
type Environment struct {
	// Device is "auto", "cpu", or "cuda".
	Device string `toml:"device"`
	// MemoryBudgetMB caps the accelerator memory a model may use. Zero means
	// the full detected accelerator memory.
	MemoryBudgetMB int    `toml:"memory_budget_mb"`
	MaxInputMB     int    `toml:"max_input_mb"`
	Locale         string `toml:"locale"`
}

// Recognition contains speech recognizer settings.
type Recognition struct {
	Model     string `toml:"model"`
	Language  string `toml:"language"`
	VADMethod string `toml:"vad_method"`
	BatchSize int    `toml:"batch_size"`
	HFToken   string `toml:"hf_token"`
}

// Translation contains remote translation endpoint and client policy settings.
type Translation struct {
	Endpoint               string  `toml:"endpoint"`
	AppID                  string  `toml:"app_id"`
	AppKey                 string  `toml:"app_key"`
	SourceLanguage         string  `toml:"source_language"`
	TargetLanguage         string  `toml:"target_language"`
	BatchMaxUnits          int     `toml:"batch_max_units"`
	BatchMaxChars          int     `toml:"batch_max_chars"`
	RequestsPerSecond      float64 `toml:"requests_per_second"`
	Burst                  int     `toml:"burst"`
	Concurrency            int     `toml:"concurrency"`
	MaxAttempts            int     `toml:"max_attempts"`
	InitialBackoffMS       int     `toml:"initial_backoff_ms"`
	MaxBackoffMS           int     `toml:"max_backoff_ms"`
	BreakerThreshold       int     `toml:"breaker_threshold"`
	BreakerCooldownSeconds int     `toml:"breaker_cooldown_seconds"`
	RequestTimeoutSeconds  int     `toml:"request_timeout_seconds"`
}

// Style contains burn-in styling parameters.
type Style struct {
	FontSize     int    `toml:"font_size"`
	FontColor    string `toml:"font_color"`
	OutlineColor string `toml:"outline_color"`
	OutlineWidth int    `toml:"outline_width"`
}

// Subtitles contains synchronizer thresholds and per-job defaults.
type Subtitles struct {
	Mode              string  `toml:"mode"`
	BurnIn            bool    `toml:"burn_in"`
	MaxDisplaySeconds float64 `toml:"max_display_seconds"`
	MinDisplaySeconds float64 `toml:"min_display_seconds"`
	MergeGapSeconds   float64 `toml:"merge_gap_seconds"`
	SilenceGapSeconds float64 `toml:"silence_gap_seconds"`
	Style             Style   `toml:"style"`
}

// Workflow contains orchestrator sizing, timing, and retention settings.
type Workflow struct {
	Workers             int                `toml:"workers"`
	QueuePollInterval   int                `toml:"queue_poll_interval"`
	HeartbeatInterval   int                `toml:"heartbeat_interval"`
	HeartbeatTimeout    int                `toml:"heartbeat_timeout"`
	StageAttempts       int                `toml:"stage_attempts"`
	StageRetryBackoff   int                `toml:"stage_retry_backoff"`
	StageTimeoutBase    int                `toml:"stage_timeout_base"`
	StageTimeoutFactors map[string]float64 `toml:"stage_timeout_factors"`
	RetentionDays       int                `toml:"retention_days"`
	PurgeSchedule       string             `toml:"purge_schedule"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Tools names the external binaries the pipeline drives.
type Tools struct {
	FFmpeg    string `toml:"ffmpeg"`
	FFprobe   string `toml:"ffprobe"`
	WhisperX  string `toml:"whisperx"`
	NvidiaSMI string `toml:"nvidia_smi"`
}

// Config encapsulates all configuration values for bisub.
//
// Configuration sections by subsystem:
//   - Paths: staging, output, and log directories
//   - Environment: profiler inputs (device, memory budget, input size limit)
//   - Recognition: whisperx model, language hint, VAD
//   - Translation: endpoint credentials plus batching, rate, retry, and breaker policy
//   - Subtitles: synchronizer thresholds, default mode, burn-in styling
//   - Workflow: worker pool, polling, heartbeat, stage retries and timeouts, purge
//   - Logging: log format, level, and per-stage overrides
//   - Tools: external binary names
type Config struct {
	Paths       Paths       `toml:"paths"`
	Environment Environment `toml:"environment"`
	Recognition Recognition `toml:"recognition"`
	Translation Translation `toml:"translation"`
	Subtitles   Subtitles   `toml:"subtitles"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
	Tools       Tools       `toml:"tools"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bisub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file next to the config file is
// loaded first so credentials can stay out of the TOML.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv never overrides variables already present in the environment.
func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if info.IsDir() {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bisub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the sqlite database holding job records.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.LogDir, "jobs.db")
}

// MaxInputBytes returns the configured input size ceiling.
func (c *Config) MaxInputBytes() int64 {
	return int64(c.Environment.MaxInputMB) * 1024 * 1024
}

// StageTimeout returns the wall-clock ceiling for one attempt of stage given
// the media duration of the job's input.
func (c *Config) StageTimeout(stage string, media time.Duration) time.Duration {
	base := time.Duration(c.Workflow.StageTimeoutBase) * time.Second
	factor, ok := c.Workflow.StageTimeoutFactors[stage]
	if !ok || media <= 0 {
		return base
	}
	return base + time.Duration(factor*float64(media))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
