package config

const (
	defaultStagingDir           = "~/.local/share/bisub/staging"
	defaultOutputDir            = "~/.local/share/bisub/output"
	defaultLogDir               = "~/.local/share/bisub/logs"
	defaultDevice               = "auto"
	defaultMaxInputMB           = 500
	defaultRecognitionLanguage  = "auto"
	defaultVADMethod            = "silero"
	defaultRecognitionBatchSize = 16
	defaultTranslationEndpoint  = "https://fanyi-api.baidu.com/api/trans/vip/translate"
	defaultSourceLanguage       = "auto"
	defaultBatchMaxUnits        = 20
	defaultBatchMaxChars        = 2000
	defaultRequestsPerSecond    = 1.0
	defaultBurst                = 1
	defaultConcurrency          = 2
	defaultMaxAttempts          = 4
	defaultInitialBackoffMS     = 500
	defaultMaxBackoffMS         = 8000
	defaultBreakerThreshold     = 5
	defaultBreakerCooldown      = 30
	defaultRequestTimeout       = 10
	defaultSubtitleMode         = "bilingual"
	defaultMaxDisplaySeconds    = 7.0
	defaultMinDisplaySeconds    = 1.5
	defaultMergeGapSeconds      = 0.3
	defaultSilenceGapSeconds    = 0.4
	defaultFontSize             = 24
	defaultFontColor            = "white"
	defaultOutlineColor         = "black"
	defaultOutlineWidth         = 2
	defaultWorkers              = 2
	defaultQueuePollInterval    = 5
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 120
	defaultStageAttempts        = 3
	defaultStageRetryBackoff    = 5
	defaultStageTimeoutBase     = 120
	defaultRetentionDays        = 7
	defaultPurgeSchedule        = "@hourly"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultWhisperXCommand      = "uvx"
	defaultNvidiaSMIBinary      = "nvidia-smi"
	envTranslationAppID         = "BISUB_TRANSLATION_APP_ID"
	envTranslationAppKey        = "BISUB_TRANSLATION_APP_KEY"
	envLogLevel                 = "BISUB_LOG_LEVEL"
	envHuggingFaceToken         = "HF_TOKEN"
	envLocaleAll                = "LC_ALL"
	envLocaleLang               = "LANG"
	defaultLocale               = "en-US"
)

// defaultStageTimeoutFactors are multiples of the input's media duration.
func defaultStageTimeoutFactors() map[string]float64 {
	return map[string]float64{
		"extracting":    0.5,
		"recognizing":   3.0,
		"translating":   1.0,
		"synchronizing": 0.1,
		"muxing":        2.0,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Environment: Environment{
			Device:     defaultDevice,
			MaxInputMB: defaultMaxInputMB,
		},
		Recognition: Recognition{
			Language:  defaultRecognitionLanguage,
			VADMethod: defaultVADMethod,
			BatchSize: defaultRecognitionBatchSize,
		},
		Translation: Translation{
			Endpoint:               defaultTranslationEndpoint,
			SourceLanguage:         defaultSourceLanguage,
			BatchMaxUnits:          defaultBatchMaxUnits,
			BatchMaxChars:          defaultBatchMaxChars,
			RequestsPerSecond:      defaultRequestsPerSecond,
			Burst:                  defaultBurst,
			Concurrency:            defaultConcurrency,
			MaxAttempts:            defaultMaxAttempts,
			InitialBackoffMS:       defaultInitialBackoffMS,
			MaxBackoffMS:           defaultMaxBackoffMS,
			BreakerThreshold:       defaultBreakerThreshold,
			BreakerCooldownSeconds: defaultBreakerCooldown,
			RequestTimeoutSeconds:  defaultRequestTimeout,
		},
		Subtitles: Subtitles{
			Mode:              defaultSubtitleMode,
			MaxDisplaySeconds: defaultMaxDisplaySeconds,
			MinDisplaySeconds: defaultMinDisplaySeconds,
			MergeGapSeconds:   defaultMergeGapSeconds,
			SilenceGapSeconds: defaultSilenceGapSeconds,
			Style: Style{
				FontSize:     defaultFontSize,
				FontColor:    defaultFontColor,
				OutlineColor: defaultOutlineColor,
				OutlineWidth: defaultOutlineWidth,
			},
		},
		Workflow: Workflow{
			Workers:             defaultWorkers,
			QueuePollInterval:   defaultQueuePollInterval,
			HeartbeatInterval:   defaultHeartbeatInterval,
			HeartbeatTimeout:    defaultHeartbeatTimeout,
			StageAttempts:       defaultStageAttempts,
			StageRetryBackoff:   defaultStageRetryBackoff,
			StageTimeoutBase:    defaultStageTimeoutBase,
			StageTimeoutFactors: defaultStageTimeoutFactors(),
			RetentionDays:       defaultRetentionDays,
			PurgeSchedule:       defaultPurgeSchedule,
		},
		Logging: Logging{
			Format:         defaultLogFormat,
			Level:          defaultLogLevel,
			StageOverrides: map[string]string{},
		},
		Tools: Tools{
			FFmpeg:    defaultFFmpegBinary,
			FFprobe:   defaultFFprobeBinary,
			WhisperX:  defaultWhisperXCommand,
			NvidiaSMI: defaultNvidiaSMIBinary,
		},
	}
}
