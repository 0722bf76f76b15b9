package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"bisub/internal/config"
	"bisub/internal/daemon"
	"bisub/internal/logging"
	"bisub/internal/pipeline"
	"bisub/internal/profiler"
	"bisub/internal/queue"
	"bisub/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the bisub daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		StageOverrides:   cfg.Logging.StageOverrides,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	profile, err := profiler.Resolve(signalCtx, cfg, profiler.SystemProbe(cfg))
	if err != nil {
		logging.ErrorWithContext(logger, "environment profile failed", "profile_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install ffmpeg and ffprobe or set tools.ffmpeg"),
		)
		return err
	}
	logProfile(logger, profile)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	workflowManager := workflow.NewManager(cfg, store, logger, workflow.WithProfile(profile))
	workflowManager.ConfigureStages(BuildStages(cfg, profile, store, logger))

	d, err := daemon.New(cfg, store, logger, workflowManager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("bisub daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// BuildStages wires the pipeline handlers to their external tools.
func BuildStages(cfg *config.Config, profile profiler.Profile, store *queue.Store, logger *slog.Logger) workflow.StageSet {
	return workflow.StageSet{
		Extractor:    pipeline.NewExtractor(cfg, store, logger),
		Recognizer:   pipeline.NewTranscriber(cfg, profile, store, logger),
		Translator:   pipeline.NewTranslationStage(cfg, store, logger),
		Synchronizer: pipeline.NewSynchronizer(cfg, logger),
		Muxer:        pipeline.NewMuxer(cfg, store, logger),
	}
}

func logProfile(logger *slog.Logger, profile profiler.Profile) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "environment_profile"),
		logging.String("device", profile.Device),
		logging.String("model", profile.Model),
		logging.Int64("max_input_bytes", profile.MaxInputBytes),
		logging.String("locale", profile.Locale),
	}
	if profile.Accelerator != nil {
		attrs = append(attrs,
			logging.String("accelerator", profile.Accelerator.Name),
			logging.Int("accelerator_memory_mb", profile.Accelerator.MemoryMB),
		)
	}
	for _, tool := range profile.Tools {
		attrs = append(attrs, logging.Bool(strings.ToLower(tool.Name)+"_available", tool.Available))
	}
	if len(profile.Notes) > 0 {
		attrs = append(attrs, logging.String("notes", strings.Join(profile.Notes, "; ")))
	}
	logger.Info("environment profile resolved", logging.Args(attrs...)...)
}
