package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"bisub/internal/config"
)

// LogFileName is the daemon log written beneath the configured log directory.
const LogFileName = "bisub.log"

// Options describes logger construction parameters.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
	// StageOverrides maps a stage name to its level; ForStage applies them.
	StageOverrides map[string]string
}

// New builds a logger writing to every distinct path in OutputPaths and
// ErrorOutputPaths. "stdout" and "stderr" name the standard streams.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	floor := level
	for _, override := range opts.StageOverrides {
		floor = min(floor, parseLevel(override))
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	errOutputs := opts.ErrorOutputPaths
	if len(errOutputs) == 0 {
		errOutputs = []string{"stderr"}
	}
	sink, err := openSink(slices.Concat(outputs, errOutputs))
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(sink, &slog.HandlerOptions{
			Level:       floor,
			AddSource:   addSource,
			ReplaceAttr: renameJSONKeys,
		})
	} else {
		handler = newConsoleHandler(sink, floor, addSource)
	}
	if floor < level {
		handler = minLevelHandler{next: handler, min: level}
	}
	return slog.New(handler), nil
}

// NewFromConfig builds the daemon logger: stdout plus LogFileName under the
// configured log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	paths := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		paths = append(paths, filepath.Join(cfg.Paths.LogDir, LogFileName))
	}
	return New(Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      paths,
		ErrorOutputPaths: paths,
		StageOverrides:   cfg.Logging.StageOverrides,
	})
}

// ParseLevel maps a configured level name onto a slog level. Unknown names
// mean info.
func ParseLevel(level string) slog.Level {
	return parseLevel(level)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openSink opens each distinct path once and fans writes out to all of them.
func openSink(paths []string) (io.Writer, error) {
	seen := make(map[string]bool, len(paths))
	var writers []io.Writer
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		switch path {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create log dir for %s: %w", path, err)
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", path, err)
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

// renameJSONKeys emits ts (RFC3339 UTC), a lowercase level, msg, and a short
// file:line source.
func renameJSONKeys(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() == slog.KindTime {
			return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339))
		}
		attr.Key = "ts"
	case slog.LevelKey:
		return slog.String("level", strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			return slog.String("source", fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}
