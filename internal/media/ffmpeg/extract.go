package ffmpeg

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bisub/internal/logging"
	"bisub/internal/services"
)

// Extractor pulls the audio track out of a media file.
type Extractor struct {
	binary string
	logger *slog.Logger
	run    CommandRunner
}

// NewExtractor constructs an extractor that runs binary.
func NewExtractor(binary string, logger *slog.Logger) *Extractor {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Extractor{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "extractor"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (e *Extractor) WithCommandRunner(r CommandRunner) {
	if e != nil && r != nil {
		e.run = r
	}
}

// Extract writes the first audio stream of input to dest as mono 16 kHz
// PCM WAV.
func (e *Extractor) Extract(ctx context.Context, input, dest string) error {
	if _, err := os.Stat(input); err != nil {
		return services.Wrap(services.ErrNotFound, "extracting", "stat input", input, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrExtraction, "extracting", "create audio dir", "", err)
	}
	tmp := tempPath(dest)
	args := extractArgs(input, tmp)

	e.logger.Debug("extracting audio",
		logging.String("input", input),
		logging.String("dest", dest),
	)
	output, err := e.run(ctx, e.binary, args...)
	if err != nil {
		_ = os.Remove(tmp)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExtraction, "extracting", "ffmpeg", lastLines(output, 3), err)
	}
	if err := finalize(tmp, dest); err != nil {
		return services.Wrap(services.ErrExtraction, "extracting", "finalize", "", err)
	}
	return nil
}

func extractArgs(input, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dest,
	}
}
