package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bisub/internal/logging"
	"bisub/internal/services"
)

// Style controls how burned-in subtitles look.
type Style struct {
	FontSize     int
	FontColor    string
	OutlineColor string
	OutlineWidth int
}

// namedColors maps color names to RGB hex.
var namedColors = map[string]string{
	"white":   "FFFFFF",
	"black":   "000000",
	"yellow":  "FFFF00",
	"red":     "FF0000",
	"green":   "00FF00",
	"blue":    "0000FF",
	"cyan":    "00FFFF",
	"magenta": "FF00FF",
	"gray":    "808080",
	"grey":    "808080",
}

// ASSColor converts a color name or #RRGGBB value to the &H00BBGGRR form
// subtitle styles use.
func ASSColor(value string) (string, error) {
	v := cases.Lower(language.Und).String(strings.TrimSpace(value))
	if hex, ok := namedColors[v]; ok {
		v = hex
	}
	v = strings.TrimPrefix(v, "#")
	if len(v) != 6 {
		return "", fmt.Errorf("unsupported color %q", value)
	}
	if _, err := strconv.ParseUint(v, 16, 32); err != nil {
		return "", fmt.Errorf("unsupported color %q", value)
	}
	rr, gg, bb := v[0:2], v[2:4], v[4:6]
	return strings.ToUpper("&H00" + bb + gg + rr), nil
}

// ForceStyle renders style as an ffmpeg subtitles force_style value.
func (s Style) ForceStyle() (string, error) {
	primary, err := ASSColor(s.FontColor)
	if err != nil {
		return "", err
	}
	outline, err := ASSColor(s.OutlineColor)
	if err != nil {
		return "", err
	}
	size := s.FontSize
	if size <= 0 {
		size = 24
	}
	width := s.OutlineWidth
	if width < 0 {
		width = 0
	}
	return fmt.Sprintf("FontSize=%d,PrimaryColour=%s,OutlineColour=%s,Outline=%d,BorderStyle=1",
		size, primary, outline, width), nil
}

// Muxer burns subtitles into video.
type Muxer struct {
	binary string
	logger *slog.Logger
	run    CommandRunner
}

// NewMuxer constructs a burn-in muxer that runs binary.
func NewMuxer(binary string, logger *slog.Logger) *Muxer {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Muxer{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "muxer"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (m *Muxer) WithCommandRunner(r CommandRunner) {
	if m != nil && r != nil {
		m.run = r
	}
}

// BurnIn renders subtitlePath onto video and writes the re-encoded result
// to dest. The source video is never modified.
func (m *Muxer) BurnIn(ctx context.Context, video, subtitlePath, dest string, style Style) error {
	for _, path := range []string{video, subtitlePath} {
		if _, err := os.Stat(path); err != nil {
			return services.Wrap(services.ErrNotFound, "muxing", "stat input", path, err)
		}
	}
	forceStyle, err := style.ForceStyle()
	if err != nil {
		return services.Wrap(services.ErrValidation, "muxing", "style", "", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrMux, "muxing", "create output dir", "", err)
	}

	tmp := tempPath(dest)
	args := burnInArgs(video, subtitlePath, tmp, forceStyle)
	m.logger.Debug("burning subtitles",
		logging.String("video", video),
		logging.String("subtitle", subtitlePath),
		logging.String("dest", dest),
	)
	output, err := m.run(ctx, m.binary, args...)
	if err != nil {
		_ = os.Remove(tmp)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrMux, "muxing", "ffmpeg", lastLines(output, 3), err)
	}
	if err := finalize(tmp, dest); err != nil {
		return services.Wrap(services.ErrMux, "muxing", "finalize", "", err)
	}
	return nil
}

func burnInArgs(video, subtitlePath, dest, forceStyle string) []string {
	filter := fmt.Sprintf("subtitles=filename=%s:charenc=UTF-8:force_style='%s'", escapeFilterPath(subtitlePath), forceStyle)
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-vf", filter,
		"-c:v", "libx264",
		"-crf", "23",
		"-preset", "medium",
		"-c:a", "aac",
	}
	switch strings.ToLower(filepath.Ext(dest)) {
	case ".mp4", ".m4v", ".mov":
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, dest)
}

// escapeFilterPath escapes characters that are special inside an ffmpeg
// filter argument.
func escapeFilterPath(path string) string {
	return strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
		`,`, `\,`,
		`[`, `\[`,
		`]`, `\]`,
		`;`, `\;`,
	).Replace(path)
}
