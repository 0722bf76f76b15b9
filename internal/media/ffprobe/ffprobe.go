package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"bisub/internal/language"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int               `json:"index"`
	CodecName  string            `json:"codec_name"`
	CodecType  string            `json:"codec_type"`
	Duration   string            `json:"duration"`
	SampleRate string            `json:"sample_rate"`
	Channels   int               `json:"channels"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Tags       map[string]string `json:"tags"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Func inspects the media at path.
type Func func(ctx context.Context, path string) (Result, error)

// Runner returns a Func that runs binary.
func Runner(binary string) Func {
	return func(ctx context.Context, path string) (Result, error) {
		return Inspect(ctx, binary, path)
	}
}

// Inspect runs ffprobe on path and decodes its JSON report. An empty binary
// means "ffprobe" on PATH.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	if path = strings.TrimSpace(path); path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	out, err := exec.CommandContext(ctx, binary,
		"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path,
	).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(out)
}

// Parse decodes an ffprobe JSON report.
func Parse(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return r, nil
}

func (r Result) streamsOf(kind string) []Stream {
	var out []Stream
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, kind) {
			out = append(out, s)
		}
	}
	return out
}

// HasVideo reports whether the container holds a video stream.
func (r Result) HasVideo() bool { return len(r.streamsOf("video")) > 0 }

// AudioStreamCount counts the audio streams.
func (r Result) AudioStreamCount() int { return len(r.streamsOf("audio")) }

// PrimaryAudio returns the first audio stream, which is the one extracted.
func (r Result) PrimaryAudio() (Stream, bool) {
	audio := r.streamsOf("audio")
	if len(audio) == 0 {
		return Stream{}, false
	}
	return audio[0], true
}

// AudioLanguage is the ISO 639-1 language tagged on the primary audio
// stream, or "" when it is untagged or unrecognized.
func (r Result) AudioLanguage() string {
	audio, ok := r.PrimaryAudio()
	if !ok {
		return ""
	}
	if code, ok := language.Normalize(language.ExtractFromTags(audio.Tags)); ok && code != language.Auto {
		return code
	}
	return ""
}

// Duration is the container duration, or the longest stream's when the
// container reports none. Zero means unknown.
func (r Result) Duration() time.Duration {
	seconds, ok := parseDecimal(r.Format.Duration)
	if !ok || seconds <= 0 {
		seconds = 0
		for _, s := range r.Streams {
			if v, ok := parseDecimal(s.Duration); ok {
				seconds = max(seconds, v)
			}
		}
	}
	return time.Duration(seconds * float64(time.Second))
}

// SizeBytes is the container size, or 0 when unreported.
func (r Result) SizeBytes() int64 {
	if size, ok := parseDecimal(r.Format.Size); ok && size > 0 {
		return int64(size)
	}
	return 0
}

// parseDecimal parses one of ffprobe's decimal fields. "N/A" and blanks read as
// zero; ok is false only for malformed values.
func parseDecimal(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return 0, true
	}
	v, err := strconv.ParseFloat(value, 64)
	return v, err == nil
}
