package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	langpkg "bisub/internal/language"
	"bisub/internal/logging"
	"bisub/internal/services"
	"bisub/internal/subtitles"
)

// CommandRunner executes name with args.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg    Config
	logger *slog.Logger
	run    CommandRunner
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, logger *slog.Logger) *Service {
	s := &Service{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "whisperx"),
	}
	s.run = s.exec
	return s
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		s.run = runner
	}
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// WithModel returns a copy of the service that loads model instead of the
// configured one. An empty model returns s unchanged.
func (s *Service) WithModel(model string) *Service {
	model = strings.TrimSpace(model)
	if model == "" || model == s.cfg.Model {
		return s
	}
	clone := *s
	clone.cfg.Model = model
	return &clone
}

// Device returns the configured device.
func (s *Service) Device() string {
	if s.cfg.Device == "" {
		return CPUDevice
	}
	return s.cfg.Device
}

// Transcript is the recognizer output for one audio file.
type Transcript struct {
	Language string
	Segments []subtitles.Segment
}

// Recognize transcribes the audio at source. outputDir receives the raw
// WhisperX output. languageHint may be "auto" or empty to let WhisperX
// detect the language.
func (s *Service) Recognize(ctx context.Context, source, outputDir, languageHint string) (Transcript, error) {
	if source == "" {
		return Transcript{}, services.Wrap(services.ErrValidation, "recognizing", "transcribe", "source path required", nil)
	}
	if _, err := os.Stat(source); err != nil {
		return Transcript{}, services.Wrap(services.ErrNotFound, "recognizing", "stat audio", source, err)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Transcript{}, services.Wrap(services.ErrRecognition, "recognizing", "ensure output dir", "", err)
	}

	command := s.cfg.Command
	if command == "" {
		command = UVXCommand
	}
	args := s.buildArgs(source, outputDir, languageHint)
	s.logger.Debug("running whisperx",
		logging.String("model", s.Model()),
		logging.String("device", s.Device()),
		logging.String("source", source),
	)
	if err := s.run(ctx, command, args...); err != nil {
		if ctx.Err() != nil {
			return Transcript{}, ctx.Err()
		}
		return Transcript{}, services.Wrap(services.ErrRecognition, "recognizing", "whisperx", "", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	transcript, err := LoadTranscript(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrRecognition, "recognizing", "load output", "", err)
	}
	return transcript, nil
}

func (s *Service) exec(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(output))
	}
	return nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 24)
	if s.cfg.CUDAEnabled() {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", strconv.Itoa(batch),
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if code, ok := langpkg.Normalize(language); ok && code != langpkg.Auto {
		args = append(args, "--language", code)
	}

	computeType := s.cfg.ComputeType
	if s.cfg.CUDAEnabled() {
		if computeType == "" {
			computeType = CUDAComputeType
		}
		args = append(args, "--device", CUDADevice, "--compute_type", computeType)
	} else {
		if computeType == "" {
			computeType = CPUComputeType
		}
		args = append(args, "--device", CPUDevice, "--compute_type", computeType)
	}
	return args
}

type word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Score float64  `json:"score"`
}

type segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []word  `json:"words"`
}

// payload is the JSON structure from WhisperX output.
type payload struct {
	Language string    `json:"language"`
	Segments []segment `json:"segments"`
}

// LoadTranscript decodes a WhisperX JSON file. Words without timings
// (numbers and symbols the aligner skips) are dropped from the word list
// but stay in the segment text.
func LoadTranscript(jsonPath string) (Transcript, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Transcript{}, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Transcript{}, fmt.Errorf("parse whisperx json: %w", err)
	}

	lang, _ := langpkg.Normalize(p.Language)
	if lang == langpkg.Auto {
		lang = ""
	}
	out := Transcript{Language: lang, Segments: make([]subtitles.Segment, 0, len(p.Segments))}
	for i, seg := range p.Segments {
		converted := subtitles.Segment{
			Index:    i,
			Start:    seg.Start,
			End:      seg.End,
			Text:     strings.TrimSpace(seg.Text),
			Language: lang,
		}
		var scoreSum float64
		var scored int
		for _, w := range seg.Words {
			if w.Start == nil || w.End == nil {
				continue
			}
			converted.Words = append(converted.Words, subtitles.Word{
				Start: *w.Start,
				End:   *w.End,
				Text:  strings.TrimSpace(w.Word),
			})
			scoreSum += w.Score
			scored++
		}
		if scored > 0 {
			converted.Confidence = scoreSum / float64(scored)
		}
		out.Segments = append(out.Segments, converted)
	}
	return out, nil
}

func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	const max = 2000
	if len(text) > max {
		text = text[len(text)-max:]
	}
	return text
}
