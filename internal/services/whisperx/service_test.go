package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"bisub/internal/services"
)

const sampleOutput = `{
  "language": "en",
  "segments": [
    {"start": 0.0, "end": 1.2, "text": " Hello",
     "words": [{"word": "Hello", "start": 0.0, "end": 1.1, "score": 0.9}]},
    {"start": 1.25, "end": 2.0, "text": " there 42",
     "words": [{"word": "there", "start": 1.25, "end": 1.8, "score": 0.7}, {"word": "42"}]}
  ]
}`

func TestRecognizeParsesOutput(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.wav")
	if err := os.WriteFile(audio, []byte("wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "whisperx")

	var gotArgs []string
	svc := NewService(Config{Model: "small", Device: CPUDevice}, nil)
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name != UVXCommand {
			t.Fatalf("unexpected command %q", name)
		}
		gotArgs = args
		return os.WriteFile(filepath.Join(outDir, "audio.json"), []byte(sampleOutput), 0o644)
	})

	transcript, err := svc.Recognize(context.Background(), audio, outDir, "auto")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if transcript.Language != "en" {
		t.Fatalf("expected en, got %q", transcript.Language)
	}
	if len(transcript.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(transcript.Segments))
	}
	second := transcript.Segments[1]
	if second.Index != 1 || second.Text != "there 42" || len(second.Words) != 1 {
		t.Fatalf("unexpected segment %+v", second)
	}
	if second.Confidence != 0.7 {
		t.Fatalf("unexpected confidence %v", second.Confidence)
	}
	if slices.Contains(gotArgs, "--language") {
		t.Fatalf("auto language must not be passed: %v", gotArgs)
	}
	if i := slices.Index(gotArgs, "--compute_type"); i < 0 || gotArgs[i+1] != CPUComputeType {
		t.Fatalf("expected cpu compute type in %v", gotArgs)
	}
}

func TestBuildArgsCUDA(t *testing.T) {
	svc := NewService(Config{Model: "large-v3", Device: CUDADevice, BatchSize: 8}, nil)
	args := svc.buildArgs("/a/audio.wav", "/a/out", "zh-CN")
	if i := slices.Index(args, "--language"); i < 0 || args[i+1] != "zh" {
		t.Fatalf("expected normalized language in %v", args)
	}
	if i := slices.Index(args, "--device"); i < 0 || args[i+1] != CUDADevice {
		t.Fatalf("expected cuda device in %v", args)
	}
	if i := slices.Index(args, "--batch_size"); i < 0 || args[i+1] != "8" {
		t.Fatalf("expected batch size 8 in %v", args)
	}
	if !slices.Contains(args, CUDAIndexURL) {
		t.Fatalf("expected CUDA index in %v", args)
	}
}

func TestWithModelOverride(t *testing.T) {
	svc := NewService(Config{Model: "small"}, nil)
	if svc.WithModel("") != svc {
		t.Fatal("empty override should return the same service")
	}
	large := svc.WithModel("medium")
	if large.Model() != "medium" || svc.Model() != "small" {
		t.Fatalf("override leaked: got %q and %q", large.Model(), svc.Model())
	}
	args := large.buildArgs("/a/audio.wav", "/a/out", "")
	if i := slices.Index(args, "--model"); i < 0 || args[i+1] != "medium" {
		t.Fatalf("expected medium model in %v", args)
	}
}

func TestRecognizeFailures(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(Config{}, nil)
	_, err := svc.Recognize(context.Background(), filepath.Join(dir, "missing.wav"), dir, "")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	audio := filepath.Join(dir, "audio.wav")
	if err := os.WriteFile(audio, []byte("wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc.WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("CUDA out of memory")
	})
	_, err = svc.Recognize(context.Background(), audio, dir, "")
	if !errors.Is(err, services.ErrRecognition) {
		t.Fatalf("expected recognition error, got %v", err)
	}
}
