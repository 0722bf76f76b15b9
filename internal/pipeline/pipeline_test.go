package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bisub/internal/media/ffmpeg"
	"bisub/internal/media/ffprobe"
	"bisub/internal/queue"
	"bisub/internal/services"
	"bisub/internal/services/whisperx"
	"bisub/internal/subtitles"
	"bisub/internal/testsupport"
	"bisub/internal/translation"
)

type extractorFunc func(ctx context.Context, input, dest string) error

func (f extractorFunc) Extract(ctx context.Context, input, dest string) error { return f(ctx, input, dest) }

type recognizerFunc func(ctx context.Context, source, outputDir, hint string) (whisperx.Transcript, error)

func (f recognizerFunc) Recognize(ctx context.Context, source, outputDir, hint string) (whisperx.Transcript, error) {
	return f(ctx, source, outputDir, hint)
}

type translatorFunc func(ctx context.Context, units []translation.Unit) ([]translation.Result, error)

func (f translatorFunc) Translate(ctx context.Context, units []translation.Unit) ([]translation.Result, error) {
	return f(ctx, units)
}

type muxerFunc func(ctx context.Context, video, subtitlePath, dest string, style ffmpeg.Style) error

func (f muxerFunc) BurnIn(ctx context.Context, video, subtitlePath, dest string, style ffmpeg.Style) error {
	return f(ctx, video, subtitlePath, dest, style)
}

func probeWithAudio(duration, lang string) Prober {
	return func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{
				{Index: 0, CodecType: "video"},
				{Index: 1, CodecType: "audio", Tags: map[string]string{"language": lang}},
			},
			Format: ffprobe.Format{Duration: duration},
		}, nil
	}
}

func newTestJob(t *testing.T, input string) *queue.Job {
	t.Helper()
	testsupport.WriteFile(t, input, 2048)
	return &queue.Job{
		ID:        7,
		InputPath: input,
		Options:   queue.Options{Mode: "bilingual", SourceLanguage: "auto"},
		Status:    queue.StatusExtracting,
	}
}

func TestExtractorRecordsCheckpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := newTestJob(t, filepath.Join(testsupport.BaseDir(cfg), "talk.mp4"))

	var gotDest string
	extract := extractorFunc(func(_ context.Context, input, dest string) error {
		gotDest = dest
		return os.WriteFile(dest, []byte("RIFF"), 0o644)
	})
	stage := NewExtractorWithDependencies(cfg, nil, nil, probeWithAudio("12.5", "eng"), extract)

	ctx := context.Background()
	if err := stage.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := stage.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.AudioPath != gotDest || !strings.HasPrefix(job.AudioPath, job.StagingRoot(cfg.Paths.StagingDir)) {
		t.Fatalf("audio path %q not under staging (extractor wrote %q)", job.AudioPath, gotDest)
	}
	if job.MediaDuration.Seconds() != 12.5 {
		t.Fatalf("expected 12.5s duration, got %s", job.MediaDuration)
	}
	if job.SourceLanguage != "en" {
		t.Fatalf("expected audio tag language en, got %q", job.SourceLanguage)
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("expected completed progress, got %.0f", job.ProgressPercent)
	}
}

func TestExtractorRejectsInputWithoutAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := newTestJob(t, filepath.Join(testsupport.BaseDir(cfg), "silent.mp4"))
	probe := func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video"}}}, nil
	}
	called := false
	extract := extractorFunc(func(context.Context, string, string) error {
		called = true
		return nil
	})
	stage := NewExtractorWithDependencies(cfg, nil, nil, probe, extract)
	err := stage.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if called {
		t.Fatal("extractor must not run for input without audio")
	}
}

func TestExtractorPrepareMissingInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := &queue.Job{ID: 1, InputPath: filepath.Join(testsupport.BaseDir(cfg), "gone.mp4")}
	stage := NewExtractorWithDependencies(cfg, nil, nil, probeWithAudio("1", ""), extractorFunc(func(context.Context, string, string) error { return nil }))
	if err := stage.Prepare(context.Background(), job); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTranscriberUsesJobModelOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := newTestJob(t, filepath.Join(testsupport.BaseDir(cfg), "talk.mp4"))
	job.AudioPath = filepath.Join(testsupport.BaseDir(cfg), "audio.wav")
	testsupport.WriteFile(t, job.AudioPath, 16)
	job.Options.Model = "small"
	job.SourceLanguage = "en"

	var gotModel, gotHint string
	factory := func(model string) Recognizer {
		gotModel = model
		return recognizerFunc(func(_ context.Context, _, _, hint string) (whisperx.Transcript, error) {
			gotHint = hint
			return whisperx.Transcript{
				Language: "en",
				Segments: []subtitles.Segment{
					{Index: 4, Start: 0, End: 1.5, Text: "Hello world"},
					{Index: 9, Start: 2, End: 3, Text: "Again"},
				},
			}, nil
		})
	}
	stage := NewTranscriberWithDependencies(cfg, nil, nil, "large-v3", factory)
	ctx := context.Background()
	if err := stage.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := stage.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotModel != "small" {
		t.Fatalf("expected job model override, got %q", gotModel)
	}
	if gotHint != "en" {
		t.Fatalf("expected tag language as hint, got %q", gotHint)
	}
	var segments []subtitles.Segment
	if err := json.Unmarshal([]byte(job.SegmentsJSON), &segments); err != nil {
		t.Fatalf("decode segments: %v", err)
	}
	if len(segments) != 2 || segments[0].Index != 0 || segments[1].Index != 1 {
		t.Fatalf("expected reindexed segments, got %+v", segments)
	}
	if job.SourceLanguage != "en" {
		t.Fatalf("expected source language en, got %q", job.SourceLanguage)
	}
}

func TestTranscriberRequiresAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stage := NewTranscriberWithDependencies(cfg, nil, nil, "tiny", nil)
	err := stage.Prepare(context.Background(), &queue.Job{ID: 3})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing audio path, got %v", err)
	}
}

func encodeSegments(t *testing.T, segments []subtitles.Segment) string {
	t.Helper()
	data, err := json.Marshal(segments)
	if err != nil {
		t.Fatalf("marshal segments: %v", err)
	}
	return string(data)
}

func TestTranslationStageSplitsBeforeTranslating(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := &queue.Job{
		ID:             2,
		Options:        queue.Options{Mode: "bilingual", SourceLanguage: "auto"},
		SourceLanguage: "en",
		SegmentsJSON: encodeSegments(t, []subtitles.Segment{
			{Index: 0, Start: 0, End: 12, Text: "one two three four five six seven eight"},
		}),
	}
	var gotUnits []translation.Unit
	translator := translatorFunc(func(_ context.Context, units []translation.Unit) ([]translation.Result, error) {
		gotUnits = units
		out := make([]translation.Result, len(units))
		for i, u := range units {
			out[i] = translation.Result{Index: u.Index, Text: "译" + u.Text, Status: translation.StatusOK}
		}
		return out, nil
	})
	stage := NewTranslationStageWithDependencies(cfg, nil, nil, translator)
	if err := stage.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(gotUnits) != 2 {
		t.Fatalf("expected the 12s segment split into 2 units, got %d", len(gotUnits))
	}
	if gotUnits[0].Target != "zh" || gotUnits[0].Source != "en" {
		t.Fatalf("unexpected direction %s -> %s", gotUnits[0].Source, gotUnits[0].Target)
	}
	cp, err := DecodeTranslations(job)
	if err != nil {
		t.Fatalf("DecodeTranslations: %v", err)
	}
	if len(cp.Segments) != 2 || len(cp.Results) != 2 {
		t.Fatalf("unexpected checkpoint %+v", cp)
	}
	if cp.Segments[0].End != 6 || cp.Segments[1].Start != 6 {
		t.Fatalf("expected even split at 6s, got %+v", cp.Segments)
	}
	if job.Options.TargetLanguage != "zh" {
		t.Fatalf("expected resolved target recorded on job, got %q", job.Options.TargetLanguage)
	}
}

func TestTranslationStageSkipsSourceMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := &queue.Job{
		ID:             2,
		Options:        queue.Options{Mode: "source"},
		SourceLanguage: "en",
		SegmentsJSON:   encodeSegments(t, []subtitles.Segment{{Index: 0, Start: 0, End: 2, Text: "Hi"}}),
	}
	translator := translatorFunc(func(context.Context, []translation.Unit) ([]translation.Result, error) {
		t.Fatal("translator must not be called in source mode")
		return nil, nil
	})
	stage := NewTranslationStageWithDependencies(cfg, nil, nil, translator)
	if err := stage.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	cp, err := DecodeTranslations(job)
	if err != nil {
		t.Fatalf("DecodeTranslations: %v", err)
	}
	if len(cp.Results) != 0 || len(cp.Segments) != 1 {
		t.Fatalf("unexpected checkpoint %+v", cp)
	}
}

func TestTranslationStageRequiresSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stage := NewTranslationStageWithDependencies(cfg, nil, nil, nil)
	err := stage.Prepare(context.Background(), &queue.Job{ID: 1, Options: queue.Options{Mode: "bilingual"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSynchronizerPublishesAndRecordsDegradation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cp := TranslationCheckpoint{
		Source: "en",
		Target: "zh",
		Segments: []subtitles.Segment{
			{Index: 0, Start: 0, End: 2, Text: "Good morning"},
			{Index: 1, Start: 3, End: 5, Text: "How are you"},
		},
		Results: []translation.Result{
			{Index: 0, Text: "早上好", Status: translation.StatusOK},
			{Index: 1, Status: translation.StatusFailed, Error: "54003: rate limited"},
		},
	}
	data, _ := json.Marshal(cp)
	job := &queue.Job{ID: 11, InputPath: "/videos/Morning.mp4", Options: queue.Options{Mode: "bilingual"}, TranslationsJSON: string(data)}

	stage := NewSynchronizer(cfg, nil)
	ctx := context.Background()
	if err := stage.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := stage.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := filepath.Join(cfg.Paths.OutputDir, "Morning.job-11.bilingual.srt")
	if job.SubtitlePath != want || job.OutputPath != want {
		t.Fatalf("unexpected paths subtitle=%q output=%q", job.SubtitlePath, job.OutputPath)
	}
	content, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read subtitles: %v", err)
	}
	expected := "1\n00:00:00,000 --> 00:00:02,000\nGood morning\n早上好\n\n2\n00:00:03,000 --> 00:00:05,000\nHow are you\n"
	if string(content) != expected {
		t.Fatalf("subtitle mismatch:\n%q\nwant\n%q", content, expected)
	}
	if len(job.Warnings) != 1 || job.Warnings[0].SegmentIndex != 1 {
		t.Fatalf("expected one warning for segment 1, got %+v", job.Warnings)
	}

	// A second run replaces rather than duplicates warnings.
	if err := stage.Execute(ctx, job); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if len(job.Warnings) != 1 {
		t.Fatalf("expected warnings to be replaced, got %+v", job.Warnings)
	}
}

func TestSynchronizerKeepsOutputForBurnIn(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	data, _ := json.Marshal(TranslationCheckpoint{Segments: []subtitles.Segment{{Index: 0, Start: 0, End: 2, Text: "Hi"}}})
	job := &queue.Job{ID: 5, InputPath: "/v/a.mkv", Options: queue.Options{Mode: "source", BurnIn: true}, TranslationsJSON: string(data)}
	if err := NewSynchronizer(cfg, nil).Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.SubtitlePath == "" || job.OutputPath != "" {
		t.Fatalf("burn-in jobs publish subtitles but leave output to the muxer: %+v", job)
	}
}

func TestMuxerBurnsPublishedSubtitles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	job := newTestJob(t, filepath.Join(base, "clip.mov"))
	job.SubtitlePath = filepath.Join(base, "clip.srt")
	testsupport.WriteFile(t, job.SubtitlePath, 32)
	job.Options.BurnIn = true
	job.Options.Style = queue.Style{FontSize: 30, FontColor: "yellow", OutlineColor: "black", OutlineWidth: 3}

	var gotStyle ffmpeg.Style
	var gotDest string
	muxer := muxerFunc(func(_ context.Context, video, subtitlePath, dest string, style ffmpeg.Style) error {
		if video != job.InputPath || subtitlePath != job.SubtitlePath {
			t.Fatalf("unexpected inputs %q %q", video, subtitlePath)
		}
		gotStyle = style
		gotDest = dest
		return os.WriteFile(dest, []byte("video"), 0o644)
	})
	stage := NewMuxerWithDependencies(cfg, nil, nil, muxer)
	ctx := context.Background()
	if err := stage.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := stage.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotStyle.FontSize != 30 || gotStyle.FontColor != "yellow" || gotStyle.OutlineWidth != 3 {
		t.Fatalf("style not forwarded: %+v", gotStyle)
	}
	if filepath.Dir(gotDest) != job.StagingRoot(cfg.Paths.StagingDir) {
		t.Fatalf("expected burn-in to write into staging, got %q", gotDest)
	}
	want := BurnedVideoPath(cfg.Paths.OutputDir, job)
	if job.OutputPath != want || filepath.Base(want) != "clip.job-7.subtitled.mp4" {
		t.Fatalf("unexpected output %q", job.OutputPath)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected published video: %v", err)
	}
	if _, err := os.Stat(gotDest); !os.IsNotExist(err) {
		t.Fatalf("expected scratch video moved, stat err=%v", err)
	}
}
