package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bisub/internal/config"
	"bisub/internal/logging"
	"bisub/internal/preflight"
	"bisub/internal/profiler"
	"bisub/internal/queue"
	"bisub/internal/services"
	"bisub/internal/testsupport"
	"bisub/internal/workflow"
)

func TestManagerProcessesJobsToCompletion(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stubs := newStubSet()
	startManager(t, cfg, store, stubs.stageSet())

	job := testsupport.NewJob(t, store, "/videos/clip.mp4")
	done := waitForStatus(t, store, job.ID, queue.StatusCompleted)

	for name, stg := range map[string]*stubStage{
		"extractor":    stubs.extractor,
		"recognizer":   stubs.recognizer,
		"translator":   stubs.translator,
		"synchronizer": stubs.synchronizer,
	} {
		if stg.Calls() != 1 {
			t.Fatalf("%s calls = %d, want 1", name, stg.Calls())
		}
	}
	if stubs.muxer.Calls() != 0 {
		t.Fatalf("muxer ran %d times without burn-in", stubs.muxer.Calls())
	}
	if done.ProgressPercent != 100 {
		t.Fatalf("progress = %v, want 100", done.ProgressPercent)
	}
	if done.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on completion")
	}
}

func TestManagerRunsMuxerForBurnIn(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stubs := newStubSet()
	startManager(t, cfg, store, stubs.stageSet())

	job, err := store.NewJob(context.Background(), "/videos/clip.mp4", 1024, queue.Options{Mode: "bilingual", BurnIn: true})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	waitForStatus(t, store, job.ID, queue.StatusCompleted)
	if stubs.muxer.Calls() != 1 {
		t.Fatalf("muxer calls = %d, want 1", stubs.muxer.Calls())
	}
}

func TestManagerRetriesTransientFailure(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stubs := newStubSet()
	var attempts atomic.Int32
	stubs.translator.executeHook = func(context.Context, *queue.Job) error {
		if attempts.Add(1) == 1 {
			return services.Wrap(services.ErrTransient, "translating", "call api", "connection reset", nil)
		}
		return nil
	}
	startManager(t, cfg, store, stubs.stageSet())

	job := testsupport.NewJob(t, store, "/videos/clip.mp4")
	waitForStatus(t, store, job.ID, queue.StatusCompleted)
	if got := stubs.translator.Calls(); got != 2 {
		t.Fatalf("translator calls = %d, want 2", got)
	}
}

func TestManagerRecordsResumePointAndRetryResumes(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stubs := newStubSet()
	stubs.extractor.executeHook = func(_ context.Context, job *queue.Job) error {
		return os.MkdirAll(job.StagingRoot(cfg.Paths.StagingDir), 0o755)
	}
	var failing atomic.Bool
	failing.Store(true)
	stubs.translator.executeHook = func(context.Context, *queue.Job) error {
		if failing.Load() {
			return services.Wrap(services.ErrTranslation, "translating", "call api", "quota exhausted", nil)
		}
		return nil
	}
	mgr := startManager(t, cfg, store, stubs.stageSet())

	job := testsupport.NewJob(t, store, "/videos/clip.mp4")
	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)

	if got := stubs.translator.Calls(); got != cfg.Workflow.StageAttempts {
		t.Fatalf("translator calls = %d, want %d", got, cfg.Workflow.StageAttempts)
	}
	if failed.FailedStage != queue.StatusTranslating || failed.ErrorKind != "translation" {
		t.Fatalf("unexpected failure record stage=%q kind=%q", failed.FailedStage, failed.ErrorKind)
	}
	if failed.ResumeFrom != queue.StatusRecognized {
		t.Fatalf("resume = %q, want recognized", failed.ResumeFrom)
	}
	if _, err := os.Stat(failed.StagingRoot(cfg.Paths.StagingDir)); !os.IsNotExist(err) {
		t.Fatalf("expected staging root reclaimed, stat err=%v", err)
	}

	status, err := mgr.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !status.Terminal || status.Error == nil || !status.Error.Resumable || status.Error.Kind != "translation" {
		t.Fatalf("unexpected poll status %+v", status)
	}

	failing.Store(false)
	n, err := mgr.Retry(context.Background(), job.ID)
	if err != nil || n != 1 {
		t.Fatalf("Retry = %d, %v", n, err)
	}
	waitForStatus(t, store, job.ID, queue.StatusCompleted)
	if stubs.extractor.Calls() != 1 || stubs.recognizer.Calls() != 1 {
		t.Fatalf("retry re-ran earlier stages: extract=%d recognize=%d", stubs.extractor.Calls(), stubs.recognizer.Calls())
	}
}

func TestManagerFailsValidationWithoutRetry(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stubs := newStubSet()
	stubs.extractor.executeHook = func(context.Context, *queue.Job) error {
		return services.Wrap(services.ErrValidation, "extracting", "probe", "no audio stream", nil)
	}
	startManager(t, cfg, store, stubs.stageSet())

	job := testsupport.NewJob(t, store, "/videos/silent.mp4")
	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if stubs.extractor.Calls() != 1 {
		t.Fatalf("extractor calls = %d, want 1", stubs.extractor.Calls())
	}
	if failed.ErrorKind != "validation" || failed.Resumable() {
		t.Fatalf("unexpected failure kind=%q resume=%q", failed.ErrorKind, failed.ResumeFrom)
	}
	if stubs.recognizer.Calls() != 0 {
		t.Fatal("recognizer ran after extraction failed")
	}
}

func TestManagerCancelStopsRunningJobAtBoundary(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stubs := newStubSet()
	entered := make(chan struct{})
	release := make(chan struct{})
	stubs.extractor.executeHook = func(ctx context.Context, _ *queue.Job) error {
		close(entered)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	mgr := startManager(t, cfg, store, stubs.stageSet())

	job := testsupport.NewJob(t, store, "/videos/clip.mp4")
	select {
	case <-entered:
	case <-time.After(10 * time.Second):
		t.Fatal("extractor never started")
	}
	if err := mgr.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(release)

	cancelled := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if cancelled.ErrorKind != "cancelled" || cancelled.ErrorMessage != queue.CancelReason {
		t.Fatalf("unexpected cancel record kind=%q msg=%q", cancelled.ErrorKind, cancelled.ErrorMessage)
	}
	if stubs.recognizer.Calls() != 0 {
		t.Fatal("recognizer ran after cancellation")
	}
	if err := mgr.Cancel(context.Background(), job.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("second cancel err = %v, want validation", err)
	}
}

func TestCancelWaitingJobAppliesImmediately(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop())

	job := testsupport.NewJob(t, store, "/videos/clip.mp4")
	testsupport.SetStatus(t, store, job, queue.StatusRecognized)
	root := job.StagingRoot(cfg.Paths.StagingDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := mgr.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusFailed || got.ErrorKind != "cancelled" {
		t.Fatalf("unexpected job after cancel status=%q kind=%q", got.Status, got.ErrorKind)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("expected staging root reclaimed, stat err=%v", err)
	}
	if err := mgr.Cancel(context.Background(), 9999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("cancel of missing job err = %v, want not found", err)
	}
}

func TestManagerAdmitsOneRecognitionAtATime(t *testing.T) {
	cfg := testConfig(t, testsupport.WithWorkers(3))
	store := testsupport.MustOpenStore(t, cfg)
	stubs := newStubSet()
	var current, peak atomic.Int32
	stubs.recognizer.executeHook = func(context.Context, *queue.Job) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		current.Add(-1)
		return nil
	}
	startManager(t, cfg, store, stubs.stageSet())

	ids := make([]int64, 0, 3)
	for i := 0; i < 3; i++ {
		ids = append(ids, testsupport.NewJob(t, store, filepath.Join("/videos", "clip.mp4")).ID)
	}
	for _, id := range ids {
		waitForStatus(t, store, id, queue.StatusCompleted)
	}
	if got := peak.Load(); got != 1 {
		t.Fatalf("peak concurrent recognitions = %d, want 1", got)
	}
}

func TestManagerStartFailsOnBlockingPreflight(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop(),
		workflow.WithPreflight(func(context.Context, *config.Config) []preflight.Result {
			return []preflight.Result{{Name: "ffmpeg", Passed: false, Detail: "not found in PATH"}}
		}),
	)
	mgr.ConfigureStages(newStubSet().stageSet())

	err := mgr.Start(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("Start err = %v, want configuration error", err)
	}
	if mgr.Status(context.Background()).Running {
		t.Fatal("manager reports running after failed start")
	}
}

func TestManagerStartRequiresStages(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop(), workflow.WithPreflight(noPreflight))
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected error starting without stages")
	}
}

func TestManagerRecoversStuckJobsOnStart(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "/videos/clip.mp4")
	testsupport.SetStatus(t, store, job, queue.StatusTranslating)

	stubs := newStubSet()
	startManager(t, cfg, store, stubs.stageSet())
	waitForStatus(t, store, job.ID, queue.StatusCompleted)
	if stubs.extractor.Calls() != 0 || stubs.recognizer.Calls() != 0 {
		t.Fatal("recovery re-ran stages before translation")
	}
	if stubs.translator.Calls() != 1 {
		t.Fatalf("translator calls = %d, want 1", stubs.translator.Calls())
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stubs := newStubSet()
	stubs.translator.health.Ready = false
	stubs.translator.health.Detail = "missing credentials"
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(stubs.stageSet())
	testsupport.NewJob(t, store, "/videos/clip.mp4")

	summary := mgr.Status(context.Background())
	if summary.Running {
		t.Fatal("manager should not be running")
	}
	if summary.QueueStats[queue.StatusQueued] != 1 {
		t.Fatalf("queued = %d, want 1", summary.QueueStats[queue.StatusQueued])
	}
	health, ok := summary.StageHealth["translator"]
	if !ok || health.Ready {
		t.Fatalf("unexpected translator health %+v", health)
	}
	if len(summary.StageHealth) != 5 {
		t.Fatalf("stage health entries = %d, want 5", len(summary.StageHealth))
	}
}

func TestSubmitValidatesInput(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop(),
		workflow.WithProfile(profiler.Profile{Device: profiler.DeviceCPU, Model: "base", MaxInputBytes: 4096}),
	)
	dir := testsupport.BaseDir(cfg)
	video := filepath.Join(dir, "talk.mp4")
	testsupport.WriteFile(t, video, 1024)
	large := filepath.Join(dir, "long.mkv")
	testsupport.WriteFile(t, large, 8192)
	text := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, text, 10)

	ctx := context.Background()
	tests := []struct {
		name  string
		input string
		opts  workflow.JobOptions
	}{
		{"unsupported extension", text, workflow.JobOptions{}},
		{"too large", large, workflow.JobOptions{}},
		{"missing file", filepath.Join(dir, "missing.mp4"), workflow.JobOptions{}},
		{"unknown mode", video, workflow.JobOptions{Mode: "karaoke"}},
		{"unknown model", video, workflow.JobOptions{Model: "gigantic"}},
		{"unknown language", video, workflow.JobOptions{TargetLanguage: "not a language"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := mgr.Submit(ctx, tt.input, tt.opts); err == nil {
				t.Fatal("expected submit error")
			}
		})
	}

	id, err := mgr.Submit(ctx, video, workflow.JobOptions{Mode: "source", Model: "small"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	job, err := store.GetByID(ctx, id)
	if err != nil || job == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != queue.StatusQueued || job.InputBytes != 1024 {
		t.Fatalf("unexpected job status=%q bytes=%d", job.Status, job.InputBytes)
	}
	if job.Options.Mode != "source" || job.Options.Model != "small" {
		t.Fatalf("unexpected options %+v", job.Options)
	}
	if job.Options.Style.FontSize != cfg.Subtitles.Style.FontSize {
		t.Fatalf("font size = %d, want configured %d", job.Options.Style.FontSize, cfg.Subtitles.Style.FontSize)
	}
}

func TestPollMissingJob(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	if _, err := mgr.Poll(context.Background(), 42); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Poll err = %v, want not found", err)
	}
}

func TestManagerStopWaitsForWorkers(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stubs := newStubSet()
	var once sync.Once
	started := make(chan struct{})
	stubs.recognizer.executeHook = func(ctx context.Context, _ *queue.Job) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}
	mgr := workflow.NewManager(cfg, store, logging.NewNop(), workflow.WithPreflight(noPreflight), workflow.WithSleep(noSleep))
	mgr.ConfigureStages(stubs.stageSet())
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := testsupport.NewJob(t, store, "/videos/clip.mp4")
	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("recognizer never started")
	}
	mgr.Stop()

	got, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusExtracted {
		t.Fatalf("status after stop = %q, want extracted", got.Status)
	}
}
