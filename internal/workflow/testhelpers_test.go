package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"bisub/internal/config"
	"bisub/internal/logging"
	"bisub/internal/preflight"
	"bisub/internal/queue"
	"bisub/internal/stage"
	"bisub/internal/testsupport"
	"bisub/internal/workflow"
)

type stubStage struct {
	name        string
	mu          sync.Mutex
	calls       int
	prepareErr  error
	executeHook func(context.Context, *queue.Job) error
	health      stage.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(context.Context, *queue.Job) error {
	return s.prepareErr
}

func (s *stubStage) Execute(ctx context.Context, job *queue.Job) error {
	s.mu.Lock()
	s.calls++
	hook := s.executeHook
	s.mu.Unlock()
	if hook != nil {
		return hook(ctx, job)
	}
	return nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func (s *stubStage) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSet struct {
	extractor, recognizer, translator, synchronizer, muxer *stubStage
}

func newStubSet() *stubSet {
	return &stubSet{
		extractor:    newStubStage("extractor"),
		recognizer:   newStubStage("recognizer"),
		translator:   newStubStage("translator"),
		synchronizer: newStubStage("synchronizer"),
		muxer:        newStubStage("muxer"),
	}
}

func (s *stubSet) stageSet() workflow.StageSet {
	return workflow.StageSet{
		Extractor:    s.extractor,
		Recognizer:   s.recognizer,
		Translator:   s.translator,
		Synchronizer: s.synchronizer,
		Muxer:        s.muxer,
	}
}

func noPreflight(context.Context, *config.Config) []preflight.Result { return nil }

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func testConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Workflow.QueuePollInterval = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return cfg
}

func startManager(t *testing.T, cfg *config.Config, store *queue.Store, set workflow.StageSet) *workflow.Manager {
	t.Helper()
	mgr := workflow.NewManager(cfg, store, logging.NewNop(),
		workflow.WithPreflight(noPreflight),
		workflow.WithSleep(noSleep),
	)
	mgr.ConfigureStages(set)
	ctx, cancel := context.WithCancel(context.Background())
	if err := mgr.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		mgr.Stop()
		cancel()
	})
	return mgr
}

func waitForJob(t *testing.T, store *queue.Store, id int64, done func(*queue.Job) bool) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if job != nil && done(job) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetByID(context.Background(), id)
	t.Fatalf("timed out waiting for job %d (last status %v)", id, job)
	return nil
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, status queue.Status) *queue.Job {
	t.Helper()
	return waitForJob(t, store, id, func(j *queue.Job) bool { return j.Status == status })
}
