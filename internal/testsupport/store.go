package testsupport

import (
	"context"
	"testing"

	"bisub/internal/config"
	"bisub/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a queued job for inputPath with default bilingual options.
func NewJob(t testing.TB, store *queue.Store, inputPath string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), inputPath, 1024, queue.Options{Mode: "bilingual", SourceLanguage: "auto"})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}

// SetStatus forces a job into status and persists it.
func SetStatus(t testing.TB, store *queue.Store, job *queue.Job, status queue.Status) {
	t.Helper()

	job.Status = status
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("store.Update: %v", err)
	}
}
