package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"bisub/internal/queue"
	"bisub/internal/testsupport"
)

func TestSubmitListShowCancelRetry(t *testing.T) {
	env := setupCLITestEnv(t)
	video := filepath.Join(env.baseDir, "Morning.mp4")
	testsupport.WriteFile(t, video, 2048)

	out, _, err := runCLI(t, []string{"submit", video, "--mode", "translated", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var submitted struct {
		JobIDs []int64 `json:"job_ids"`
	}
	if err := json.Unmarshal([]byte(out), &submitted); err != nil {
		t.Fatalf("decode submit output %q: %v", out, err)
	}
	if len(submitted.JobIDs) != 1 || submitted.JobIDs[0] != 1 {
		t.Fatalf("unexpected job ids %v", submitted.JobIDs)
	}

	out, _, err = runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Morning.mp4")
	requireContains(t, out, "queued")

	out, _, err = runCLI(t, []string{"show", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Job 1: queued")

	out, _, err = runCLI(t, []string{"queue", "cancel", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("queue cancel: %v", err)
	}
	requireContains(t, out, "Job 1 cancelled")

	out, _, err = runCLI(t, []string{"show", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("show after cancel: %v", err)
	}
	requireContains(t, out, "Job 1: failed")
	requireContains(t, out, queue.CancelReason)

	if _, _, err := runCLI(t, []string{"queue", "cancel", "1"}, env.configPath); err == nil {
		t.Fatal("expected cancelling a finished job to fail")
	}

	out, _, err = runCLI(t, []string{"queue", "retry", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retrying 1 job(s)")

	out, _, err = runCLI(t, []string{"queue", "list", "--status", "queued"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list --status: %v", err)
	}
	requireContains(t, out, "Morning.mp4")
}

func TestSubmitRejectsUnsupportedInput(t *testing.T) {
	env := setupCLITestEnv(t)
	doc := filepath.Join(env.baseDir, "notes.txt")
	testsupport.WriteFile(t, doc, 16)

	_, _, err := runCLI(t, []string{"submit", doc}, env.configPath)
	if err == nil {
		t.Fatal("expected unsupported extension to be rejected")
	}
	requireContains(t, err.Error(), "unsupported file type")
}

func TestQueueClearRequiresFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"queue", "clear"}, env.configPath); err == nil {
		t.Fatal("expected clear without flags to fail")
	}
	out, _, err := runCLI(t, []string{"queue", "clear", "--completed", "--failed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Removed 0 job(s)")
}

func TestStagingCleanOrphaned(t *testing.T) {
	env := setupCLITestEnv(t)
	video := filepath.Join(env.baseDir, "Morning.mp4")
	testsupport.WriteFile(t, video, 2048)
	if _, _, err := runCLI(t, []string{"submit", video}, env.configPath); err != nil {
		t.Fatalf("submit: %v", err)
	}

	live := filepath.Join(env.cfg.Paths.StagingDir, "job-1")
	orphan := filepath.Join(env.cfg.Paths.StagingDir, "job-999")
	for _, dir := range []string{live, orphan} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	out, _, err := runCLI(t, []string{"staging", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "job-999")

	out, _, err = runCLI(t, []string{"staging", "clean", "--orphaned"}, env.configPath)
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 1 staging directory")
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatalf("expected orphan removed, stat err=%v", err)
	}
	if _, err := os.Stat(live); err != nil {
		t.Fatalf("expected live staging kept: %v", err)
	}
}
