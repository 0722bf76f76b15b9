package daemonctl

import (
	"context"
	"errors"
	"testing"

	"bisub/internal/daemon"
	"bisub/internal/testsupport"
)

func TestBuildDependencySummary(t *testing.T) {
	tests := []struct {
		name     string
		deps     []DependencyStatus
		severity string
		detail   string
	}{
		{"none", nil, "info", "No dependency checks configured"},
		{"all present", []DependencyStatus{{Available: true}, {Available: true}}, "ok", "2/2 available"},
		{"optional missing", []DependencyStatus{{Available: true}, {Optional: true}}, "warn", "1/2 available (missing: 0 required, 1 optional)"},
		{"required missing", []DependencyStatus{{}, {Optional: true}}, "error", "0/2 available (missing: 1 required, 1 optional)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildDependencySummary(tt.deps)
			if got.Severity != tt.severity || got.Detail != tt.detail {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestStatusSnapshotWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, store, "/videos/a.mp4")

	snap, err := BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Running {
		t.Fatal("expected daemon not running")
	}
	if snap.QueueStats["queued"] != 1 {
		t.Fatalf("queued = %d, want 1", snap.QueueStats["queued"])
	}
	if len(snap.Directories) != 3 {
		t.Fatalf("directories = %d, want 3", len(snap.Directories))
	}
	for _, line := range snap.Directories {
		if line.Severity != "ok" {
			t.Fatalf("unexpected directory check %+v", line)
		}
	}
	if snap.SystemChecks[0].Severity != "warn" {
		t.Fatalf("expected daemon warning, got %+v", snap.SystemChecks[0])
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := StopAndTerminate(cfg, 0); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("err = %v, want ErrDaemonNotRunning", err)
	}
}

func TestBuildSystemChecksRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	lines := BuildSystemChecks(cfg, daemon.ProbeResult{Running: true, PID: 42})
	if lines[0].Severity != "ok" || lines[0].Detail != "Running (pid 42)" {
		t.Fatalf("unexpected daemon line %+v", lines[0])
	}
	if lines[1].Severity != "ok" {
		t.Fatalf("expected configured credentials, got %+v", lines[1])
	}
}
