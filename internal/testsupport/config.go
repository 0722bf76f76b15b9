// Package testsupport builds throwaway configs, stores, and input files for
// package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"bisub/internal/config"
)

// ConfigOption adjusts a test config. base is the temp directory that holds
// the config's staging, output, and log directories.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns the default config rooted in a fresh temp directory with
// test translation credentials and no stage retry backoff. The directories
// themselves are not created.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		StagingDir: filepath.Join(base, "staging"),
		OutputDir:  filepath.Join(base, "output"),
		LogDir:     filepath.Join(base, "logs"),
	}
	cfg.Translation.AppID = "test-app"
	cfg.Translation.AppKey = "test-key"
	cfg.Workflow.StageRetryBackoff = 0

	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithCredentials overrides the translation credentials.
func WithCredentials(appID, appKey string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Translation.AppID = appID
		cfg.Translation.AppKey = appKey
	}
}

// WithWorkers sets the orchestrator pool size.
func WithWorkers(n int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Workflow.Workers = n
	}
}

// WithStubbedBinaries puts no-op executables named names (ffmpeg, ffprobe,
// and uvx when empty) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, _ *config.Config) {
		t.Helper()
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "uvx"}
		}
		binDir := filepath.Join(base, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp directory backing cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
