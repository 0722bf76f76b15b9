package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bisub/internal/config"
	"bisub/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !result.Blocking() {
		t.Fatal("missing directory should block")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckTranslation_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("appid") != "id" {
			w.Write([]byte(`{"error_code":"52003","error_msg":"UNAUTHORIZED USER"}`))
			return
		}
		w.Write([]byte(`{"from":"en","to":"zh","trans_result":[{"src":"hello","dst":"你好"}]}`))
	}))
	defer srv.Close()

	result := CheckTranslation(context.Background(), config.Translation{Endpoint: srv.URL, AppID: "id", AppKey: "key"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckTranslation_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error_code":"54001","error_msg":"Invalid Sign"}`))
	}))
	defer srv.Close()

	result := CheckTranslation(context.Background(), config.Translation{Endpoint: srv.URL, AppID: "id", AppKey: "wrong"})
	if result.Passed {
		t.Fatal("expected failure for bad sign")
	}
	if !strings.Contains(result.Detail, "app_key") {
		t.Fatalf("expected credential hint, got %q", result.Detail)
	}
	if result.Blocking() {
		t.Fatal("translation problems must not block processing")
	}
}

func TestCheckTranslation_MissingCredentials(t *testing.T) {
	result := CheckTranslation(context.Background(), config.Translation{})
	if result.Passed || result.Blocking() {
		t.Fatalf("expected advisory failure, got %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_StubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	if blocking := Blocking(results); len(blocking) != 0 {
		t.Fatalf("unexpected blocking results %+v", blocking)
	}
	names := make(map[string]bool, len(results))
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Staging directory", "Output directory", "FFmpeg", "FFprobe", "Translation credentials"} {
		if !names[want] {
			t.Errorf("missing check %q", want)
		}
	}
}

func TestRunAll_MissingFFmpegBlocks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpeg = "bisub-no-such-ffmpeg"
	cfg.Tools.FFprobe = "bisub-no-such-ffprobe"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	blocking := Blocking(RunAll(context.Background(), cfg))
	if len(blocking) < 2 {
		t.Fatalf("expected ffmpeg and ffprobe to block, got %+v", blocking)
	}
}
