package main

import (
	"fmt"
	"strings"
	"testing"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("bisub daemon", statusWarn, "Not running", false)
	want := fmt.Sprintf("  %-*s %s", statusLabelWidth, "bisub daemon:", "[WARN] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Output", statusOK, "writable", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green colored line, got %q", got)
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable([]string{"Status", "Jobs"}, [][]string{{"queued", "3"}, {"failed", "12"}}, []columnAlignment{alignLeft, alignRight})
	requireContains(t, out, "queued")
	requireContains(t, out, "│    3 │")
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestStatusCommandWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== System ==")
	requireContains(t, out, "Not running")
	requireContains(t, out, "Credentials configured")
	requireContains(t, out, "Queue is empty")
}

func TestTruncate(t *testing.T) {
	if got := truncate("a-very-long-file-name.mp4", 10); got != "a-very-..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short.mp4", 10); got != "short.mp4" {
		t.Fatalf("truncate = %q", got)
	}
}
