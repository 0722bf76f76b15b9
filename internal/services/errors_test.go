package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"bisub/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrMux, "muxing", "burn-in", "ffmpeg failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrMux) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"muxing", "burn-in", "ffmpeg failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetailsClassifiesMarkers(t *testing.T) {
	err := fmt.Errorf("stage attempt: %w", services.Wrap(services.ErrRecognition, "recognizing", "transcribe", "whisperx exited", errors.New("exit 1")))
	details := services.Details(err)
	if details.Kind != "recognition" {
		t.Fatalf("expected recognition kind, got %q", details.Kind)
	}
	if details.Operation != "transcribe" {
		t.Fatalf("expected transcribe operation, got %q", details.Operation)
	}
	if details.Message != "whisperx exited" {
		t.Fatalf("unexpected message %q", details.Message)
	}
	if details.Hint == "" {
		t.Fatal("expected hint")
	}

	if got := services.Details(context.DeadlineExceeded).Kind; got != "timeout" {
		t.Fatalf("expected timeout kind for deadline, got %q", got)
	}
	if got := services.Details(nil); got.Kind != "" {
		t.Fatalf("expected empty details for nil, got %+v", got)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", services.Wrap(services.ErrTransient, "extracting", "ffmpeg", "", nil), true},
		{"extraction", services.Wrap(services.ErrExtraction, "extracting", "ffmpeg", "", nil), true},
		{"deadline", context.DeadlineExceeded, true},
		{"configuration", services.Wrap(services.ErrConfiguration, "", "", "missing ffmpeg", nil), false},
		{"sync defect", services.Wrap(services.ErrSynchronization, "synchronizing", "check", "", nil), false},
		{"cancelled", services.ErrCancelled, false},
		{"context cancel", context.Canceled, false},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Fatalf("%s: Retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
