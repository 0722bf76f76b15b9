package translation

import (
	"testing"
	"time"
)

func TestBreakerTransitions(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		if !b.Allow(start) {
			t.Fatalf("closed breaker refused call %d", i)
		}
		b.Record(false, start)
	}
	if b.State() != BreakerClosed {
		t.Fatalf("expected closed below threshold, got %s", b.State())
	}

	b.Record(true, start)
	b.Record(false, start)
	b.Record(false, start)
	if b.State() != BreakerClosed {
		t.Fatal("success should reset the failure run")
	}
	b.Record(false, start)
	if b.State() != BreakerOpen {
		t.Fatalf("expected open after threshold, got %s", b.State())
	}

	if b.Allow(start.Add(30 * time.Second)) {
		t.Fatal("open breaker allowed a call during cooldown")
	}

	probeAt := start.Add(time.Minute)
	if !b.Allow(probeAt) {
		t.Fatal("expected a probe after cooldown")
	}
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}
	if b.Allow(probeAt) {
		t.Fatal("half-open breaker allowed a second concurrent call")
	}

	b.Record(false, probeAt)
	if b.State() != BreakerOpen {
		t.Fatalf("failed probe should reopen, got %s", b.State())
	}
	if b.Allow(probeAt.Add(59 * time.Second)) {
		t.Fatal("cooldown should restart after a failed probe")
	}

	if !b.Allow(probeAt.Add(time.Minute)) {
		t.Fatal("expected second probe")
	}
	b.Record(true, probeAt.Add(time.Minute))
	if b.State() != BreakerClosed {
		t.Fatalf("successful probe should close, got %s", b.State())
	}
}

func TestBreakerAbandonReleasesProbe(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(1, time.Second)
	b.Record(false, start)
	if !b.Allow(start.Add(time.Second)) {
		t.Fatal("expected probe")
	}
	b.Abandon()
	if b.State() != BreakerOpen {
		t.Fatalf("expected open after abandon, got %s", b.State())
	}
	if !b.Allow(start.Add(time.Second)) {
		t.Fatal("abandoned probe should be re-grantable without a new cooldown")
	}
}

func TestBuildBatchesRespectsLimits(t *testing.T) {
	keys := []dedupKey{
		{target: "zh", text: "aaaa"},
		{target: "zh", text: "bbbb"},
		{target: "zh", text: "cccc"},
		{target: "zh", text: "dddddddddddd"},
		{target: "en", text: "ee"},
	}
	batches := buildBatches(keys, 2, 10)
	if len(batches) != 4 {
		t.Fatalf("expected 4 batches, got %d", len(batches))
	}
	if len(batches[0].keys) != 2 || len(batches[1].keys) != 1 {
		t.Fatalf("unexpected grouping: %+v", batches)
	}
	if batches[2].keys[0].text != "dddddddddddd" || len(batches[2].keys) != 1 {
		t.Fatalf("oversized text should travel alone: %+v", batches[2])
	}
	if batches[3].target != "en" {
		t.Fatalf("language pair change should start a new batch: %+v", batches[3])
	}
}
