package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeTransport struct {
	mu    sync.Mutex
	calls int
	seen  []string
	fn    func(call int, req Request) ([]string, error)
}

func (f *fakeTransport) Translate(ctx context.Context, req Request) ([]string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.seen = append(f.seen, req.Texts...)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(call, req)
	}
	return echo(req), nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func echo(req Request) []string {
	out := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = req.Target + ":" + text
	}
	return out
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(transport Transport, opts ...Option) *Client {
	base := []Option{WithClock(nil, noSleep), WithRetry(3, time.Millisecond, 4*time.Millisecond)}
	return NewClient(transport, append(base, opts...)...)
}

func unitsFor(texts ...string) []Unit {
	units := make([]Unit, len(texts))
	for i, text := range texts {
		units[i] = Unit{Index: i * 2, Text: text, Source: "en", Target: "zh"}
	}
	return units
}

func TestTranslatePreservesOrderUnderConcurrency(t *testing.T) {
	transport := &fakeTransport{fn: func(call int, req Request) ([]string, error) {
		// Later calls finish first.
		time.Sleep(time.Duration(10-call%10) * time.Millisecond)
		return echo(req), nil
	}}
	client := newTestClient(transport, WithBatchLimits(3, 0), WithConcurrency(4))

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = fmt.Sprintf("line %d", i)
	}
	units := unitsFor(texts...)
	results, err := client.Translate(context.Background(), units)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(results) != len(units) {
		t.Fatalf("expected %d results, got %d", len(units), len(results))
	}
	for i, r := range results {
		if r.Index != units[i].Index {
			t.Fatalf("result %d has index %d, want %d", i, r.Index, units[i].Index)
		}
		if !r.OK() || r.Text != "zh:"+texts[i] {
			t.Fatalf("result %d = %+v", i, r)
		}
	}
}

func TestTranslateDeduplicatesIdenticalText(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(transport)

	units := unitsFor("Hello", "Thanks", "Hello", " Hello ", "", "Thanks")
	results, stats, err := client.TranslateWithStats(context.Background(), units)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(transport.seen) != 2 {
		t.Fatalf("expected 2 unique texts sent, got %v", transport.seen)
	}
	if stats.Unique != 2 || stats.Units != 6 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if results[2].Text != "zh:Hello" || results[3].Text != "zh:Hello" || results[5].Text != "zh:Thanks" {
		t.Fatalf("dedup fan-out failed: %+v", results)
	}
	if !results[4].OK() || results[4].Text != "" {
		t.Fatalf("blank unit should pass through empty: %+v", results[4])
	}
}

func TestTranslateRetriesTransientFailures(t *testing.T) {
	transport := &fakeTransport{fn: func(call int, req Request) ([]string, error) {
		if call < 3 {
			return nil, &APIError{Code: "52001", Message: "TIMEOUT"}
		}
		return echo(req), nil
	}}
	var delays []time.Duration
	client := NewClient(transport,
		WithRetry(4, 10*time.Millisecond, 15*time.Millisecond),
		WithClock(nil, func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	)

	results, stats, err := client.TranslateWithStats(context.Background(), unitsFor("one", "two"))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if stats.Requests != 3 {
		t.Fatalf("expected 3 requests, got %d", stats.Requests)
	}
	for _, r := range results {
		if !r.OK() {
			t.Fatalf("expected success after retries, got %+v", r)
		}
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %v", delays)
	}
	if delays[0] < 5*time.Millisecond || delays[0] > 10*time.Millisecond {
		t.Fatalf("first delay %v outside jitter window", delays[0])
	}
	if delays[1] < 7500*time.Microsecond || delays[1] > 15*time.Millisecond {
		t.Fatalf("second delay %v outside capped jitter window", delays[1])
	}
}

func TestTranslateDoesNotRetryPermanentFailures(t *testing.T) {
	transport := &fakeTransport{fn: func(int, Request) ([]string, error) {
		return nil, &APIError{Code: "54001", Message: "Invalid Sign"}
	}}
	client := newTestClient(transport)

	results, err := client.Translate(context.Background(), unitsFor("one", "two"))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if transport.callCount() != 1 {
		t.Fatalf("expected a single request, got %d", transport.callCount())
	}
	for _, r := range results {
		if r.OK() || r.Error == "" {
			t.Fatalf("expected failed result with error, got %+v", r)
		}
	}
}

func TestTranslatePartialFailureKeepsAlignment(t *testing.T) {
	transport := &fakeTransport{fn: func(_ int, req Request) ([]string, error) {
		for _, text := range req.Texts {
			if strings.Contains(text, "bad") {
				return nil, &APIError{HTTPStatus: 503, Message: "unavailable"}
			}
		}
		return echo(req), nil
	}}
	client := newTestClient(transport, WithBatchLimits(1, 0), WithBreaker(NewBreaker(10, time.Minute)))

	results, err := client.Translate(context.Background(), unitsFor("good 1", "bad 2", "good 3"))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].OK() || results[1].OK() || !results[2].OK() {
		t.Fatalf("unexpected statuses: %+v", results)
	}
	if results[1].Index != 2 {
		t.Fatalf("failed result lost its index: %+v", results[1])
	}
}

func TestTranslateBreakerShortCircuits(t *testing.T) {
	transport := &fakeTransport{fn: func(int, Request) ([]string, error) {
		return nil, &APIError{Code: "58001", Message: "unsupported"}
	}}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := NewClient(transport,
		WithBatchLimits(1, 0),
		WithConcurrency(1),
		WithBreaker(NewBreaker(2, time.Minute)),
		WithClock(func() time.Time { return now }, noSleep),
	)

	results, stats, err := client.TranslateWithStats(context.Background(), unitsFor("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if transport.callCount() != 2 {
		t.Fatalf("expected breaker to stop calls after 2, got %d", transport.callCount())
	}
	if stats.ShortCircuited != 2 {
		t.Fatalf("expected 2 short-circuited units, got %d", stats.ShortCircuited)
	}
	for _, r := range results[2:] {
		if r.OK() || !strings.Contains(r.Error, ErrCircuitOpen.Error()) {
			t.Fatalf("expected circuit-open failure, got %+v", r)
		}
	}
	if client.BreakerState() != BreakerOpen {
		t.Fatalf("expected breaker open, got %s", client.BreakerState())
	}
}

func TestTranslateReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &fakeTransport{fn: func(int, Request) ([]string, error) {
		cancel()
		return nil, context.Canceled
	}}
	client := newTestClient(transport)

	_, err := client.Translate(ctx, unitsFor("x"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTranslateDeadlineFailsUnitsWithoutError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	transport := &fakeTransport{fn: func(int, Request) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	client := newTestClient(transport, WithBatchLimits(1, 100), WithConcurrency(1))

	results, err := client.Translate(ctx, unitsFor("one", "two", "three"))
	if err != nil {
		t.Fatalf("expected deadline absorbed into results, got %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.OK() || r.Index != i*2 {
			t.Fatalf("result %d = %+v, want failed with index %d", i, r, i*2)
		}
	}
	if client.BreakerState() != BreakerClosed {
		t.Fatalf("deadline must not count against the endpoint, breaker %s", client.BreakerState())
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&APIError{Code: "52001"}, true},
		{&APIError{Code: "54003"}, true},
		{&APIError{HTTPStatus: 429}, true},
		{&APIError{HTTPStatus: 502}, true},
		{&APIError{Code: "52003"}, false},
		{&APIError{Code: "54004"}, false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{context.Canceled, false},
		{errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
