package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"bisub/internal/config"
	"bisub/internal/logging"
	"bisub/internal/services"
)

const (
	defaultMaxUnits       = 20
	defaultMaxChars       = 2000
	defaultConcurrency    = 2
	defaultMaxAttempts    = 4
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 8 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// ErrCircuitOpen marks units refused because the breaker was open.
var ErrCircuitOpen = errors.New("translation circuit open")

// Client translates units through a Transport.
type Client struct {
	transport Transport
	logger    *slog.Logger

	maxUnits       int
	maxChars       int
	concurrency    int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	requestTimeout time.Duration

	limiter *rate.Limiter

	breakerMu sync.Mutex
	breaker   *Breaker

	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	jitter func(time.Duration) time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBatchLimits bounds units and characters per request.
func WithBatchLimits(maxUnits, maxChars int) Option {
	return func(c *Client) {
		c.maxUnits = maxUnits
		c.maxChars = maxChars
	}
}

// WithConcurrency bounds in-flight batches per Translate call.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		c.concurrency = n
	}
}

// WithRetry sets the attempt ceiling and backoff range.
func WithRetry(maxAttempts int, initial, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.initialBackoff = initial
		c.maxBackoff = maxDelay
	}
}

// WithRateLimit sets the token bucket. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBreaker installs the circuit breaker policy.
func WithBreaker(b *Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// WithRequestTimeout bounds each transport call.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithClock overrides time and sleeping (useful for tests).
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient constructs a client. Without options it sends 20 units per
// batch, two batches at a time, with no rate limit and a breaker that opens
// after five failed batches.
func NewClient(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport:      transport,
		logger:         logging.NewNop(),
		maxUnits:       defaultMaxUnits,
		maxChars:       defaultMaxChars,
		concurrency:    defaultConcurrency,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		requestTimeout: defaultRequestTimeout,
		limiter:        rate.NewLimiter(rate.Inf, 1),
		breaker:        NewBreaker(5, 30*time.Second),
		now:            time.Now,
		sleep:          sleepContext,
		jitter:         fullJitter,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency <= 0 {
		c.concurrency = 1
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 1
	}
	return c
}

// NewClientFromConfig builds a client and its HTTP transport from config.
func NewClientFromConfig(cfg config.Translation, logger *slog.Logger) *Client {
	transport := NewBaiduTransport(cfg.Endpoint, cfg.AppID, cfg.AppKey, nil)
	return NewClient(
		transport,
		WithLogger(logger),
		WithBatchLimits(cfg.BatchMaxUnits, cfg.BatchMaxChars),
		WithConcurrency(cfg.Concurrency),
		WithRetry(cfg.MaxAttempts, time.Duration(cfg.InitialBackoffMS)*time.Millisecond, time.Duration(cfg.MaxBackoffMS)*time.Millisecond),
		WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
		WithBreaker(NewBreaker(cfg.BreakerThreshold, time.Duration(cfg.BreakerCooldownSeconds)*time.Second)),
		WithRequestTimeout(time.Duration(cfg.RequestTimeoutSeconds)*time.Second),
	)
}

// BreakerState reports the shared breaker's state.
func (c *Client) BreakerState() BreakerState {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()
	return c.breaker.State()
}

// Translate returns one Result per unit, aligned with units by position and
// Index. Per-unit failures are reported in the results. A ctx deadline
// marks the units it cut off as failed; the error is non-nil only when ctx
// is cancelled.
func (c *Client) Translate(ctx context.Context, units []Unit) ([]Result, error) {
	results, _, err := c.TranslateWithStats(ctx, units)
	return results, err
}

// TranslateWithStats is Translate plus a summary of the work done.
func (c *Client) TranslateWithStats(ctx context.Context, units []Unit) ([]Result, Stats, error) {
	results := make([]Result, len(units))
	stats := Stats{Units: len(units)}

	positions := make(map[dedupKey][]int)
	var order []dedupKey
	for i, unit := range units {
		results[i] = Result{Index: unit.Index, Status: StatusFailed}
		text := normalizeText(unit.Text)
		if text == "" {
			results[i].Status = StatusOK
			continue
		}
		key := dedupKey{source: unit.Source, target: unit.Target, text: text}
		if _, seen := positions[key]; !seen {
			order = append(order, key)
		}
		positions[key] = append(positions[key], i)
	}
	stats.Unique = len(order)

	batches := buildBatches(order, c.maxUnits, c.maxChars)
	stats.Batches = len(batches)

	var statsMu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.concurrency)
	for _, b := range batches {
		group.Go(func() error {
			translated, requests, err := c.dispatch(groupCtx, b)
			statsMu.Lock()
			stats.Requests += requests
			if errors.Is(err, ErrCircuitOpen) {
				stats.ShortCircuited += len(b.keys)
			}
			statsMu.Unlock()
			if err != nil && errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			// Each key's positions belong to exactly one batch.
			for i, key := range b.keys {
				for _, pos := range positions[key] {
					if err != nil {
						results[pos].Status = StatusFailed
						results[pos].Error = err.Error()
						continue
					}
					results[pos].Status = StatusOK
					results[pos].Text = translated[i]
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, stats, err
	}

	for _, r := range results {
		if !r.OK() {
			stats.Failed++
		}
	}
	c.logger.Debug("translation finished",
		logging.Int("units", stats.Units),
		logging.Int("unique", stats.Unique),
		logging.Int("batches", stats.Batches),
		logging.Int("requests", stats.Requests),
		logging.Int("failed", stats.Failed),
		logging.String(logging.FieldEventType, "translation_complete"),
	)
	return results, stats, nil
}

// dispatch runs one batch through the breaker, limiter, and retry loop.
func (c *Client) dispatch(ctx context.Context, b batch) ([]string, int, error) {
	if !c.allow() {
		return nil, 0, ErrCircuitOpen
	}

	req := Request{Source: b.source, Target: b.target, Texts: b.texts()}
	requests := 0
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				c.abandon()
				return nil, requests, ctx.Err()
			}
			lastErr = err
			break
		}
		requests++
		translated, err := c.call(ctx, req)
		if err == nil {
			c.record(true)
			return translated, requests, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			c.abandon()
			return nil, requests, ctx.Err()
		}
		if !IsTransient(err) || attempt == c.maxAttempts {
			break
		}
		delay := c.jitter(c.backoffDelay(attempt))
		c.logger.Warn("translation batch failed, retrying",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", c.maxAttempts),
			logging.Int("units", len(req.Texts)),
			logging.Duration("backoff", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "translation_retry"),
		)
		if err := c.sleep(ctx, delay); err != nil {
			c.abandon()
			return nil, requests, err
		}
	}

	c.record(false)
	hint := ""
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		hint = apiErr.Hint()
	}
	c.logger.Warn("translation batch failed",
		logging.Int("units", len(req.Texts)),
		logging.Int("requests", requests),
		logging.Error(lastErr),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldEventType, "translation_batch_failed"),
	)
	return nil, requests, services.Wrap(services.ErrTranslation, "translating", "translate batch",
		fmt.Sprintf("batch of %d failed after %d request(s)", len(req.Texts), requests), lastErr)
}

func (c *Client) call(ctx context.Context, req Request) ([]string, error) {
	if c.transport == nil {
		return nil, errors.New("translation transport unavailable")
	}
	callCtx := ctx
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	translated, err := c.transport.Translate(callCtx, req)
	if err != nil {
		return nil, err
	}
	if len(translated) != len(req.Texts) {
		return nil, &APIError{Code: "mismatch", Message: fmt.Sprintf("expected %d translations, got %d", len(req.Texts), len(translated))}
	}
	for i := range translated {
		translated[i] = strings.TrimSpace(translated[i])
	}
	return translated, nil
}

func (c *Client) allow() bool {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()
	return c.breaker.Allow(c.now())
}

func (c *Client) abandon() {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()
	c.breaker.Abandon()
}

func (c *Client) record(success bool) {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()
	before := c.breaker.State()
	c.breaker.Record(success, c.now())
	if after := c.breaker.State(); after != before {
		c.logger.Info("translation breaker state changed",
			logging.String("from", before.String()),
			logging.String("to", after.String()),
			logging.String(logging.FieldEventType, "translation_breaker"),
		)
	}
}

// backoffDelay doubles from the initial delay per attempt, capped at the
// maximum. attempt is 1-based.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.initialBackoff <= 0 {
		return 0
	}
	delay := c.initialBackoff
	for i := 1; i < attempt; i++ {
		if c.maxBackoff > 0 && delay > c.maxBackoff/2 {
			delay = c.maxBackoff
			break
		}
		delay *= 2
	}
	if c.maxBackoff > 0 && delay > c.maxBackoff {
		delay = c.maxBackoff
	}
	return delay
}

// fullJitter picks a delay in [d/2, d].
func fullJitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(d-half)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
