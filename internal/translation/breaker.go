package translation

import "time"

// BreakerState is the circuit breaker's current mode.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a consecutive-failure circuit breaker. It holds no lock and
// reads no clock; callers pass the time and serialize access.
//
// Closed: every call is allowed; Threshold consecutive failures open it.
// Open: calls are refused until Cooldown has elapsed, then one probe is
// allowed and the breaker is half-open.
// HalfOpen: further calls are refused while the probe is outstanding; a
// successful probe closes the breaker, a failed one reopens it.
type Breaker struct {
	Threshold int
	Cooldown  time.Duration

	state    BreakerState
	failures int
	openedAt time.Time
}

// NewBreaker returns a closed breaker.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &Breaker{Threshold: threshold, Cooldown: cooldown}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	return b.state
}

// Allow reports whether a call may proceed at now.
func (b *Breaker) Allow(now time.Time) bool {
	switch b.state {
	case BreakerOpen:
		if now.Sub(b.openedAt) < b.Cooldown {
			return false
		}
		b.state = BreakerHalfOpen
		return true
	case BreakerHalfOpen:
		return false
	default:
		return true
	}
}

// Record feeds a call outcome into the breaker.
func (b *Breaker) Record(success bool, now time.Time) {
	if success {
		b.state = BreakerClosed
		b.failures = 0
		return
	}
	switch b.state {
	case BreakerHalfOpen:
		b.trip(now)
	case BreakerClosed:
		b.failures++
		if b.failures >= b.Threshold {
			b.trip(now)
		}
	}
}

// Abandon withdraws an outstanding call whose outcome is unknown, such as
// one cut short by shutdown. A half-open probe returns the breaker to open
// without restarting the cooldown; a closed breaker is unaffected.
func (b *Breaker) Abandon() {
	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
	}
}

func (b *Breaker) trip(now time.Time) {
	b.state = BreakerOpen
	b.openedAt = now
	b.failures = 0
}
