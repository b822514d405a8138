package poisearch

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker guards calls to the external POI search service. Closed passes
// calls through and counts consecutive failures; at the threshold it opens
// and rejects immediately; after the cooldown it half-opens and admits a
// small probe quota. A probe success closes the breaker, a probe failure
// reopens it. Callers must treat a rejected call as a normal degraded-result
// signal, not a fatal error.
type Breaker struct {
	mu         sync.Mutex
	state      BreakerState
	failures   int
	threshold  int
	cooldown   time.Duration
	probeQuota int
	probes     int
	openedAt   time.Time

	now          func() time.Time
	onTransition func(from, to BreakerState)
}

// NewBreaker builds a closed breaker. threshold is the consecutive-failure
// count that opens it, cooldown the wait before half-opening, probeQuota the
// number of calls admitted while half-open.
func NewBreaker(threshold int, cooldown time.Duration, probeQuota int) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	if probeQuota < 1 {
		probeQuota = 1
	}
	return &Breaker{
		threshold:  threshold,
		cooldown:   cooldown,
		probeQuota: probeQuota,
		now:        time.Now,
	}
}

// WithClock overrides the breaker's clock. Test hook.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// OnTransition registers a callback invoked (under the breaker lock) on every
// state change, e.g. to bump a metric.
func (b *Breaker) OnTransition(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTransition = fn
}

// Allow reports whether a call may proceed. While open it flips to half-open
// once the cooldown has elapsed and then hands out the probe quota.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.transition(StateHalfOpen)
		b.probes = b.probeQuota
		fallthrough
	case StateHalfOpen:
		if b.probes > 0 {
			b.probes--
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess resets the failure count; a half-open success closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
}

// RecordFailure counts a failure; at the threshold the breaker opens, and a
// half-open failure reopens it immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.open()
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.open()
		}
	}
}

// State returns the current state, honouring a pending open->half-open flip.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.failures = 0
	b.transition(StateOpen)
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onTransition != nil {
		b.onTransition(from, to)
	}
}
