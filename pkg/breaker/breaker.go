// Package breaker implements a per-agent circuit breaker: a failure gate
// with CLOSED/OPEN/HALF_OPEN states, atomic with respect to concurrent
// observers.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config holds the thresholds that govern state transitions.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// DefaultConfig returns the spec defaults: 5 failures to open, 2 successes
// to close, 30s open timeout.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// Breaker is a circuit breaker. All mutating operations are protected by a
// single mutex so that state transitions are atomic with respect to
// concurrent AllowRequest/RecordSuccess/RecordFailure callers; this also
// resolves the HALF_OPEN race described in the design notes: whichever
// caller's AllowRequest observes the timeout elapsed performs the
// OPEN->HALF_OPEN transition under the lock, and every other concurrent
// caller observes HALF_OPEN (or a prior winner's CLOSED/OPEN) on next call.
type Breaker struct {
	cfg Config

	mu             sync.Mutex
	state          State
	failureCount   int
	successCount   int
	lastFailureMs  int64
	lastFailureSet bool
}

// New creates a breaker in the CLOSED state with the given configuration.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: Closed}
}

// State returns the current state without mutating it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// AllowRequest reports whether a request may proceed. It returns true in
// CLOSED and HALF_OPEN. In OPEN it returns false until open_timeout_ms has
// elapsed since the last failure, at which point it atomically transitions
// to HALF_OPEN and returns true for the caller that wins the race.
func (b *Breaker) AllowRequest(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.lastFailureSet && now.UnixMilli()-b.lastFailureMs >= b.cfg.OpenTimeout.Milliseconds() {
			b.state = HalfOpen
			b.successCount = 0
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful call. In CLOSED it resets the failure
// counter. In HALF_OPEN it increments the success counter and transitions to
// CLOSED once success_threshold is reached.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.failureCount = 0
			b.successCount = 0
		}
	}
}

// RecordFailure records a failed call. In CLOSED it increments the failure
// counter and opens the breaker once failure_threshold is reached. In
// HALF_OPEN any failure reopens the breaker and resets the success counter.
func (b *Breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureMs = now.UnixMilli()
	b.lastFailureSet = true

	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = Open
		}
	case HalfOpen:
		b.state = Open
		b.successCount = 0
	case Open:
		// already open; the timestamp update alone postpones the next probe
	}
}

// Snapshot is an immutable view of breaker counters, useful for stats
// endpoints and tests.
type Snapshot struct {
	State         State
	FailureCount  int
	SuccessCount  int
	LastFailureMs int64
}

// Snapshot returns the current counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:         b.state,
		FailureCount:  b.failureCount,
		SuccessCount:  b.successCount,
		LastFailureMs: b.lastFailureMs,
	}
}
