// circuit_breaker.go — streak-based circuit breaker guarding the upstream
// liquidations client: a CLOSED/OPEN state machine that trips on
// consecutive upstream fetch failures and resets after a cool-down. Owns
// its own mutex, independent of any caller's locking.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/liquidterminal/liq-stream/internal/metrics"
	"github.com/liquidterminal/liq-stream/internal/util"
)

// Defaults for the streak-based FSM.
const (
	DefaultOpenStreak    = 5                // consecutive failures to trip open
	DefaultCoolDown      = 30 * time.Second // time open before a half-open probe is admitted
)

// CircuitBreaker is a per-client breaker: while open, calls fail fast with
// UpstreamUnavailable except for a single half-open probe let through once
// coolDown has elapsed.
type CircuitBreaker struct {
	mu sync.RWMutex

	failStreak    int
	lastSuccessAt time.Time
	open          bool
	openedAt      time.Time
	reason        string
	probeInFlight bool

	openStreak int
	coolDown   time.Duration

	// emitEvent reports lifecycle transitions (circuit_opened, circuit_closed)
	// for observability; invoked off the lock via util.SafeGo.
	emitEvent func(event string, data map[string]any)
}

// New creates a CircuitBreaker with injected lifecycle-event callback.
// emitEvent may be nil.
func New(emitEvent func(string, map[string]any)) *CircuitBreaker {
	if emitEvent == nil {
		emitEvent = func(string, map[string]any) {}
	}
	return &CircuitBreaker{
		lastSuccessAt: time.Now(),
		openStreak:    DefaultOpenStreak,
		coolDown:      DefaultCoolDown,
		emitEvent:     emitEvent,
	}
}

// IsOpen returns whether the circuit is currently open (rejecting calls).
// Callers that actually gate a request should use Allow instead — IsOpen
// alone never lets a half-open probe through once tripped.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.open
}

// Allow reports whether the caller may proceed with a request. A closed
// breaker always allows. An open breaker allows exactly one half-open
// probe through once coolDown has elapsed since it tripped; further
// calls are rejected until that probe's outcome is recorded via
// RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.open {
		return true
	}
	if cb.probeInFlight {
		return false
	}
	if time.Since(cb.openedAt) < cb.coolDown {
		return false
	}
	cb.probeInFlight = true
	return true
}

// RecordSuccess resets the failure streak. If this success was the
// outcome of a half-open probe, it closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.failStreak = 0
	cb.lastSuccessAt = time.Now()
	if cb.open && cb.probeInFlight {
		cb.closeLocked()
	}
	cb.probeInFlight = false
	cb.mu.Unlock()
}

// RecordFailure increments the failure streak. If the breaker was already
// open, this was a failed half-open probe: it stays open and the
// cool-down window restarts. Otherwise it evaluates a fresh open
// transition.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	cb.failStreak++
	if cb.open {
		cb.openedAt = time.Now()
		cb.probeInFlight = false
	} else {
		cb.evaluateOpen()
	}
	cb.mu.Unlock()
}

// evaluateOpen trips the breaker open once the failure streak reaches
// openStreak. Caller must hold the write lock.
func (cb *CircuitBreaker) evaluateOpen() {
	if cb.open || cb.failStreak < cb.openStreak {
		return
	}
	cb.open = true
	cb.openedAt = time.Now()
	cb.reason = "consecutive_upstream_failures"
	metrics.CircuitBreakerOpen.Set(1)

	streak := cb.failStreak
	emit := cb.emitEvent
	util.SafeGo(func() {
		emit("circuit_opened", map[string]any{
			"reason": "consecutive_upstream_failures",
			"streak": streak,
		})
	})
}

// closeLocked closes the breaker after a successful half-open probe.
// Caller must hold the write lock and have confirmed cb.open.
func (cb *CircuitBreaker) closeLocked() {
	openDuration := time.Since(cb.openedAt)
	prevReason := cb.reason
	cb.open = false
	cb.reason = ""
	metrics.CircuitBreakerOpen.Set(0)

	emit := cb.emitEvent
	util.SafeGo(func() {
		emit("circuit_closed", map[string]any{
			"previous_reason":    prevReason,
			"open_duration_secs": openDuration.Seconds(),
		})
	})
}

// State returns a snapshot of the breaker's fields for health endpoints.
func (cb *CircuitBreaker) State() (open bool, reason string, openedAt time.Time, failStreak int) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.open, cb.reason, cb.openedAt, cb.failStreak
}

// ForceOpen opens the circuit for testing.
func (cb *CircuitBreaker) ForceOpen(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.open = true
	cb.openedAt = time.Now()
	cb.reason = reason
	cb.probeInFlight = false
}

// SetCoolDown overrides the cool-down window, for tests that need to
// observe a half-open probe without waiting out DefaultCoolDown.
func (cb *CircuitBreaker) SetCoolDown(d time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.coolDown = d
}
