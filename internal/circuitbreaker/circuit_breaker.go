// Package circuitbreaker implements a per-endpoint circuit breaker.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/okx-folio/internal/logging"
)

// State represents the circuit state for one endpoint key
type State string

const (
	// StateClosed means requests are allowed
	StateClosed State = "closed"
	// StateOpen means requests are short-circuited until the cooldown passes
	StateOpen State = "open"
	// StateHalfOpen means the cooldown elapsed and trial requests are admitted
	StateHalfOpen State = "half_open"
)

// Config configures a circuit breaker
type Config struct {
	// FailThreshold is the consecutive failure count that opens the circuit
	FailThreshold int
	// ResetTimeout is the cooldown before an open circuit admits a trial
	ResetTimeout time.Duration
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig() Config {
	return Config{
		FailThreshold: 5,
		ResetTimeout:  30 * time.Second,
	}
}

type entry struct {
	failures int
	state    State
	openedAt time.Time
}

// Breaker tracks one circuit per endpoint key. Keys are few and operations
// are cheap, so a single mutex guards the whole map. Entries are created
// lazily on first use and live for the life of the process.
type Breaker struct {
	failThreshold int
	resetTimeout  time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	now func() time.Time // injectable clock for tests
}

// New creates a circuit breaker with the given configuration
func New(cfg Config) *Breaker {
	return &Breaker{
		failThreshold: cfg.FailThreshold,
		resetTimeout:  cfg.ResetTimeout,
		entries:       make(map[string]*entry),
		now:           time.Now,
	}
}

// caller must hold b.mu
func (b *Breaker) get(key string) *entry {
	e, ok := b.entries[key]
	if !ok {
		e = &entry{state: StateClosed}
		b.entries[key] = e
	}
	return e
}

// Allow reports whether a request for key should proceed. An open circuit
// whose cooldown has elapsed transitions to half-open and admits the call.
// Half-open admits every trial until an outcome is recorded; callers needing
// strict single-trial semantics must serialize externally.
func (b *Breaker) Allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(key)
	switch e.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(e.openedAt) >= b.resetTimeout {
			e.state = StateHalfOpen
			logging.WithFields(map[string]interface{}{
				"endpoint": key,
				"state":    StateHalfOpen,
			}).Info("circuit transitioning to half-open")
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return true
	}
}

// RecordSuccess resets the circuit for key to closed
func (b *Breaker) RecordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(key)
	if e.state != StateClosed {
		logging.WithField("endpoint", key).Info("circuit closed after successful call")
	}
	e.failures = 0
	e.state = StateClosed
	e.openedAt = time.Time{}
}

// RecordFailure counts a failure for key. A half-open circuit reopens
// immediately with a fresh cooldown; a closed circuit opens once the
// threshold is reached.
func (b *Breaker) RecordFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(key)
	e.failures++

	if e.state == StateHalfOpen {
		e.state = StateOpen
		e.openedAt = b.now()
		if e.failures < b.failThreshold {
			e.failures = b.failThreshold
		}
		logging.WithField("endpoint", key).Warn("circuit reopened after half-open failure")
		return
	}

	if e.failures >= b.failThreshold {
		wasClosed := e.state == StateClosed
		e.state = StateOpen
		e.openedAt = b.now()
		if wasClosed {
			logging.WithFields(map[string]interface{}{
				"endpoint": key,
				"failures": e.failures,
			}).Warn("circuit opened due to failures")
		}
	}
}

// State returns the current state for key without mutating it
func (b *Breaker) State(key string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[key]; ok {
		return e.state
	}
	return StateClosed
}

// ResetTimeout returns the configured cooldown, used by callers to build
// retry-after hints on short-circuited results.
func (b *Breaker) ResetTimeout() time.Duration {
	return b.resetTimeout
}

// Stats is a point-in-time view of one endpoint's circuit
type Stats struct {
	Endpoint string    `json:"endpoint"`
	State    State     `json:"state"`
	Failures int       `json:"failures"`
	OpenedAt time.Time `json:"openedAt,omitempty"`
}

// Snapshot returns the stats for one endpoint key
func (b *Breaker) Snapshot(key string) Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(key)
	return Stats{Endpoint: key, State: e.state, Failures: e.failures, OpenedAt: e.openedAt}
}

// Snapshots returns stats for every endpoint key seen so far
func (b *Breaker) Snapshots() []Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Stats, 0, len(b.entries))
	for key, e := range b.entries {
		out = append(out, Stats{Endpoint: key, State: e.state, Failures: e.failures, OpenedAt: e.openedAt})
	}
	return out
}

// Reset manually closes the circuit for key
func (b *Breaker) Reset(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(key)
	e.failures = 0
	e.state = StateClosed
	e.openedAt = time.Time{}
	logging.WithField("endpoint", key).Info("circuit manually reset")
}
