// Package resilience provides circuit breaker and provider failover
// primitives for the transcription and embeddings backends.
//
// A transcription provider that keeps failing or timing out must not delay
// every fusion pass by its full timeout; its [CircuitBreaker] opens after
// repeated failures and the gather step skips it until the cooldown elapses.
// [FallbackGroup] composes multiple instances of one provider type with
// per-entry breakers so a failing primary is bypassed in favour of healthy
// fallbacks — used for the embeddings backends, where any one of them is as
// good as another.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// open and the cooldown has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cooldown elapses.
	StateOpen

	// StateHalfOpen lets one probe call through after the cooldown; its
	// outcome decides between closing and re-opening.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
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

// BreakerConfig holds tuning knobs for a [CircuitBreaker].
type BreakerConfig struct {
	// Name is a human-readable label used in log messages, typically the
	// provider name.
	Name string

	// MaxFailures is the number of consecutive failures before the breaker
	// opens. Default: 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open before allowing a probe.
	// Default: 30s.
	Cooldown time.Duration
}

// CircuitBreaker implements a three-state breaker with a single half-open
// probe. It is safe for concurrent use.
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probeActive bool
}

// NewCircuitBreaker creates a [CircuitBreaker]; zero-value config fields get
// defaults.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// Execute runs fn if the breaker allows it. While open it returns
// [ErrCircuitOpen] without calling fn. After the cooldown a single probe call
// is let through; success closes the breaker, failure re-opens it.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		slog.Info("circuit breaker half-open, probing", "name", cb.name)
		fallthrough
	case StateHalfOpen:
		if cb.probeActive {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probeActive = true
	}
	probing := cb.state == StateHalfOpen
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probing {
		cb.probeActive = false
	}

	if err != nil {
		cb.failures++
		if probing || cb.failures >= cb.maxFailures {
			if cb.state != StateOpen {
				slog.Warn("circuit breaker opened",
					"name", cb.name, "consecutive_failures", cb.failures)
			}
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
		return err
	}

	if probing {
		slog.Info("circuit breaker closed after successful probe", "name", cb.name)
	}
	cb.state = StateClosed
	cb.failures = 0
	return nil
}

// State returns the current [State]. An open breaker whose cooldown has
// elapsed reports [StateHalfOpen]; the actual transition happens on the next
// Execute call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed], clearing failure counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probeActive = false
}
