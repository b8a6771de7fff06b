package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nocturnehealth/clinscribe/internal/resilience"
	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription"
)

// PartialPolicy decides what happens to candidates already gathered when the
// request context is cancelled mid-window.
type PartialPolicy int

const (
	// KeepPartial fuses whatever candidates completed before cancellation.
	KeepPartial PartialPolicy = iota

	// DiscardWindow drops the window and returns the context error.
	DiscardWindow
)

// ProviderFailure records why one provider produced no candidate for a window.
type ProviderFailure struct {
	Provider string
	Err      error
}

// AllProvidersFailedError is returned by [Gatherer.Transcribe] when no
// provider produced a candidate. Failures holds the per-provider causes in
// registration order.
type AllProvidersFailedError struct {
	Failures []ProviderFailure
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Provider, f.Err)
	}
	return "fusion: all providers failed: " + strings.Join(parts, "; ")
}

// Gatherer fans one audio window out to all registered transcription
// providers concurrently, applies the per-provider timeout and circuit
// breaker, and fuses the successful candidates. It is safe for concurrent
// use once constructed.
type Gatherer struct {
	engine    *Engine
	providers []transcription.Provider
	breakers  []*resilience.CircuitBreaker
	timeout   time.Duration
	policy    PartialPolicy
	log       *slog.Logger
}

// GathererOption configures a [Gatherer].
type GathererOption func(*Gatherer)

// WithProviderTimeout sets the per-provider transcription deadline.
// Default: 15s.
func WithProviderTimeout(d time.Duration) GathererOption {
	return func(g *Gatherer) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithPartialPolicy sets the cancellation behaviour. Default: [KeepPartial].
func WithPartialPolicy(p PartialPolicy) GathererOption {
	return func(g *Gatherer) { g.policy = p }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) GathererOption {
	return func(g *Gatherer) {
		if l != nil {
			g.log = l
		}
	}
}

// NewGatherer creates a [Gatherer] over the given providers. Provider order
// is the submission order used for fusion tie-breaking, so registration
// order matters: put the preferred provider first. Each provider gets its
// own circuit breaker configured from breakerCfg.
func NewGatherer(engine *Engine, providers []transcription.Provider, breakerCfg resilience.BreakerConfig, opts ...GathererOption) *Gatherer {
	g := &Gatherer{
		engine:    engine,
		providers: providers,
		timeout:   15 * time.Second,
		policy:    KeepPartial,
		log:       slog.Default(),
	}
	for _, p := range providers {
		cfg := breakerCfg
		cfg.Name = p.Name()
		g.breakers = append(g.breakers, resilience.NewCircuitBreaker(cfg))
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Transcribe sends window to every provider concurrently and fuses the
// candidates that arrive within the per-provider timeout. A provider that
// errors, times out, or has an open breaker is excluded from the window; the
// window only fails when no provider succeeds, in which case the error is an
// [*AllProvidersFailedError].
//
// On context cancellation the [PartialPolicy] applies: [KeepPartial] fuses
// the candidates gathered so far (still failing if there are none), while
// [DiscardWindow] returns ctx.Err().
func (g *Gatherer) Transcribe(ctx context.Context, window transcription.AudioWindow) (Result, error) {
	type slot struct {
		cand transcription.Candidate
		err  error
	}
	slots := make([]slot, len(g.providers))

	eg := &errgroup.Group{}
	for i, p := range g.providers {
		eg.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()

			start := time.Now()
			err := g.breakers[i].Execute(func() error {
				cand, err := p.Transcribe(pctx, window)
				if err != nil {
					return err
				}
				slots[i].cand = cand
				return nil
			})
			if err != nil {
				slots[i].err = err
				g.log.Warn("provider excluded from window",
					"provider", p.Name(),
					"window_offset", window.Offset,
					"elapsed", time.Since(start),
					"error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil && g.policy == DiscardWindow {
		return Result{}, fmt.Errorf("fusion: window discarded: %w", err)
	}

	candidates := make([]transcription.Candidate, 0, len(g.providers))
	var failures []ProviderFailure
	for i, p := range g.providers {
		if slots[i].err != nil {
			failures = append(failures, ProviderFailure{Provider: p.Name(), Err: slots[i].err})
			continue
		}
		candidates = append(candidates, slots[i].cand)
	}
	if len(candidates) == 0 {
		return Result{}, &AllProvidersFailedError{Failures: failures}
	}

	res := g.engine.Fuse(candidates)
	g.log.Debug("window fused",
		"window_offset", window.Offset,
		"candidates", len(candidates),
		"excluded", len(failures),
		"confidence", res.Confidence)
	return res, nil
}
