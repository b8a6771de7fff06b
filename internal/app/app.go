// Package app wires the clinscribe subsystems into a running HTTP service.
//
// New constructs and connects everything from config; Run serves until the
// context is cancelled; Shutdown tears the server down gracefully. Test
// doubles are injected via functional options — when an option is not
// provided, New builds the real implementation from config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nocturnehealth/clinscribe/internal/clinical/dedupe"
	"github.com/nocturnehealth/clinscribe/internal/clinical/extract"
	"github.com/nocturnehealth/clinscribe/internal/config"
	"github.com/nocturnehealth/clinscribe/internal/fusion"
	"github.com/nocturnehealth/clinscribe/internal/health"
	"github.com/nocturnehealth/clinscribe/internal/note"
	"github.com/nocturnehealth/clinscribe/internal/observe"
	"github.com/nocturnehealth/clinscribe/internal/resilience"
	"github.com/nocturnehealth/clinscribe/internal/vocab"
	"github.com/nocturnehealth/clinscribe/pkg/provider/embeddings"
	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription"
)

// Providers holds the backend implementations built by main.go from config.
// A nil Embeddings disables sentence deduplication; an empty Transcription
// slice disables the /v1/transcribe endpoint.
type Providers struct {
	Transcription []transcription.Provider
	Embeddings    embeddings.Provider
}

// App owns the service lifecycle.
type App struct {
	cfg       *config.Config
	providers *Providers

	vocabulary  *vocab.Vocabulary
	engine      *fusion.Engine
	gatherer    *fusion.Gatherer
	defaultType note.Type
	generator   *note.Generator
	encounters  *EncounterStore
	metrics     *observe.Metrics
	health      *health.Handler

	srv      *http.Server
	stopOnce sync.Once
}

// Option injects a pre-built subsystem, mainly for tests.
type Option func(*App)

// WithVocabulary injects a vocabulary instead of loading from config.
func WithVocabulary(v *vocab.Vocabulary) Option {
	return func(a *App) { a.vocabulary = v }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithGenerator injects a note generator instead of building one.
func WithGenerator(g *note.Generator) Option {
	return func(a *App) { a.generator = g }
}

// WithGatherer injects a fusion gatherer instead of building one.
func WithGatherer(g *fusion.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

// New wires an App from config and providers.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:        cfg,
		providers:  providers,
		encounters: NewEncounterStore(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if a.vocabulary == nil {
		v := vocab.Default()
		for _, path := range cfg.Vocabulary.Paths {
			merged, err := vocab.Load(v, path)
			if err != nil {
				return nil, fmt.Errorf("app: load vocabulary overlay: %w", err)
			}
			v = merged
			slog.Info("vocabulary overlay loaded", "path", path)
		}
		a.vocabulary = v
	}

	dt, err := note.ParseType(cfg.Note.DefaultType)
	if err != nil {
		return nil, fmt.Errorf("app: note.default_type: %w", err)
	}
	a.defaultType = dt

	a.engine = fusion.NewEngine(
		fusion.WithSpecialistMultiplier(cfg.Fusion.SpecialistMultiplier),
		fusion.WithDomainTermBonus(cfg.Fusion.DomainTermBonus),
		fusion.WithDomainTerms(a.vocabulary.DomainTerms()),
	)

	if a.gatherer == nil && len(providers.Transcription) > 0 {
		wrapped := make([]transcription.Provider, len(providers.Transcription))
		for i, p := range providers.Transcription {
			wrapped[i] = observe.WrapTranscription(p, a.metrics)
		}
		policy := fusion.KeepPartial
		if cfg.Fusion.PartialPolicy == config.PartialDiscard {
			policy = fusion.DiscardWindow
		}
		a.gatherer = fusion.NewGatherer(a.engine, wrapped,
			resilience.BreakerConfig{
				MaxFailures: cfg.Fusion.BreakerMaxFailures,
				Cooldown:    cfg.Fusion.BreakerCooldown,
			},
			fusion.WithProviderTimeout(cfg.Fusion.ProviderTimeout),
			fusion.WithPartialPolicy(policy),
		)
	}

	if a.generator == nil {
		var emb embeddings.Provider
		if providers.Embeddings != nil {
			emb = observe.WrapEmbeddings(providers.Embeddings, a.metrics)
		}
		deduper := dedupe.New(emb, dedupe.WithThreshold(cfg.Note.DedupeThreshold))
		a.generator = note.NewGenerator(
			extract.New(a.vocabulary),
			deduper,
			note.NewBuilder(a.vocabulary),
			note.WithStageTimer(a.recordStage),
		)
	}

	checkers := []health.Checker{health.VocabularyChecker(a.vocabulary)}
	if providers.Embeddings != nil {
		checkers = append(checkers, health.EmbeddingsChecker(providers.Embeddings))
	}
	a.health = health.New(checkers...)

	return a, nil
}

func (a *App) recordStage(stage string, d time.Duration) {
	ctx := context.Background()
	switch stage {
	case "extract":
		a.metrics.ExtractionDuration.Record(ctx, d.Seconds())
	case "dedupe":
		a.metrics.DedupeDuration.Record(ctx, d.Seconds())
	case "render":
		a.metrics.RenderDuration.Record(ctx, d.Seconds())
	}
}

// Run serves HTTP until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	mux := a.routes()
	a.srv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", a.cfg.Server.ListenAddr)
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	}
}

// Shutdown stops the HTTP server gracefully. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		if a.srv != nil {
			err = a.srv.Shutdown(ctx)
		}
	})
	return err
}
