// Command clinscribe runs the clinical transcription and note-generation
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nocturnehealth/clinscribe/internal/app"
	"github.com/nocturnehealth/clinscribe/internal/config"
	"github.com/nocturnehealth/clinscribe/internal/observe"
	"github.com/nocturnehealth/clinscribe/internal/resilience"
	"github.com/nocturnehealth/clinscribe/pkg/provider/embeddings"
	"github.com/nocturnehealth/clinscribe/pkg/provider/embeddings/ollama"
	"github.com/nocturnehealth/clinscribe/pkg/provider/embeddings/openai"
	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription/whisper"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "clinscribe.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("clinscribe", version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %q not found; pass -config or create it", *configPath)
		}
		return err
	}
	slog.SetDefault(newLogger(os.Stderr, cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	providers, closeProviders, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	defer closeProviders()

	a, err := app.New(ctx, cfg, providers)
	if err != nil {
		return err
	}

	slog.Info("starting clinscribe",
		"version", version,
		"listen_addr", cfg.Server.ListenAddr,
		"transcription_providers", len(providers.Transcription),
		"embeddings", providers.Embeddings != nil)

	err = a.Run(ctx)
	stop()

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if serr := a.Shutdown(sctx); serr != nil {
		slog.Warn("http shutdown", "error", serr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

// newLogger builds the process logger at the configured level.
func newLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// buildProviders constructs the configured backends. The returned close
// function releases acoustic models and must run after the server stops.
func buildProviders(cfg *config.Config) (*app.Providers, func(), error) {
	providers := &app.Providers{}
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("provider close", "error", err)
			}
		}
	}

	for _, tc := range cfg.Providers.Transcription {
		p, err := whisper.New(tc.ModelPath,
			whisper.WithName(tc.Name),
			whisper.WithLanguage(tc.Language),
			whisper.WithSpecialized(tc.Specialized),
		)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("transcription provider %q: %w", tc.Name, err)
		}
		closers = append(closers, p.Close)
		providers.Transcription = append(providers.Transcription, p)
	}

	emb, err := buildEmbeddings(cfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	providers.Embeddings = emb

	return providers, closeAll, nil
}

// buildEmbeddings constructs the embeddings chain: the first configured
// backend is primary, the rest failover fallbacks in order.
func buildEmbeddings(cfg *config.Config) (embeddings.Provider, error) {
	built := make([]embeddings.Provider, 0, len(cfg.Providers.Embeddings))
	names := make([]string, 0, len(cfg.Providers.Embeddings))
	for i, ec := range cfg.Providers.Embeddings {
		p, err := buildEmbeddingsBackend(ec)
		if err != nil {
			return nil, fmt.Errorf("embeddings backend %d (%s): %w", i, ec.Kind, err)
		}
		built = append(built, p)
		names = append(names, ec.Kind)
	}

	switch len(built) {
	case 0:
		return nil, nil
	case 1:
		return built[0], nil
	}

	fb := resilience.NewEmbeddingsFallback(names[0], built[0], resilience.BreakerConfig{
		MaxFailures: cfg.Fusion.BreakerMaxFailures,
		Cooldown:    cfg.Fusion.BreakerCooldown,
	})
	for i := 1; i < len(built); i++ {
		fb.AddFallback(names[i], built[i])
	}
	return fb, nil
}

func buildEmbeddingsBackend(ec config.EmbeddingsConfig) (embeddings.Provider, error) {
	switch ec.Kind {
	case "openai":
		keyEnv := ec.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "OPENAI_API_KEY"
		}
		apiKey := os.Getenv(keyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("environment variable %s is not set", keyEnv)
		}
		var opts []openai.Option
		if ec.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(ec.BaseURL))
		}
		return openai.New(apiKey, ec.Model, opts...)
	case "ollama":
		return ollama.New(ec.BaseURL, ec.Model)
	default:
		return nil, fmt.Errorf("unknown embeddings kind %q", ec.Kind)
	}
}
