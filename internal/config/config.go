// Package config provides the configuration schema and loader for the
// clinscribe server.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// PartialPolicy selects what happens to a window whose gathering is cancelled
// mid-flight.
type PartialPolicy string

const (
	// PartialKeep fuses the candidates that completed before cancellation.
	PartialKeep PartialPolicy = "keep_partial"

	// PartialDiscard drops the window entirely.
	PartialDiscard PartialPolicy = "discard_window"
)

// IsValid reports whether p is a recognised policy.
func (p PartialPolicy) IsValid() bool {
	return p == PartialKeep || p == PartialDiscard
}

// Config is the root configuration, typically loaded from YAML via [Load] or
// [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Fusion     FusionConfig     `yaml:"fusion"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Note       NoteConfig       `yaml:"note"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on.
	// Default: ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProvidersConfig configures the pluggable backends.
type ProvidersConfig struct {
	// Transcription lists the transcription providers fanned out to per
	// window, in submission (tie-break) order. At least one is required to
	// serve /v1/transcribe.
	Transcription []TranscriptionConfig `yaml:"transcription"`

	// Embeddings configures the embeddings backends used by sentence
	// deduplication. Optional: without one, deduplication is disabled.
	Embeddings []EmbeddingsConfig `yaml:"embeddings"`
}

// TranscriptionConfig configures one transcription provider.
type TranscriptionConfig struct {
	// Name is the provider label used in logs, metrics and fusion sources.
	Name string `yaml:"name"`

	// Kind selects the implementation; currently "whisper".
	Kind string `yaml:"kind"`

	// ModelPath is the acoustic model file (whisper).
	ModelPath string `yaml:"model_path"`

	// Language is the forced language code; empty for auto-detection.
	Language string `yaml:"language"`

	// Specialized marks a model tuned for clinical vocabulary; its
	// candidates get a fusion weight boost.
	Specialized bool `yaml:"specialized"`
}

// EmbeddingsConfig configures one embeddings backend. The first entry is the
// primary; the rest are failover fallbacks in order.
type EmbeddingsConfig struct {
	// Kind selects the implementation: "openai" or "ollama".
	Kind string `yaml:"kind"`

	// Model is the embedding model identifier; empty uses the backend's
	// default.
	Model string `yaml:"model"`

	// BaseURL overrides the backend endpoint (self-hosted gateways, Ollama
	// hosts).
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	// Default for openai: "OPENAI_API_KEY".
	APIKeyEnv string `yaml:"api_key_env"`
}

// FusionConfig tunes the fusion engine and gather step.
type FusionConfig struct {
	// ProviderTimeout bounds each provider call per window. Default: 15s.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	// PartialPolicy selects cancellation behaviour. Default: keep_partial.
	PartialPolicy PartialPolicy `yaml:"partial_policy"`

	// SpecialistMultiplier is the weight boost for specialised providers.
	// Default: 1.2.
	SpecialistMultiplier float64 `yaml:"specialist_multiplier"`

	// DomainTermBonus is the per-term weight bonus for recognised clinical
	// vocabulary. Default: 0.05.
	DomainTermBonus float64 `yaml:"domain_term_bonus"`

	// BreakerMaxFailures is the consecutive-failure threshold per provider
	// breaker. Default: 3.
	BreakerMaxFailures int `yaml:"breaker_max_failures"`

	// BreakerCooldown is how long an open breaker rejects calls.
	// Default: 30s.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// VocabularyConfig points at site-specific vocabulary overlays, merged in
// order on top of the built-in set.
type VocabularyConfig struct {
	Paths []string `yaml:"paths"`
}

// NoteConfig tunes note generation.
type NoteConfig struct {
	// DedupeThreshold is the cosine similarity above which sentences are
	// merged. Default: 0.85.
	DedupeThreshold float64 `yaml:"dedupe_threshold"`

	// DefaultType is the note type used when a request does not name one.
	// Default: "EDNote".
	DefaultType string `yaml:"default_type"`
}
