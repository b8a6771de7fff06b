package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// validTranscriptionKinds lists the recognised transcription provider kinds.
var validTranscriptionKinds = map[string]bool{"whisper": true}

// validEmbeddingsKinds lists the recognised embeddings backend kinds.
var validEmbeddingsKinds = map[string]bool{"openai": true, "ollama": true}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates it, and applies
// defaults. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Validate checks cfg for coherence, returning a joined error listing every
// failure found. Conditions that merely degrade behaviour are logged as
// warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Fusion.PartialPolicy != "" && !cfg.Fusion.PartialPolicy.IsValid() {
		errs = append(errs, fmt.Errorf("fusion.partial_policy %q is invalid; valid values: keep_partial, discard_window", cfg.Fusion.PartialPolicy))
	}
	if cfg.Fusion.SpecialistMultiplier < 0 {
		errs = append(errs, fmt.Errorf("fusion.specialist_multiplier %v must not be negative", cfg.Fusion.SpecialistMultiplier))
	}
	if cfg.Fusion.DomainTermBonus < 0 {
		errs = append(errs, fmt.Errorf("fusion.domain_term_bonus %v must not be negative", cfg.Fusion.DomainTermBonus))
	}
	if t := cfg.Note.DedupeThreshold; t != 0 && (t <= 0 || t >= 1) {
		errs = append(errs, fmt.Errorf("note.dedupe_threshold %v must be in (0, 1)", t))
	}

	namesSeen := make(map[string]int, len(cfg.Providers.Transcription))
	for i, tc := range cfg.Providers.Transcription {
		prefix := fmt.Sprintf("providers.transcription[%d]", i)
		if tc.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if prev, ok := namesSeen[tc.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of providers.transcription[%d]", prefix, tc.Name, prev))
		} else {
			namesSeen[tc.Name] = i
		}
		if !validTranscriptionKinds[tc.Kind] {
			errs = append(errs, fmt.Errorf("%s.kind %q is not recognised", prefix, tc.Kind))
		}
		if tc.Kind == "whisper" && tc.ModelPath == "" {
			errs = append(errs, fmt.Errorf("%s.model_path is required for whisper", prefix))
		}
	}
	if len(cfg.Providers.Transcription) == 0 {
		slog.Warn("no transcription providers configured; /v1/transcribe will be unavailable")
	}

	for i, ec := range cfg.Providers.Embeddings {
		if !validEmbeddingsKinds[ec.Kind] {
			errs = append(errs, fmt.Errorf("providers.embeddings[%d].kind %q is not recognised", i, ec.Kind))
		}
	}
	if len(cfg.Providers.Embeddings) == 0 {
		slog.Warn("no embeddings backend configured; sentence deduplication is disabled")
	}

	for i, p := range cfg.Vocabulary.Paths {
		if p == "" {
			errs = append(errs, fmt.Errorf("vocabulary.paths[%d] is empty", i))
		}
	}

	return errors.Join(errs...)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Fusion.ProviderTimeout <= 0 {
		cfg.Fusion.ProviderTimeout = 15 * time.Second
	}
	if cfg.Fusion.PartialPolicy == "" {
		cfg.Fusion.PartialPolicy = PartialKeep
	}
	if cfg.Fusion.SpecialistMultiplier == 0 {
		cfg.Fusion.SpecialistMultiplier = 1.2
	}
	if cfg.Fusion.DomainTermBonus == 0 {
		cfg.Fusion.DomainTermBonus = 0.05
	}
	if cfg.Fusion.BreakerMaxFailures <= 0 {
		cfg.Fusion.BreakerMaxFailures = 3
	}
	if cfg.Fusion.BreakerCooldown <= 0 {
		cfg.Fusion.BreakerCooldown = 30 * time.Second
	}
	if cfg.Note.DedupeThreshold == 0 {
		cfg.Note.DedupeThreshold = 0.85
	}
	if cfg.Note.DefaultType == "" {
		cfg.Note.DefaultType = "EDNote"
	}
}
