// Package whisper implements transcription.Provider on top of the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// The model is loaded once at construction and shared across calls; each
// Transcribe call creates its own whisper context, so concurrent windows can
// be transcribed in parallel.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Compile-time interface assertion.
var _ transcription.Provider = (*Provider)(nil)

// Provider transcribes audio windows with a local whisper.cpp model.
type Provider struct {
	model whisperlib.Model

	name        string
	language    string
	specialized bool
}

// Option is a functional option for [New].
type Option func(*Provider)

// WithName overrides the provider name reported in candidates, logs, and
// metrics. Defaults to "whisper".
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithLanguage sets the transcription language code (e.g. "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSpecialized marks candidates from this provider as domain-specialized,
// granting them the fusion weight boost. Use for models fine-tuned on
// clinical speech.
func WithSpecialized(specialized bool) Option {
	return func(p *Provider) { p.specialized = specialized }
}

// New loads the whisper.cpp model at modelPath and returns a ready Provider.
// The caller must call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:    model,
		name:     "whisper",
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Name implements transcription.Provider.
func (p *Provider) Name() string { return p.name }

// Transcribe implements transcription.Provider. It runs whisper.cpp inference
// over the whole window and converts the native segments into
// transcription.Segments. Per-segment confidence is the mean token
// probability reported by the model; the candidate confidence is the
// duration-weighted mean over all segments.
func (p *Provider) Transcribe(ctx context.Context, window transcription.AudioWindow) (transcription.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return transcription.Candidate{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if len(window.Samples) == 0 {
		return transcription.Candidate{Provider: p.name, Specialized: p.specialized}, nil
	}
	if window.SampleRate != 0 && window.SampleRate != defaultSampleRate {
		// whisper.cpp expects 16 kHz input; the capture layer owns resampling.
		return transcription.Candidate{}, fmt.Errorf("whisper: unsupported sample rate %d (want %d)", window.SampleRate, defaultSampleRate)
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return transcription.Candidate{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whisper: failed to set language, using model default",
			"language", p.language, "error", err)
	}

	if err := wctx.Process(window.Samples, nil, nil, nil); err != nil {
		return transcription.Candidate{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		segments []transcription.Segment
		parts    []string
		confSum  float64
		confWt   float64
	)
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return transcription.Candidate{}, fmt.Errorf("whisper: read segment: %w", err)
		}

		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		conf := segmentConfidence(seg)
		segments = append(segments, transcription.Segment{
			Text:       text,
			Start:      seg.Start,
			End:        seg.End,
			Confidence: conf,
		})
		parts = append(parts, text)

		weight := float64(seg.End - seg.Start)
		if weight <= 0 {
			weight = float64(time.Millisecond)
		}
		confSum += conf * weight
		confWt += weight
	}

	overall := 0.0
	if confWt > 0 {
		overall = confSum / confWt
	}

	return transcription.Candidate{
		Provider:    p.name,
		Text:        strings.Join(parts, " "),
		Segments:    segments,
		Confidence:  overall,
		Specialized: p.specialized,
	}, nil
}

// segmentConfidence derives a [0, 1] confidence from the mean token
// probability of a native whisper segment. Segments without token data get a
// neutral 0.5 so they neither dominate nor vanish during fusion weighting.
func segmentConfidence(seg whisperlib.Segment) float64 {
	if len(seg.Tokens) == 0 {
		return 0.5
	}
	var sum float64
	for _, tok := range seg.Tokens {
		sum += float64(tok.P)
	}
	conf := sum / float64(len(seg.Tokens))
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}
