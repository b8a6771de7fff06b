package note

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nocturnehealth/clinscribe/internal/clinical/dedupe"
	"github.com/nocturnehealth/clinscribe/internal/clinical/extract"
)

// buildState tracks a request through the generation pipeline.
type buildState int

const (
	stateIdle buildState = iota
	stateExtractingEntities
	stateBuildingSections
	stateValidating
	stateRendered
)

func (s buildState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateExtractingEntities:
		return "extracting_entities"
	case stateBuildingSections:
		return "building_sections"
	case stateValidating:
		return "validating"
	case stateRendered:
		return "rendered"
	default:
		return "unknown"
	}
}

// Generator is the note-generation entry point. It owns the extractor,
// deduplicator and builder it was constructed with; there is no ambient
// shared state, so one Generator serves concurrent requests.
type Generator struct {
	extractor *extract.Extractor
	deduper   *dedupe.Deduplicator
	builder   *Builder
	log       *slog.Logger
	timeStage func(stage string, d time.Duration)
}

// GeneratorOption configures a [Generator].
type GeneratorOption func(*Generator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// WithStageTimer registers a callback invoked with the duration of each
// pipeline stage ("extract", "dedupe", "render"). Used to feed latency
// histograms without coupling the generator to a metrics backend.
func WithStageTimer(fn func(stage string, d time.Duration)) GeneratorOption {
	return func(g *Generator) { g.timeStage = fn }
}

// NewGenerator wires a [Generator] from its explicitly constructed parts.
func NewGenerator(x *extract.Extractor, d *dedupe.Deduplicator, b *Builder, opts ...GeneratorOption) *Generator {
	g := &Generator{
		extractor: x,
		deduper:   d,
		builder:   b,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) recordStage(stage string, start time.Time) {
	if g.timeStage != nil {
		g.timeStage(stage, time.Since(start))
	}
}

// Generate runs the full pipeline for one request. An empty transcript fails
// with [ErrEmptyInput] and an unknown note type with [ErrUnknownNoteType];
// every other degradation (no extractable entities, embeddings down, sparse
// sections) still produces a reviewable note with a reduced quality score.
func (g *Generator) Generate(ctx context.Context, req Request) (*Response, error) {
	text := strings.TrimSpace(req.TranscriptText)
	if text == "" {
		return nil, fmt.Errorf("%w (encounter %s)", ErrEmptyInput, req.EncounterID)
	}
	if _, err := ParseType(string(req.NoteType)); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNoteType, req.NoteType)
	}

	state := stateIdle
	advance := func(next buildState) {
		state = next
		g.log.Debug("note generation state",
			"encounter_id", req.EncounterID, "state", state.String())
	}

	advance(stateExtractingEntities)
	start := time.Now()
	entities := g.extractor.Extract(text)
	g.recordStage("extract", start)

	start = time.Now()
	sentences := g.deduper.Dedupe(ctx, g.builder.Sentences(text))
	g.recordStage("dedupe", start)

	advance(stateBuildingSections)
	start = time.Now()
	assessment := g.builder.Build(entities, sentences, req.Phase)

	advance(stateValidating)
	rendered, sections, quality, err := Render(req.NoteType, assessment)
	if err != nil {
		return nil, err
	}
	g.recordStage("render", start)

	advance(stateRendered)
	resp := &Response{
		RenderedNote: rendered,
		QualityScore: quality,
		Sections:     sections,
	}
	if req.NoteType == EDNote {
		resp.Document = EDDocumentFrom(req.EncounterID, req.Phase, sections)
	}
	g.log.Info("note generated",
		"encounter_id", req.EncounterID,
		"note_type", req.NoteType,
		"entities", len(entities),
		"sentences", len(sentences),
		"quality_score", quality)
	return resp, nil
}
