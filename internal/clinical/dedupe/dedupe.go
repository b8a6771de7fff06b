// Package dedupe collapses semantically near-duplicate clinical sentences
// while preserving the most informative phrasing.
//
// Similarity is cosine distance between embedding vectors. Embeddings are a
// quality enhancement, not a correctness requirement: when the embedding
// backend is unavailable the deduplicator degrades to a no-op instead of
// failing the note-generation request.
package dedupe

import (
	"context"
	"log/slog"
	"math"

	"github.com/nocturnehealth/clinscribe/pkg/provider/embeddings"
)

// DefaultThreshold is the cosine similarity above which two sentences are
// considered duplicates.
const DefaultThreshold = 0.85

// Sentence is a scored unit of clinical narrative.
type Sentence struct {
	// Content is the sentence text.
	Content string

	// Topic is a coarse classification: "onset", "symptom:X", "medication:X",
	// "condition:X" or "general".
	Topic string

	// SourceCount is how many original sentences this one absorbed. Always
	// at least 1; higher SourceCount wins when two sentences are judged
	// duplicates.
	SourceCount int
}

// Deduplicator removes near-duplicate sentences. Safe for concurrent use.
type Deduplicator struct {
	provider  embeddings.Provider
	threshold float64
	log       *slog.Logger
}

// Option configures a [Deduplicator].
type Option func(*Deduplicator)

// WithThreshold overrides [DefaultThreshold].
func WithThreshold(t float64) Option {
	return func(d *Deduplicator) {
		if t > 0 && t < 1 {
			d.threshold = t
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Deduplicator) {
		if l != nil {
			d.log = l
		}
	}
}

// New creates a [Deduplicator] backed by the given embeddings provider. A nil
// provider yields a permanent no-op deduplicator.
func New(provider embeddings.Provider, opts ...Option) *Deduplicator {
	d := &Deduplicator{
		provider:  provider,
		threshold: DefaultThreshold,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dedupe returns an ordered subsequence of sentences with near-duplicates
// collapsed. When sentence B duplicates an already-kept sentence A, the one
// with the higher SourceCount is retained in A's position; SourceCount is not
// incremented on absorption — it already reflects scoring-time absorption.
//
// Dedupe never fails: embedding errors are logged and the input is returned
// unchanged.
func (d *Deduplicator) Dedupe(ctx context.Context, sentences []Sentence) []Sentence {
	if len(sentences) < 2 || d.provider == nil {
		return sentences
	}

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Content
	}
	vectors, err := d.provider.EmbedBatch(ctx, texts)
	if err != nil {
		d.log.Warn("embeddings unavailable, deduplication disabled for this run", "error", err)
		return sentences
	}
	if len(vectors) != len(sentences) {
		d.log.Warn("embedding count mismatch, deduplication disabled for this run",
			"got", len(vectors), "want", len(sentences))
		return sentences
	}

	type kept struct {
		sentence Sentence
		vector   []float32
	}
	var out []kept
	for i, s := range sentences {
		dup := -1
		for j := range out {
			if Cosine(vectors[i], out[j].vector) > d.threshold {
				dup = j
				break
			}
		}
		if dup < 0 {
			out = append(out, kept{sentence: s, vector: vectors[i]})
			continue
		}
		if s.SourceCount > out[dup].sentence.SourceCount {
			out[dup] = kept{sentence: s, vector: vectors[i]}
		}
	}

	result := make([]Sentence, len(out))
	for i, k := range out {
		result[i] = k.sentence
	}
	return result
}

// Cosine returns the cosine similarity of two vectors, or 0 when either has
// zero magnitude or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
