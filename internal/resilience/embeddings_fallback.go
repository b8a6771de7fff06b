package resilience

import (
	"context"

	"github.com/nocturnehealth/clinscribe/pkg/provider/embeddings"
)

// EmbeddingsFallback implements [embeddings.Provider] with automatic failover
// across multiple embedding backends. Each backend has its own circuit
// breaker. Dimensions and ModelID report the primary's values — mixing
// vectors from backends with different dimensionality within one dedup run is
// prevented by EmbedBatch issuing the whole batch against a single backend.
type EmbeddingsFallback struct {
	group   *FallbackGroup[embeddings.Provider]
	primary embeddings.Provider
}

// Compile-time interface assertion.
var _ embeddings.Provider = (*EmbeddingsFallback)(nil)

// NewEmbeddingsFallback creates an [EmbeddingsFallback] with primary as the
// preferred backend.
func NewEmbeddingsFallback(primaryName string, primary embeddings.Provider, cfg BreakerConfig) *EmbeddingsFallback {
	return &EmbeddingsFallback{
		group:   NewFallbackGroup(primaryName, primary, cfg),
		primary: primary,
	}
}

// AddFallback registers an additional embeddings backend.
func (f *EmbeddingsFallback) AddFallback(name string, p embeddings.Provider) {
	f.group.Add(name, p)
}

// Embed implements embeddings.Provider.
func (f *EmbeddingsFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch implements embeddings.Provider.
func (f *EmbeddingsFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions implements embeddings.Provider.
func (f *EmbeddingsFallback) Dimensions() int { return f.primary.Dimensions() }

// ModelID implements embeddings.Provider.
func (f *EmbeddingsFallback) ModelID() string { return f.primary.ModelID() }
