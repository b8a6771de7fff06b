// Package embeddings defines the Provider interface for text-embedding
// backends.
//
// The deduplication stage maps clinical sentences to dense float32 vectors
// and collapses pairs whose cosine similarity crosses a threshold. Any
// backend that produces fixed-length vectors can serve: the OpenAI embeddings
// API, a local Ollama model, or a test double. Embeddings are a quality
// enhancement, not a correctness requirement — callers must tolerate a nil or
// failing provider and degrade to skipping deduplication.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by one Provider instance share the dimensionality
// reported by Dimensions. Vectors from different instances must not be mixed
// in one similarity computation unless both use the same model.
type Provider interface {
	// Embed computes the vector for a single text. Returns a slice of length
	// Dimensions(), or an error when the request fails or ctx is cancelled.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for texts in one backend call; the i-th
	// result corresponds to texts[i]. On error the whole result is nil —
	// partial batches are never returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length for this provider.
	Dimensions() int

	// ModelID returns the backend model identifier, for logs and metrics.
	ModelID() string
}
