// Package mock provides a deterministic embeddings.Provider for tests.
package mock

import (
	"context"
	"fmt"

	"github.com/nocturnehealth/clinscribe/pkg/provider/embeddings"
)

// Compile-time interface assertion.
var _ embeddings.Provider = (*Provider)(nil)

// Provider is a scripted embeddings double. Vectors maps exact input text to
// the vector to return; texts without an entry get an all-zero vector of Dims
// length. Setting Err makes every call fail, which exercises the degraded
// (dedup-disabled) path.
type Provider struct {
	Vectors map[string][]float32
	Dims    int
	Err     error
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if vec, ok := p.Vectors[t]; ok {
			if p.Dims > 0 && len(vec) != p.Dims {
				return nil, fmt.Errorf("mock embeddings: vector for %q has %d dims, want %d", t, len(vec), p.Dims)
			}
			out[i] = vec
			continue
		}
		out[i] = make([]float32, p.Dimensions())
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dims > 0 {
		return p.Dims
	}
	return 4
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return "mock" }
