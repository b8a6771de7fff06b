// Package ollama provides an embeddings provider backed by a local Ollama
// server (https://ollama.com), using its native /api/embed endpoint. Only the
// standard library is needed — Ollama speaks plain JSON over HTTP.
//
// Suitable embedding models include nomic-embed-text, mxbai-embed-large, and
// all-minilm.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nocturnehealth/clinscribe/pkg/provider/embeddings"
)

// DefaultBaseURL is the address of a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

// Compile-time interface assertion.
var _ embeddings.Provider = (*Provider)(nil)

// knownDimensions maps recognised model names to their vector lengths.
// Models not listed here are probed once on first use.
var knownDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// Provider implements embeddings.Provider against a local Ollama server.
//
// Provider is safe for concurrent use. Vector dimensionality is resolved from
// the knownDimensions table or, failing that, by a one-time probe embed.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client

	dimensions int
	detectOnce sync.Once
}

// New constructs a Provider for the given base URL and model. An empty
// baseURL selects [DefaultBaseURL]. The model name is required.
func New(baseURL, model string) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embeddings: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for name, dims := range knownDimensions {
		if strings.HasPrefix(model, name) {
			p.dimensions = dims
		}
	}
	return p, nil
}

// embedRequest is the /api/embed request body. Input may be a string or a
// list of strings; we always send a list.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the subset of the /api/embed response we consume.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
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
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("ollama embeddings: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != "" {
			return nil, fmt.Errorf("ollama embeddings: server error: %s", decoded.Error)
		}
		return nil, fmt.Errorf("ollama embeddings: unexpected status %d", resp.StatusCode)
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embeddings: expected %d embeddings, got %d", len(texts), len(decoded.Embeddings))
	}

	return decoded.Embeddings, nil
}

// Dimensions implements embeddings.Provider. Unknown models are probed with a
// single embed call on first use; when the probe fails, 0 is returned and the
// next call retries is not attempted — callers treat 0 as "unknown".
func (p *Provider) Dimensions() int {
	if p.dimensions > 0 {
		return p.dimensions
	}
	p.detectOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		vec, err := p.Embed(ctx, "dimension probe")
		if err != nil {
			return
		}
		p.dimensions = len(vec)
	})
	return p.dimensions
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.model }
