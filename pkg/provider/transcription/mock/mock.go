// Package mock provides a scripted transcription.Provider for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription"
)

// Compile-time interface assertion.
var _ transcription.Provider = (*Provider)(nil)

// Provider is a scripted test double. Configure the public fields before
// handing it to code under test; calls are recorded for later assertions.
type Provider struct {
	// ProviderName is returned by Name. Defaults to "mock" when empty.
	ProviderName string

	// Result is returned by Transcribe when Err is nil.
	Result transcription.Candidate

	// Err, when non-nil, is returned by every Transcribe call.
	Err error

	// Delay is slept (respecting ctx) before returning, to exercise timeout
	// and cancellation paths.
	Delay time.Duration

	mu    sync.Mutex
	calls []transcription.AudioWindow
}

// Name implements transcription.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Transcribe implements transcription.Provider. The scripted Result gets its
// Provider field stamped with this mock's name so fused output is traceable.
func (p *Provider) Transcribe(ctx context.Context, window transcription.AudioWindow) (transcription.Candidate, error) {
	p.mu.Lock()
	p.calls = append(p.calls, window)
	p.mu.Unlock()

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return transcription.Candidate{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return transcription.Candidate{}, err
	}
	if p.Err != nil {
		return transcription.Candidate{}, p.Err
	}

	out := p.Result
	out.Provider = p.Name()
	return out, nil
}

// Calls returns a copy of every AudioWindow passed to Transcribe so far.
func (p *Provider) Calls() []transcription.AudioWindow {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]transcription.AudioWindow, len(p.calls))
	copy(out, p.calls)
	return out
}
