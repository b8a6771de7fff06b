// Package transcription defines the Provider interface for speech-to-text
// backends used by the clinscribe fusion engine.
//
// A transcription provider wraps one acoustic model or recognition service
// (e.g., a local whisper.cpp model, a platform speech API, or a
// medical-vocabulary-specialized model) and transcribes one audio window at a
// time. Several heterogeneous providers are typically invoked concurrently for
// the same window; the fusion engine merges their candidates into a single
// transcript. The engine depends only on this contract, never on a provider's
// internals.
//
// Implementations must be safe for concurrent use: the fusion gather step may
// call Transcribe from multiple goroutines for different windows.
package transcription

import "context"

// Provider is the abstraction over any speech-to-text backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns a stable, human-readable identifier for this provider
	// (e.g., "whisper-base", "medspeech"). It appears in Candidate.Provider,
	// logs, and metrics labels.
	Name() string

	// Transcribe converts one audio window into a Candidate. The call blocks
	// until transcription completes, ctx is cancelled, or the provider fails.
	//
	// A provider that recognises no speech returns a Candidate with empty Text
	// and no Segments — that is a valid result, not an error. Errors are
	// reserved for infrastructure failures (model unavailable, request failed,
	// ctx cancelled).
	Transcribe(ctx context.Context, window AudioWindow) (Candidate, error)
}
