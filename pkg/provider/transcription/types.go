package transcription

import (
	"strings"
	"time"
)

// AudioWindow is one contiguous span of captured audio handed to every
// provider for the same fusion pass.
type AudioWindow struct {
	// Samples is mono PCM audio as float32 values in [-1, 1].
	Samples []float32

	// SampleRate is the sample rate in Hz (16000 for most acoustic models).
	SampleRate int

	// Offset is where this window starts relative to the beginning of the
	// encounter recording. Segment timestamps in the resulting Candidate are
	// relative to the window start, not to Offset.
	Offset time.Duration
}

// Duration returns the window length derived from the sample count.
func (w AudioWindow) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Segment is one time-stamped span of recognised speech within a window.
type Segment struct {
	// Text is the recognised speech for this span.
	Text string

	// Start and End bound the span relative to the window start.
	Start time.Duration
	End   time.Duration

	// Confidence is the provider's confidence for this span in [0, 1].
	// Zero when the provider does not report per-segment confidence.
	Confidence float64
}

// Overlaps reports whether s and other overlap in time.
func (s Segment) Overlaps(other Segment) bool {
	return s.Start < other.End && other.Start < s.End
}

// Candidate is one provider's complete output for an audio window. Candidates
// are created per provider per window, consumed immediately by the fusion
// engine, and never persisted.
type Candidate struct {
	// Provider is the name of the provider that produced this candidate.
	Provider string

	// Text is the full transcribed text of the window.
	Text string

	// Segments holds the time-ordered spans of Text. May be empty for
	// providers without timing output.
	Segments []Segment

	// Confidence is the provider's overall confidence for the window in [0, 1].
	Confidence float64

	// Specialized marks providers tuned for clinical vocabulary. Specialized
	// candidates receive a weight boost during fusion.
	Specialized bool
}

// Empty reports whether the candidate carries no recognised speech.
func (c Candidate) Empty() bool {
	return strings.TrimSpace(c.Text) == ""
}
