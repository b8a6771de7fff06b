// Package extract scans free transcript text for clinically relevant
// mentions and produces typed, qualified entities.
//
// Extraction is deliberately rule-based: case-insensitive vocabulary matching
// with a phonetic fuzzy fallback, local negation-window scanning, and
// qualifier lookup tables. Every rule is data in the vocabulary store, so the
// behaviour is enumerable and testable. An [Extractor] is a pure function
// over its input text; it holds no per-call state and is safe for concurrent
// use.
package extract

import "time"

// Kind classifies an extracted entity.
type Kind string

const (
	KindSymptom      Kind = "symptom"
	KindMedication   Kind = "medication"
	KindCondition    Kind = "condition"
	KindRiskFactor   Kind = "riskFactor"
	KindTimingMarker Kind = "timingMarker"
	KindProcedure    Kind = "procedure"
)

// Status is the clinical status of an entity.
type Status string

const (
	StatusActive       Status = "active"
	StatusResolved     Status = "resolved"
	StatusDiscontinued Status = "discontinued"
)

// Entity is one typed clinical fact extracted from text. Entities live for
// the duration of a note-generation request and are never persisted.
type Entity struct {
	Kind Kind

	// Name is the canonical vocabulary term (not the surface form matched).
	// For risk factors it is the derived label including the severity prefix.
	Name string

	// Class is the vocabulary term class (e.g. "anticoagulant"), when any.
	Class string

	// Severity, Duration, Location and Quality hold qualifiers found in the
	// token window around the match; empty when absent.
	Severity string
	Duration string
	Location string
	Quality  string

	// Negated is true when a negation cue governs the mention. It is always
	// the result of a window scan, never a default.
	Negated bool

	// Status is active unless a status cue in the window says otherwise.
	Status Status

	// Elapsed is the parsed elapsed time for timing markers; zero otherwise.
	Elapsed time.Duration

	// Position is the token index of the first mention, used to keep output
	// in order of first mention.
	Position int
}
