// Package fusion combines transcription candidates from multiple providers
// into a single best-estimate transcript per audio window.
//
// Fusion is a pure function of its inputs: the same candidates in the same
// submission order always produce the same result. The [Gatherer] runs the
// providers concurrently and feeds their candidates to the [Engine] in
// registration order, so whole-pipeline output is deterministic regardless of
// which provider finishes first.
package fusion

import (
	"math"
	"sort"
	"strings"

	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription"
)

// Result is the fused transcript for one audio window.
type Result struct {
	// Text is the fused transcript text.
	Text string

	// Segments are the merged, non-overlapping segments ordered by start time.
	Segments []transcription.Segment

	// Confidence is the weight-averaged confidence of the contributing
	// candidates, in [0, 1]. Zero when no candidate produced speech.
	Confidence float64

	// Sources names the providers whose candidates contributed, in
	// submission order.
	Sources []string
}

// Engine fuses candidates using confidence-derived weights and positional
// token voting. An Engine is immutable after construction and safe for
// concurrent use.
type Engine struct {
	specialistMultiplier float64
	domainTermBonus      float64
	domainTerms          []string
}

// EngineOption configures an [Engine].
type EngineOption func(*Engine)

// WithSpecialistMultiplier sets the weight multiplier applied to candidates
// from specialised (domain-tuned) providers. Default: 1.2.
func WithSpecialistMultiplier(m float64) EngineOption {
	return func(e *Engine) {
		if m > 0 {
			e.specialistMultiplier = m
		}
	}
}

// WithDomainTermBonus sets the per-term weight bonus for each distinct domain
// vocabulary term a candidate's text contains. Default: 0.05.
func WithDomainTermBonus(b float64) EngineOption {
	return func(e *Engine) {
		if b >= 0 {
			e.domainTermBonus = b
		}
	}
}

// WithDomainTerms sets the domain vocabulary used for the term bonus. Terms
// are matched case-insensitively as substrings.
func WithDomainTerms(terms []string) EngineOption {
	return func(e *Engine) {
		lowered := make([]string, len(terms))
		for i, t := range terms {
			lowered[i] = strings.ToLower(t)
		}
		e.domainTerms = lowered
	}
}

// NewEngine creates an [Engine].
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		specialistMultiplier: 1.2,
		domainTermBonus:      0.05,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weight computes the voting weight of a candidate: its confidence, boosted
// by the specialist multiplier and by the domain-term bonus per distinct
// vocabulary term found in its text, capped at 1.0.
func (e *Engine) Weight(c transcription.Candidate) float64 {
	w := c.Confidence
	if c.Specialized {
		w *= e.specialistMultiplier
	}
	w *= 1 + e.domainTermBonus*float64(e.countDomainTerms(c.Text))
	return math.Min(w, 1.0)
}

func (e *Engine) countDomainTerms(text string) int {
	if len(e.domainTerms) == 0 {
		return 0
	}
	lowered := strings.ToLower(text)
	n := 0
	for _, term := range e.domainTerms {
		if strings.Contains(lowered, term) {
			n++
		}
	}
	return n
}

// Fuse combines candidates into a single [Result]. Candidates must be in
// submission order; ties in token voting resolve in favour of the
// earlier-submitted candidate. Empty candidates contribute their provider
// name to Sources but cast no votes. When every candidate is empty the
// result has empty text and confidence zero.
func (e *Engine) Fuse(candidates []transcription.Candidate) Result {
	var res Result
	for _, c := range candidates {
		res.Sources = append(res.Sources, c.Provider)
	}

	voting := make([]transcription.Candidate, 0, len(candidates))
	weights := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		if c.Empty() {
			continue
		}
		voting = append(voting, c)
		weights = append(weights, e.Weight(c))
	}
	if len(voting) == 0 {
		return res
	}

	if len(voting) == 1 {
		res.Text = voting[0].Text
		res.Segments = append([]transcription.Segment(nil), voting[0].Segments...)
		res.Confidence = voting[0].Confidence
		return res
	}

	res.Text = voteTokens(voting, weights)
	res.Segments = mergeSegments(voting, weights)
	res.Confidence = weightedConfidence(voting, weights)
	return res
}

// voteTokens runs positional token voting: at each token position the token
// with the highest summed candidate weight wins. Comparison is
// case-insensitive; the winning token keeps the casing of the
// earliest-submitted candidate that voted for it.
func voteTokens(candidates []transcription.Candidate, weights []float64) string {
	tokenised := make([][]string, len(candidates))
	maxLen := 0
	for i, c := range candidates {
		tokenised[i] = strings.Fields(c.Text)
		if len(tokenised[i]) > maxLen {
			maxLen = len(tokenised[i])
		}
	}

	out := make([]string, 0, maxLen)
	for pos := 0; pos < maxLen; pos++ {
		votes := make(map[string]float64)
		original := make(map[string]string)
		order := make([]string, 0, len(candidates))
		for i, tokens := range tokenised {
			if pos >= len(tokens) {
				continue
			}
			key := strings.ToLower(tokens[pos])
			if _, seen := votes[key]; !seen {
				order = append(order, key)
				original[key] = tokens[pos]
			}
			votes[key] += weights[i]
		}

		best := ""
		bestWeight := -1.0
		for _, key := range order {
			// Strict > keeps the earliest-submitted token on ties.
			if votes[key] > bestWeight {
				best = key
				bestWeight = votes[key]
			}
		}
		if best != "" {
			out = append(out, original[best])
		}
	}
	return strings.Join(out, " ")
}

// mergeSegments flattens all candidate segments, sorts them by start time and
// drops overlaps, keeping the segment from the higher-weighted candidate.
func mergeSegments(candidates []transcription.Candidate, weights []float64) []transcription.Segment {
	type weighted struct {
		seg    transcription.Segment
		weight float64
		order  int
	}
	var all []weighted
	for i, c := range candidates {
		for _, s := range c.Segments {
			all = append(all, weighted{seg: s, weight: weights[i], order: i})
		}
	}
	sort.SliceStable(all, func(a, b int) bool {
		if all[a].seg.Start != all[b].seg.Start {
			return all[a].seg.Start < all[b].seg.Start
		}
		if all[a].weight != all[b].weight {
			return all[a].weight > all[b].weight
		}
		return all[a].order < all[b].order
	})

	var kept []weighted
	for _, w := range all {
		if len(kept) == 0 {
			kept = append(kept, w)
			continue
		}
		last := &kept[len(kept)-1]
		if !w.seg.Overlaps(last.seg) {
			kept = append(kept, w)
			continue
		}
		if w.weight > last.weight {
			*last = w
		}
	}

	out := make([]transcription.Segment, len(kept))
	for i, w := range kept {
		out[i] = w.seg
	}
	return out
}

// weightedConfidence is Σ(confidence×weight) / Σ(weight).
func weightedConfidence(candidates []transcription.Candidate, weights []float64) float64 {
	var num, den float64
	for i, c := range candidates {
		num += c.Confidence * weights[i]
		den += weights[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}
