package fusion_test

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/nocturnehealth/clinscribe/internal/fusion"
	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription"
)

func TestWeightSpecialistBoost(t *testing.T) {
	t.Parallel()

	e := fusion.NewEngine()
	general := transcription.Candidate{Text: "hello", Confidence: 0.5}
	specialist := transcription.Candidate{Text: "hello", Confidence: 0.5, Specialized: true}

	gw, sw := e.Weight(general), e.Weight(specialist)
	if sw <= gw {
		t.Errorf("specialist weight %v not greater than general %v", sw, gw)
	}
	if want := 0.5 * 1.2; math.Abs(sw-want) > 1e-9 {
		t.Errorf("specialist weight = %v, want %v", sw, want)
	}
}

func TestWeightDomainTermBonus(t *testing.T) {
	t.Parallel()

	e := fusion.NewEngine(fusion.WithDomainTerms([]string{"warfarin", "chest pain"}))
	plain := transcription.Candidate{Text: "patient feels fine", Confidence: 0.6}
	clinical := transcription.Candidate{Text: "patient on warfarin with chest pain", Confidence: 0.6}

	if pw, cw := e.Weight(plain), e.Weight(clinical); cw <= pw {
		t.Errorf("clinical weight %v not greater than plain %v", cw, pw)
	}
	if want := 0.6 * 1.1; math.Abs(e.Weight(clinical)-want) > 1e-9 {
		t.Errorf("clinical weight = %v, want %v", e.Weight(clinical), want)
	}
}

func TestWeightCappedAtOne(t *testing.T) {
	t.Parallel()

	e := fusion.NewEngine(fusion.WithDomainTerms([]string{"warfarin"}))
	c := transcription.Candidate{Text: "warfarin", Confidence: 0.99, Specialized: true}
	if got := e.Weight(c); got > 1.0 {
		t.Errorf("Weight = %v, want <= 1.0", got)
	}
}

func TestFuseSingleCandidatePassthrough(t *testing.T) {
	t.Parallel()

	c := transcription.Candidate{
		Provider:   "solo",
		Text:       "patient reports chest pain",
		Confidence: 0.8,
		Segments: []transcription.Segment{
			{Text: "patient reports chest pain", Start: 0, End: 2 * time.Second, Confidence: 0.8},
		},
	}
	res := fusion.NewEngine().Fuse([]transcription.Candidate{c})

	if res.Text != c.Text {
		t.Errorf("Text = %q, want %q", res.Text, c.Text)
	}
	if res.Confidence != c.Confidence {
		t.Errorf("Confidence = %v, want %v", res.Confidence, c.Confidence)
	}
	if !reflect.DeepEqual(res.Sources, []string{"solo"}) {
		t.Errorf("Sources = %v, want [solo]", res.Sources)
	}
}

func TestFuseAllEmpty(t *testing.T) {
	t.Parallel()

	res := fusion.NewEngine().Fuse([]transcription.Candidate{
		{Provider: "a", Text: ""},
		{Provider: "b", Text: "   "},
	})
	if res.Text != "" {
		t.Errorf("Text = %q, want empty", res.Text)
	}
	if res.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", res.Confidence)
	}
	if len(res.Sources) != 2 {
		t.Errorf("Sources = %v, want both providers listed", res.Sources)
	}
}

func TestFuseHigherWeightWinsDisputedToken(t *testing.T) {
	t.Parallel()

	// Specialist hears "warfarin" where the general model hears "waffle".
	e := fusion.NewEngine(fusion.WithDomainTerms([]string{"warfarin"}))
	candidates := []transcription.Candidate{
		{Provider: "general", Text: "patient takes waffle daily", Confidence: 0.7},
		{Provider: "medical", Text: "patient takes warfarin daily", Confidence: 0.7, Specialized: true},
	}

	res := e.Fuse(candidates)
	if want := "patient takes warfarin daily"; res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
}

func TestFuseTieBreaksOnSubmissionOrder(t *testing.T) {
	t.Parallel()

	e := fusion.NewEngine()
	candidates := []transcription.Candidate{
		{Provider: "first", Text: "alpha", Confidence: 0.5},
		{Provider: "second", Text: "bravo", Confidence: 0.5},
	}
	if res := e.Fuse(candidates); res.Text != "alpha" {
		t.Errorf("Text = %q, want earlier-submitted token on tie", res.Text)
	}
}

func TestFuseDeterministic(t *testing.T) {
	t.Parallel()

	e := fusion.NewEngine(fusion.WithDomainTerms([]string{"chest pain"}))
	candidates := []transcription.Candidate{
		{Provider: "a", Text: "patient has chest pane since morning", Confidence: 0.6},
		{Provider: "b", Text: "patient has chest pain since morning", Confidence: 0.8},
		{Provider: "c", Text: "patient had chest pain since morning", Confidence: 0.7},
	}

	first := e.Fuse(candidates)
	for i := 0; i < 10; i++ {
		if got := e.Fuse(candidates); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestFuseConfidenceIsWeightedAverage(t *testing.T) {
	t.Parallel()

	e := fusion.NewEngine()
	candidates := []transcription.Candidate{
		{Provider: "a", Text: "hello there", Confidence: 0.9},
		{Provider: "b", Text: "hello there", Confidence: 0.5},
	}

	res := e.Fuse(candidates)
	// Weights equal confidences here, so the average is pulled toward the
	// more confident candidate.
	want := (0.9*0.9 + 0.5*0.5) / (0.9 + 0.5)
	if math.Abs(res.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", res.Confidence, want)
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		t.Errorf("Confidence %v outside [0,1]", res.Confidence)
	}
}

func TestFuseConfidenceMonotonicInCandidateConfidence(t *testing.T) {
	t.Parallel()

	e := fusion.NewEngine()
	base := []transcription.Candidate{
		{Provider: "a", Text: "hello there", Confidence: 0.4},
		{Provider: "b", Text: "hello there", Confidence: 0.6},
	}

	prev := e.Fuse(base).Confidence
	for _, conf := range []float64{0.5, 0.7, 0.9, 1.0} {
		raised := []transcription.Candidate{
			{Provider: "a", Text: "hello there", Confidence: conf},
			base[1],
		}
		got := e.Fuse(raised).Confidence
		if got < prev {
			t.Errorf("confidence dropped from %v to %v when candidate a rose to %v", prev, got, conf)
		}
		prev = got
	}
}

func TestFuseSegmentsNonOverlappingAndOrdered(t *testing.T) {
	t.Parallel()

	e := fusion.NewEngine()
	candidates := []transcription.Candidate{
		{
			Provider: "weak", Text: "one two", Confidence: 0.4,
			Segments: []transcription.Segment{
				{Text: "one two", Start: 0, End: 3 * time.Second},
			},
		},
		{
			Provider: "strong", Text: "one two three", Confidence: 0.9,
			Segments: []transcription.Segment{
				{Text: "one two", Start: time.Second, End: 2 * time.Second},
				{Text: "three", Start: 4 * time.Second, End: 5 * time.Second},
			},
		},
	}

	res := e.Fuse(candidates)
	for i := 1; i < len(res.Segments); i++ {
		prev, cur := res.Segments[i-1], res.Segments[i]
		if cur.Start < prev.Start {
			t.Errorf("segments out of order: %v before %v", prev, cur)
		}
		if cur.Overlaps(prev) {
			t.Errorf("segments overlap: %+v and %+v", prev, cur)
		}
	}
}
