package extract_test

import (
	"testing"
	"time"

	"github.com/nocturnehealth/clinscribe/internal/clinical/extract"
	"github.com/nocturnehealth/clinscribe/internal/vocab"
)

func newExtractor(t *testing.T, opts ...extract.Option) *extract.Extractor {
	t.Helper()
	return extract.New(vocab.Default(), opts...)
}

func findEntity(entities []extract.Entity, kind extract.Kind, name string) (extract.Entity, bool) {
	for _, e := range entities {
		if e.Kind == kind && e.Name == name {
			return e, true
		}
	}
	return extract.Entity{}, false
}

func TestNegationRoundTrip(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)

	denied := x.Extract("patient denies chest pain")
	e, ok := findEntity(denied, extract.KindSymptom, "chest pain")
	if !ok {
		t.Fatal("no chest pain entity extracted from denial")
	}
	if !e.Negated {
		t.Error("\"denies chest pain\" extracted with Negated = false")
	}

	reported := x.Extract("patient reports chest pain")
	e, ok = findEntity(reported, extract.KindSymptom, "chest pain")
	if !ok {
		t.Fatal("no chest pain entity extracted from report")
	}
	if e.Negated {
		t.Error("\"reports chest pain\" extracted with Negated = true")
	}
}

func TestNegationScopeDoesNotCrossClause(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)
	entities := x.Extract("Patient denies fever, reports chest pain radiating to the jaw")

	fever, ok := findEntity(entities, extract.KindSymptom, "fever")
	if !ok {
		t.Fatal("fever not extracted")
	}
	if !fever.Negated {
		t.Error("fever should be negated")
	}

	cp, ok := findEntity(entities, extract.KindSymptom, "chest pain")
	if !ok {
		t.Fatal("chest pain not extracted")
	}
	if cp.Negated {
		t.Error("chest pain wrongly negated by \"denies\" in the previous clause")
	}
	if cp.Location != "jaw" {
		t.Errorf("chest pain Location = %q, want jaw", cp.Location)
	}
	if cp.Quality != "radiating" {
		t.Errorf("chest pain Quality = %q, want radiating", cp.Quality)
	}
}

func TestQualifiersIgnoreTermOwnTokens(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)

	// "chest" is in the location table but is part of the matched term here.
	entities := x.Extract("Patient reports chest pain since this morning")
	e, ok := findEntity(entities, extract.KindSymptom, "chest pain")
	if !ok {
		t.Fatal("chest pain not extracted")
	}
	if e.Location != "" {
		t.Errorf("Location = %q, want empty (term must not self-match)", e.Location)
	}

	// The "chest pressure" alias contains the quality word "pressure".
	entities = x.Extract("Patient reports chest pressure")
	e, ok = findEntity(entities, extract.KindSymptom, "chest pain")
	if !ok {
		t.Fatal("chest pressure alias not extracted")
	}
	if e.Quality != "" {
		t.Errorf("Quality = %q, want empty (alias must not self-match)", e.Quality)
	}
}

func TestForwardNegation(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)
	entities := x.Extract("pulmonary embolism was ruled out in the emergency department")
	e, ok := findEntity(entities, extract.KindCondition, "history of VTE")
	if !ok {
		t.Fatal("condition not extracted")
	}
	if !e.Negated {
		t.Error("\"ruled out\" after the mention should negate it")
	}
}

func TestSeverityFromPainScale(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)
	for _, tc := range []struct {
		text string
		want string
	}{
		{"chest pain rated 8 out of 10", "severe"},
		{"chest pain 5/10 at rest", "moderate"},
		{"mild headache since yesterday", "mild"},
	} {
		entities := x.Extract(tc.text)
		var got string
		for _, e := range entities {
			if e.Kind == extract.KindSymptom && e.Severity != "" {
				got = e.Severity
			}
		}
		if got != tc.want {
			t.Errorf("Extract(%q) severity = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestDurationAttachment(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)
	entities := x.Extract("chest pain started two hours ago")
	e, ok := findEntity(entities, extract.KindSymptom, "chest pain")
	if !ok {
		t.Fatal("chest pain not extracted")
	}
	if e.Duration != "two hours ago" {
		t.Errorf("Duration = %q, want \"two hours ago\"", e.Duration)
	}
}

func TestTimingMarkerElapsed(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)
	entities := x.Extract("symptoms started six weeks ago")
	e, ok := findEntity(entities, extract.KindTimingMarker, "six weeks ago")
	if !ok {
		t.Fatal("timing marker not extracted")
	}
	if want := 6 * 7 * 24 * time.Hour; e.Elapsed != want {
		t.Errorf("Elapsed = %v, want %v", e.Elapsed, want)
	}
}

func TestMedicationStatusDiscontinued(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)
	entities := x.Extract("patient ran out of warfarin last month")
	e, ok := findEntity(entities, extract.KindMedication, "warfarin")
	if !ok {
		t.Fatal("warfarin not extracted")
	}
	if e.Status != extract.StatusDiscontinued {
		t.Errorf("Status = %q, want discontinued", e.Status)
	}
	if e.Class != "anticoagulant" {
		t.Errorf("Class = %q, want anticoagulant", e.Class)
	}
}

func TestFuzzyMatchRecoversMisspelling(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)
	entities := x.Extract("patient takes warfrin for atrial fibrillation")
	if _, ok := findEntity(entities, extract.KindMedication, "warfarin"); !ok {
		t.Error("fuzzy matching did not recover \"warfrin\" as warfarin")
	}

	strict := newExtractor(t, extract.WithFuzzyMatching(false))
	entities = strict.Extract("patient takes warfrin")
	if _, ok := findEntity(entities, extract.KindMedication, "warfarin"); ok {
		t.Error("exact-only extractor matched a misspelling")
	}
}

func TestAnticoagulationGapRule(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)
	entities := x.Extract(
		"patient has a history of blood clot and ran out of blood thinner six weeks ago")

	if _, ok := findEntity(entities, extract.KindRiskFactor, "HIGH RISK: VTE with anticoagulation gap"); !ok {
		t.Fatalf("derived risk factor missing; got %+v", entities)
	}
}

func TestAnticoagulationGapRuleNotTriggeredWhenNegated(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)
	entities := x.Extract(
		"patient denies blood clots but ran out of blood thinner six weeks ago")

	if _, ok := findEntity(entities, extract.KindRiskFactor, "HIGH RISK: VTE with anticoagulation gap"); ok {
		t.Error("negated VTE history must not trigger the anticoagulation-gap rule")
	}
}

func TestEntitiesOrderedByFirstMention(t *testing.T) {
	t.Parallel()

	x := newExtractor(t)
	entities := x.Extract("headache this morning, also some nausea, takes lisinopril for hypertension")

	var order []string
	for _, e := range entities {
		if e.Kind == extract.KindRiskFactor {
			continue
		}
		order = append(order, e.Name)
	}
	idx := func(name string) int {
		for i, n := range order {
			if n == name {
				return i
			}
		}
		return -1
	}
	if idx("headache") > idx("nausea") || idx("nausea") > idx("lisinopril") || idx("lisinopril") > idx("hypertension") {
		t.Errorf("entities out of mention order: %v", order)
	}
}

func TestExtractEmptyText(t *testing.T) {
	t.Parallel()

	if got := newExtractor(t).Extract("   "); len(got) != 0 {
		t.Errorf("Extract(blank) = %v, want empty", got)
	}
}
