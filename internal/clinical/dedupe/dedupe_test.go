package dedupe_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nocturnehealth/clinscribe/internal/clinical/dedupe"
	"github.com/nocturnehealth/clinscribe/pkg/provider/embeddings/mock"
)

func TestDedupeCollapsesNearDuplicates(t *testing.T) {
	t.Parallel()

	emb := &mock.Provider{
		Dims: 3,
		Vectors: map[string][]float32{
			"pain began this morning":       {1, 0.1, 0},
			"the pain started this morning": {1, 0.12, 0},
			"patient takes warfarin":        {0, 0, 1},
		},
	}
	d := dedupe.New(emb)

	in := []dedupe.Sentence{
		{Content: "pain began this morning", Topic: "onset", SourceCount: 2},
		{Content: "the pain started this morning", Topic: "onset", SourceCount: 1},
		{Content: "patient takes warfarin", Topic: "medication:warfarin", SourceCount: 1},
	}
	out := d.Dedupe(context.Background(), in)

	if len(out) != 2 {
		t.Fatalf("got %d sentences, want 2: %+v", len(out), out)
	}
	if out[0].Content != "pain began this morning" {
		t.Errorf("kept %q, want the higher-SourceCount phrasing", out[0].Content)
	}
	if out[0].SourceCount != 2 {
		t.Errorf("SourceCount = %d, want 2 (not incremented on absorption)", out[0].SourceCount)
	}
}

func TestDedupeKeepsHigherSourceCountFromLaterSentence(t *testing.T) {
	t.Parallel()

	emb := &mock.Provider{
		Dims: 2,
		Vectors: map[string][]float32{
			"short phrasing":            {1, 0},
			"more informative phrasing": {1, 0.01},
		},
	}
	d := dedupe.New(emb)

	out := d.Dedupe(context.Background(), []dedupe.Sentence{
		{Content: "short phrasing", SourceCount: 1},
		{Content: "more informative phrasing", SourceCount: 3},
	})
	if len(out) != 1 {
		t.Fatalf("got %d sentences, want 1", len(out))
	}
	if out[0].Content != "more informative phrasing" {
		t.Errorf("kept %q, want the higher-SourceCount sentence", out[0].Content)
	}
}

func TestDedupeIdempotent(t *testing.T) {
	t.Parallel()

	emb := &mock.Provider{
		Dims: 3,
		Vectors: map[string][]float32{
			"a": {1, 0, 0},
			"b": {0.99, 0.14, 0}, // near-duplicate of "a"
			"c": {0, 1, 0},
		},
	}
	d := dedupe.New(emb)

	in := []dedupe.Sentence{
		{Content: "a", SourceCount: 1},
		{Content: "b", SourceCount: 1},
		{Content: "c", SourceCount: 1},
	}
	once := d.Dedupe(context.Background(), in)
	twice := d.Dedupe(context.Background(), once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second pass changed output: %+v vs %+v", once, twice)
	}
}

func TestDedupeDegradesToNoOpOnEmbeddingError(t *testing.T) {
	t.Parallel()

	emb := &mock.Provider{Err: errors.New("backend unreachable")}
	d := dedupe.New(emb)

	in := []dedupe.Sentence{
		{Content: "one", SourceCount: 1},
		{Content: "one", SourceCount: 1},
	}
	out := d.Dedupe(context.Background(), in)
	if !reflect.DeepEqual(out, in) {
		t.Errorf("degraded dedupe altered input: %+v", out)
	}
}

func TestDedupeNilProviderIsNoOp(t *testing.T) {
	t.Parallel()

	d := dedupe.New(nil)
	in := []dedupe.Sentence{
		{Content: "x", SourceCount: 1},
		{Content: "x", SourceCount: 1},
	}
	if out := d.Dedupe(context.Background(), in); !reflect.DeepEqual(out, in) {
		t.Errorf("nil-provider dedupe altered input: %+v", out)
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	if got := dedupe.Cosine([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Errorf("Cosine(identical) = %v, want ~1", got)
	}
	if got := dedupe.Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("Cosine(orthogonal) = %v, want 0", got)
	}
	if got := dedupe.Cosine([]float32{1, 0}, []float32{0, 0}); got != 0 {
		t.Errorf("Cosine(zero vector) = %v, want 0", got)
	}
	if got := dedupe.Cosine([]float32{1}, []float32{1, 0}); got != 0 {
		t.Errorf("Cosine(length mismatch) = %v, want 0", got)
	}
}
