package fusion_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nocturnehealth/clinscribe/internal/fusion"
	"github.com/nocturnehealth/clinscribe/internal/resilience"
	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription"
	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription/mock"
)

func testWindow() transcription.AudioWindow {
	return transcription.AudioWindow{
		Samples:    make([]float32, 16000),
		SampleRate: 16000,
	}
}

func TestGathererFusesAllProviders(t *testing.T) {
	t.Parallel()

	a := &mock.Provider{ProviderName: "a", Result: transcription.Candidate{Text: "hello world", Confidence: 0.8}}
	b := &mock.Provider{ProviderName: "b", Result: transcription.Candidate{Text: "hello world", Confidence: 0.6}}
	g := fusion.NewGatherer(fusion.NewEngine(),
		[]transcription.Provider{a, b}, resilience.BreakerConfig{})

	res, err := g.Transcribe(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q, want %q", res.Text, "hello world")
	}
	if len(res.Sources) != 2 {
		t.Errorf("Sources = %v, want both providers", res.Sources)
	}
}

func TestGathererExcludesFailingProvider(t *testing.T) {
	t.Parallel()

	ok := &mock.Provider{ProviderName: "ok", Result: transcription.Candidate{Text: "fine", Confidence: 0.9}}
	bad := &mock.Provider{ProviderName: "bad", Err: errors.New("backend down")}
	g := fusion.NewGatherer(fusion.NewEngine(),
		[]transcription.Provider{ok, bad}, resilience.BreakerConfig{})

	res, err := g.Transcribe(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "fine" {
		t.Errorf("Text = %q, want %q", res.Text, "fine")
	}
}

func TestGathererExcludesSlowProvider(t *testing.T) {
	t.Parallel()

	fast := &mock.Provider{ProviderName: "fast", Result: transcription.Candidate{Text: "quick result", Confidence: 0.7}}
	slow := &mock.Provider{
		ProviderName: "slow",
		Delay:        500 * time.Millisecond,
		Result:       transcription.Candidate{Text: "late result", Confidence: 0.99},
	}
	g := fusion.NewGatherer(fusion.NewEngine(),
		[]transcription.Provider{fast, slow}, resilience.BreakerConfig{},
		fusion.WithProviderTimeout(50*time.Millisecond))

	res, err := g.Transcribe(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "quick result" {
		t.Errorf("Text = %q, want fast provider only", res.Text)
	}
}

func TestGathererAllFail(t *testing.T) {
	t.Parallel()

	a := &mock.Provider{ProviderName: "a", Err: errors.New("boom")}
	b := &mock.Provider{ProviderName: "b", Err: errors.New("bang")}
	g := fusion.NewGatherer(fusion.NewEngine(),
		[]transcription.Provider{a, b}, resilience.BreakerConfig{})

	_, err := g.Transcribe(context.Background(), testWindow())
	var allFailed *fusion.AllProvidersFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("error = %v, want *AllProvidersFailedError", err)
	}
	if len(allFailed.Failures) != 2 {
		t.Errorf("Failures = %d, want 2", len(allFailed.Failures))
	}
}

func TestGathererBreakerSkipsAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	ok := &mock.Provider{ProviderName: "ok", Result: transcription.Candidate{Text: "fine", Confidence: 0.9}}
	flaky := &mock.Provider{ProviderName: "flaky", Err: errors.New("boom")}
	g := fusion.NewGatherer(fusion.NewEngine(),
		[]transcription.Provider{ok, flaky},
		resilience.BreakerConfig{MaxFailures: 2, Cooldown: time.Hour})

	for i := 0; i < 4; i++ {
		if _, err := g.Transcribe(context.Background(), testWindow()); err != nil {
			t.Fatalf("Transcribe %d: %v", i, err)
		}
	}

	// Two failures trip the breaker; the remaining windows must not reach
	// the flaky provider.
	if got := len(flaky.Calls()); got != 2 {
		t.Errorf("flaky provider called %d times, want 2", got)
	}
}

func TestGathererDiscardWindowOnCancel(t *testing.T) {
	t.Parallel()

	slow := &mock.Provider{
		ProviderName: "slow",
		Delay:        time.Second,
		Result:       transcription.Candidate{Text: "late", Confidence: 0.9},
	}
	g := fusion.NewGatherer(fusion.NewEngine(),
		[]transcription.Provider{slow}, resilience.BreakerConfig{},
		fusion.WithPartialPolicy(fusion.DiscardWindow))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Transcribe(ctx, testWindow())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestGathererKeepPartialOnCancel(t *testing.T) {
	t.Parallel()

	fast := &mock.Provider{ProviderName: "fast", Result: transcription.Candidate{Text: "partial result", Confidence: 0.7}}
	slow := &mock.Provider{
		ProviderName: "slow",
		Delay:        time.Second,
		Result:       transcription.Candidate{Text: "late", Confidence: 0.9},
	}
	g := fusion.NewGatherer(fusion.NewEngine(),
		[]transcription.Provider{fast, slow}, resilience.BreakerConfig{},
		fusion.WithPartialPolicy(fusion.KeepPartial))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := g.Transcribe(ctx, testWindow())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "partial result" {
		t.Errorf("Text = %q, want the fast provider's candidate", res.Text)
	}
}
