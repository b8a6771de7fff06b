// Package observe provides observability primitives for clinscribe:
// OpenTelemetry metrics, tracing helpers, and HTTP middleware tying them
// together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported via
// a Prometheus bridge set up by [InitProvider], so the standard /metrics
// endpoint keeps working. A package-level default [Metrics] instance is
// available through [DefaultMetrics]; tests should build their own via
// [NewMetrics] with a private meter provider to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all clinscribe metrics.
const meterName = "github.com/nocturnehealth/clinscribe"

// Metrics holds the metric instruments for the whole pipeline. All fields are
// safe for concurrent use.
type Metrics struct {
	// FusionDuration tracks one full fan-out/fuse pass over an audio window.
	FusionDuration metric.Float64Histogram

	// TranscriptionDuration tracks single-provider transcription latency.
	// Attributes: provider.
	TranscriptionDuration metric.Float64Histogram

	// ExtractionDuration tracks entity extraction latency per request.
	ExtractionDuration metric.Float64Histogram

	// DedupeDuration tracks sentence deduplication latency per request,
	// including the embedding round trip.
	DedupeDuration metric.Float64Histogram

	// RenderDuration tracks section building plus rendering latency.
	RenderDuration metric.Float64Histogram

	// ProviderRequests counts transcription/embeddings backend calls.
	// Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts backend failures. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// ProviderTimeouts counts per-window provider exclusions due to timeout.
	// Attributes: provider.
	ProviderTimeouts metric.Int64Counter

	// WindowsFused counts fused audio windows. Attributes: status
	// ("ok", "partial", "failed").
	WindowsFused metric.Int64Counter

	// NotesGenerated counts rendered notes. Attributes: note_type.
	NotesGenerated metric.Int64Counter

	// NoteQualityScore records the quality score of each generated note.
	// Attributes: note_type.
	NoteQualityScore metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries (seconds) sized for a pipeline
// whose slowest stage is a multi-second acoustic-model inference.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// scoreBuckets cover the [0, 1] quality-score range.
var scoreBuckets = []float64{0.1, 0.25, 0.4, 0.55, 0.7, 0.85, 0.95, 1}

// NewMetrics creates a fully initialised [Metrics] using the given meter
// provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst     *metric.Float64Histogram
		name    string
		desc    string
		buckets []float64
	}{
		{&met.FusionDuration, "clinscribe.fusion.duration", "Latency of one fan-out and fuse pass over an audio window.", latencyBuckets},
		{&met.TranscriptionDuration, "clinscribe.transcription.duration", "Latency of a single provider transcription call.", latencyBuckets},
		{&met.ExtractionDuration, "clinscribe.extraction.duration", "Latency of clinical entity extraction.", latencyBuckets},
		{&met.DedupeDuration, "clinscribe.dedupe.duration", "Latency of sentence deduplication including embeddings.", latencyBuckets},
		{&met.RenderDuration, "clinscribe.render.duration", "Latency of section building and note rendering.", latencyBuckets},
		{&met.NoteQualityScore, "clinscribe.note.quality_score", "Quality score distribution of generated notes.", scoreBuckets},
		{&met.HTTPRequestDuration, "clinscribe.http.request.duration", "HTTP request latency by method and path.", latencyBuckets},
	}
	for _, h := range histograms {
		opts := []metric.Float64HistogramOption{
			metric.WithDescription(h.desc),
			metric.WithExplicitBucketBoundaries(h.buckets...),
		}
		if h.name != "clinscribe.note.quality_score" {
			opts = append(opts, metric.WithUnit("s"))
		}
		if *h.dst, err = m.Float64Histogram(h.name, opts...); err != nil {
			return nil, err
		}
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.ProviderRequests, "clinscribe.provider.requests", "Total backend requests by provider, kind, and status."},
		{&met.ProviderErrors, "clinscribe.provider.errors", "Total backend errors by provider and kind."},
		{&met.ProviderTimeouts, "clinscribe.provider.timeouts", "Providers excluded from a window due to timeout."},
		{&met.WindowsFused, "clinscribe.fusion.windows", "Fused audio windows by status."},
		{&met.NotesGenerated, "clinscribe.notes.generated", "Generated notes by note type."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], creating it on first
// call from the global meter provider. Panics if instrument creation fails,
// which cannot happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderRequest increments the provider request counter with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError increments the provider error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordNoteGenerated increments the notes counter and records the quality
// score for one rendered note.
func (m *Metrics) RecordNoteGenerated(ctx context.Context, noteType string, quality float64) {
	attrs := metric.WithAttributes(attribute.String("note_type", noteType))
	m.NotesGenerated.Add(ctx, 1, attrs)
	m.NoteQualityScore.Record(ctx, quality, attrs)
}
