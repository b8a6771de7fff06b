package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nocturnehealth/clinscribe/pkg/provider/embeddings"
	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription"
)

// InstrumentedTranscription wraps a transcription.Provider with request,
// error, timeout and latency metrics. The wrapped provider's behaviour is
// unchanged.
type InstrumentedTranscription struct {
	inner   transcription.Provider
	metrics *Metrics
}

// Compile-time interface assertion.
var _ transcription.Provider = (*InstrumentedTranscription)(nil)

// WrapTranscription instruments p. A nil metrics falls back to
// [DefaultMetrics].
func WrapTranscription(p transcription.Provider, m *Metrics) *InstrumentedTranscription {
	if m == nil {
		m = DefaultMetrics()
	}
	return &InstrumentedTranscription{inner: p, metrics: m}
}

// Name implements transcription.Provider.
func (t *InstrumentedTranscription) Name() string { return t.inner.Name() }

// Transcribe implements transcription.Provider.
func (t *InstrumentedTranscription) Transcribe(ctx context.Context, window transcription.AudioWindow) (transcription.Candidate, error) {
	start := time.Now()
	cand, err := t.inner.Transcribe(ctx, window)

	t.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", t.inner.Name())))

	status := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
		t.metrics.ProviderTimeouts.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", t.inner.Name())))
	case err != nil:
		status = "error"
		t.metrics.RecordProviderError(ctx, t.inner.Name(), "transcription")
	}
	t.metrics.RecordProviderRequest(ctx, t.inner.Name(), "transcription", status)
	return cand, err
}

// InstrumentedEmbeddings wraps an embeddings.Provider with request and error
// metrics.
type InstrumentedEmbeddings struct {
	inner   embeddings.Provider
	metrics *Metrics
}

// Compile-time interface assertion.
var _ embeddings.Provider = (*InstrumentedEmbeddings)(nil)

// WrapEmbeddings instruments p. A nil metrics falls back to [DefaultMetrics].
func WrapEmbeddings(p embeddings.Provider, m *Metrics) *InstrumentedEmbeddings {
	if m == nil {
		m = DefaultMetrics()
	}
	return &InstrumentedEmbeddings{inner: p, metrics: m}
}

// Embed implements embeddings.Provider.
func (e *InstrumentedEmbeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.inner.Embed(ctx, text)
	e.record(ctx, err)
	return vec, err
}

// EmbedBatch implements embeddings.Provider.
func (e *InstrumentedEmbeddings) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.inner.EmbedBatch(ctx, texts)
	e.record(ctx, err)
	return vecs, err
}

// Dimensions implements embeddings.Provider.
func (e *InstrumentedEmbeddings) Dimensions() int { return e.inner.Dimensions() }

// ModelID implements embeddings.Provider.
func (e *InstrumentedEmbeddings) ModelID() string { return e.inner.ModelID() }

func (e *InstrumentedEmbeddings) record(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		e.metrics.RecordProviderError(ctx, e.inner.ModelID(), "embeddings")
	}
	e.metrics.RecordProviderRequest(ctx, e.inner.ModelID(), "embeddings", status)
}
