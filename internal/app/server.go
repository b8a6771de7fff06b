package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nocturnehealth/clinscribe/internal/fusion"
	"github.com/nocturnehealth/clinscribe/internal/note"
	"github.com/nocturnehealth/clinscribe/internal/observe"
	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription"
)

// transcribeRequest is the POST /v1/transcribe body. Either Samples carries
// raw window audio for the server-side providers, or Candidates carries
// transcriptions already produced by client-side engines for fusion only.
type transcribeRequest struct {
	EncounterID string             `json:"encounterId"`
	SampleRate  int                `json:"sampleRate"`
	Samples     []float32          `json:"samples"`
	OffsetMs    int64              `json:"offsetMs"`
	Candidates  []candidatePayload `json:"candidates"`
}

// candidatePayload is one client-produced transcription candidate.
type candidatePayload struct {
	Provider    string           `json:"provider"`
	Text        string           `json:"text"`
	Confidence  float64          `json:"confidence"`
	Specialized bool             `json:"specialized"`
	Segments    []segmentPayload `json:"segments,omitempty"`
}

// segmentPayload is one time-stamped span, with times in milliseconds
// relative to the window start.
type segmentPayload struct {
	Text       string  `json:"text"`
	StartMs    int64   `json:"startMs"`
	EndMs      int64   `json:"endMs"`
	Confidence float64 `json:"confidence"`
}

// transcribeResponse is the fused result for one window.
type transcribeResponse struct {
	EncounterID string           `json:"encounterId"`
	Text        string           `json:"text"`
	Confidence  float64          `json:"confidence"`
	Sources     []string         `json:"sources"`
	Segments    []segmentPayload `json:"segments,omitempty"`
}

func toSegments(payloads []segmentPayload) []transcription.Segment {
	if len(payloads) == 0 {
		return nil
	}
	out := make([]transcription.Segment, len(payloads))
	for i, s := range payloads {
		out[i] = transcription.Segment{
			Text:       s.Text,
			Start:      time.Duration(s.StartMs) * time.Millisecond,
			End:        time.Duration(s.EndMs) * time.Millisecond,
			Confidence: s.Confidence,
		}
	}
	return out
}

func fromSegments(segments []transcription.Segment) []segmentPayload {
	if len(segments) == 0 {
		return nil
	}
	out := make([]segmentPayload, len(segments))
	for i, s := range segments {
		out[i] = segmentPayload{
			Text:       s.Text,
			StartMs:    s.Start.Milliseconds(),
			EndMs:      s.End.Milliseconds(),
			Confidence: s.Confidence,
		}
	}
	return out
}

// transcriptResponse is the accumulated transcript for an encounter.
type transcriptResponse struct {
	EncounterID string        `json:"encounterId"`
	Transcript  string        `json:"transcript"`
	Windows     []FusedWindow `json:"windows"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/notes", a.handleGenerateNote)
	mux.HandleFunc("POST /v1/transcribe", a.handleTranscribe)
	mux.HandleFunc("GET /v1/encounters/{id}/transcript", a.handleTranscript)
	mux.HandleFunc("DELETE /v1/encounters/{id}", a.handleDeleteEncounter)
	mux.Handle("GET /metrics", promhttp.Handler())
	a.health.Register(mux)
	return mux
}

// handleGenerateNote runs the note pipeline over the request transcript. When
// the body carries no transcript text but names an encounter, the encounter's
// accumulated transcript is used instead.
func (a *App) handleGenerateNote(w http.ResponseWriter, r *http.Request) {
	var req note.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.NoteType == "" {
		req.NoteType = a.defaultType
	}
	if req.TranscriptText == "" && req.EncounterID != "" {
		text, ok := a.encounters.Transcript(req.EncounterID)
		if !ok {
			writeError(w, r, http.StatusNotFound, fmt.Errorf("encounter %q not found", req.EncounterID))
			return
		}
		req.TranscriptText = text
	}

	resp, err := a.generator.Generate(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, note.ErrEmptyInput) || errors.Is(err, note.ErrUnknownNoteType) {
			status = http.StatusBadRequest
		}
		writeError(w, r, status, err)
		return
	}
	a.metrics.RecordNoteGenerated(r.Context(), string(req.NoteType), resp.QualityScore)
	writeJSON(w, http.StatusOK, resp)
}

// handleTranscribe produces one fused window and appends it to the
// encounter's transcript. Client-produced candidates are fused directly; raw
// audio is fanned out to the configured server-side providers first.
func (a *App) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.EncounterID == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("encounterId is required"))
		return
	}

	offset := time.Duration(req.OffsetMs) * time.Millisecond
	start := time.Now()
	var (
		res fusion.Result
		err error
	)
	switch {
	case len(req.Candidates) > 0:
		candidates := make([]transcription.Candidate, len(req.Candidates))
		for i, c := range req.Candidates {
			candidates[i] = transcription.Candidate{
				Provider:    c.Provider,
				Text:        c.Text,
				Confidence:  c.Confidence,
				Specialized: c.Specialized,
				Segments:    toSegments(c.Segments),
			}
		}
		res = a.engine.Fuse(candidates)
	case len(req.Samples) > 0 && req.SampleRate > 0:
		if a.gatherer == nil {
			writeError(w, r, http.StatusServiceUnavailable, errors.New("no transcription providers configured"))
			return
		}
		res, err = a.gatherer.Transcribe(r.Context(), transcription.AudioWindow{
			Samples:    req.Samples,
			SampleRate: req.SampleRate,
			Offset:     offset,
		})
		if err != nil {
			var allFailed *fusion.AllProvidersFailedError
			status := http.StatusInternalServerError
			if errors.As(err, &allFailed) {
				status = http.StatusBadGateway
			}
			writeError(w, r, status, err)
			return
		}
	default:
		writeError(w, r, http.StatusBadRequest, errors.New("either candidates or samples with sampleRate is required"))
		return
	}
	a.metrics.FusionDuration.Record(r.Context(), time.Since(start).Seconds())
	a.metrics.WindowsFused.Add(r.Context(), 1)

	a.encounters.Append(req.EncounterID, offset, res)
	writeJSON(w, http.StatusOK, transcribeResponse{
		EncounterID: req.EncounterID,
		Text:        res.Text,
		Confidence:  res.Confidence,
		Sources:     res.Sources,
		Segments:    fromSegments(res.Segments),
	})
}

func (a *App) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	windows, ok := a.encounters.Windows(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("encounter %q not found", id))
		return
	}
	transcript, _ := a.encounters.Transcript(id)
	writeJSON(w, http.StatusOK, transcriptResponse{
		EncounterID: id,
		Transcript:  transcript,
		Windows:     windows,
	})
}

func (a *App) handleDeleteEncounter(w http.ResponseWriter, r *http.Request) {
	a.encounters.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError logs the failure with trace correlation and sends the JSON error
// body.
func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	observe.Logger(r.Context()).Warn("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
