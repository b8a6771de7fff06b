package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nocturnehealth/clinscribe/internal/config"
	"github.com/nocturnehealth/clinscribe/internal/fusion"
	"github.com/nocturnehealth/clinscribe/pkg/provider/transcription"
	transcriptionmock "github.com/nocturnehealth/clinscribe/pkg/provider/transcription/mock"
)

func newTestApp(t *testing.T, providers *Providers) *App {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if providers == nil {
		providers = &Providers{}
	}
	a, err := New(context.Background(), cfg, providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerateNoteEndpoint(t *testing.T) {
	a := newTestApp(t, nil)
	mux := a.routes()

	rec := postJSON(t, mux, "/v1/notes", map[string]any{
		"transcriptText": "Patient reports severe chest pain for two hours. Patient denies fever.",
		"noteType":       "EDNote",
		"encounterId":    "enc-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body)
	}

	var resp struct {
		RenderedNote string            `json:"renderedNote"`
		QualityScore float64           `json:"qualityScore"`
		Sections     map[string]string `json:"sections"`
		Document     map[string]any    `json:"document"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !strings.Contains(resp.RenderedNote, "chest pain") {
		t.Errorf("rendered note missing complaint:\n%s", resp.RenderedNote)
	}
	if resp.QualityScore <= 0 || resp.QualityScore > 1 {
		t.Errorf("quality score = %v, want in (0, 1]", resp.QualityScore)
	}
	if resp.Document == nil {
		t.Error("ed_note response should carry a structured document")
	}
}

func TestGenerateNoteRejectsBadRequests(t *testing.T) {
	a := newTestApp(t, nil)
	mux := a.routes()

	for name, body := range map[string]map[string]any{
		"empty transcript": {"transcriptText": "", "noteType": "SOAP"},
		"unknown type":     {"transcriptText": "chest pain", "noteType": "haiku"},
	} {
		rec := postJSON(t, mux, "/v1/notes", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestTranscribeEndpointFusesAndAccumulates(t *testing.T) {
	providers := &Providers{
		Transcription: []transcription.Provider{
			&transcriptionmock.Provider{
				ProviderName: "general",
				Result:       transcription.Candidate{Text: "patient reports chest pain", Confidence: 0.8},
			},
			&transcriptionmock.Provider{
				ProviderName: "medical",
				Result:       transcription.Candidate{Text: "patient reports chest pain", Confidence: 0.9, Specialized: true},
			},
		},
	}
	a := newTestApp(t, providers)
	mux := a.routes()

	rec := postJSON(t, mux, "/v1/transcribe", transcribeRequest{
		EncounterID: "enc-42",
		SampleRate:  16000,
		Samples:     make([]float32, 16000),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body)
	}
	var resp transcribeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Text != "patient reports chest pain" {
		t.Errorf("fused text = %q", resp.Text)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("sources = %v, want both providers", resp.Sources)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/encounters/enc-42/transcript", nil)
	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, req)
	if getRec.Code != http.StatusOK {
		t.Fatalf("transcript status = %d, want 200", getRec.Code)
	}
	var tr transcriptResponse
	if err := json.Unmarshal(getRec.Body.Bytes(), &tr); err != nil {
		t.Fatalf("unmarshal transcript: %v", err)
	}
	if tr.Transcript != "patient reports chest pain" {
		t.Errorf("transcript = %q", tr.Transcript)
	}
	if len(tr.Windows) != 1 {
		t.Errorf("got %d windows, want 1", len(tr.Windows))
	}
}

func TestGenerateNoteFromStoredEncounter(t *testing.T) {
	providers := &Providers{
		Transcription: []transcription.Provider{
			&transcriptionmock.Provider{
				ProviderName: "general",
				Result:       transcription.Candidate{Text: "Patient reports shortness of breath.", Confidence: 0.85},
			},
		},
	}
	a := newTestApp(t, providers)
	mux := a.routes()

	rec := postJSON(t, mux, "/v1/transcribe", transcribeRequest{
		EncounterID: "enc-7",
		SampleRate:  16000,
		Samples:     make([]float32, 8000),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("transcribe status = %d; body: %s", rec.Code, rec.Body)
	}

	noteRec := postJSON(t, mux, "/v1/notes", map[string]any{
		"noteType":    "SOAP",
		"encounterId": "enc-7",
	})
	if noteRec.Code != http.StatusOK {
		t.Fatalf("note status = %d; body: %s", noteRec.Code, noteRec.Body)
	}
	if !strings.Contains(noteRec.Body.String(), "shortness of breath") {
		t.Errorf("note missing stored transcript content: %s", noteRec.Body)
	}
}

func TestGenerateNoteDefaultType(t *testing.T) {
	a := newTestApp(t, nil)
	rec := postJSON(t, a.routes(), "/v1/notes", map[string]any{
		"transcriptText": "Patient reports chest pain.",
		"encounterId":    "enc-2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body)
	}
	// EDNote is the configured default, so the structured document is present.
	if !strings.Contains(rec.Body.String(), `"document"`) {
		t.Error("default note type should produce an ED document")
	}
}

func TestTranscribeClientCandidates(t *testing.T) {
	a := newTestApp(t, nil)
	rec := postJSON(t, a.routes(), "/v1/transcribe", transcribeRequest{
		EncounterID: "enc-c",
		Candidates: []candidatePayload{
			{
				Provider: "on-device-a", Text: "patient reports dizziness", Confidence: 0.7,
				Segments: []segmentPayload{{Text: "patient reports dizziness", StartMs: 0, EndMs: 1800, Confidence: 0.7}},
			},
			{
				Provider: "on-device-b", Text: "patient reports dizziness", Confidence: 0.9, Specialized: true,
				Segments: []segmentPayload{{Text: "patient reports dizziness", StartMs: 0, EndMs: 2000, Confidence: 0.9}},
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body)
	}
	var resp transcribeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Text != "patient reports dizziness" {
		t.Errorf("fused text = %q", resp.Text)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("sources = %v, want both client engines", resp.Sources)
	}
	if len(resp.Segments) != 1 {
		t.Fatalf("segments = %+v, want the overlapping spans merged to one", resp.Segments)
	}
	if s := resp.Segments[0]; s.StartMs != 0 || s.EndMs != 2000 {
		t.Errorf("kept segment = %+v, want the higher-weight span 0..2000ms", s)
	}
}

func TestGenerateNoteUnknownEncounter(t *testing.T) {
	a := newTestApp(t, nil)
	rec := postJSON(t, a.routes(), "/v1/notes", map[string]any{
		"noteType":    "SOAP",
		"encounterId": "missing",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestTranscribeWithoutProviders(t *testing.T) {
	a := newTestApp(t, nil)
	rec := postJSON(t, a.routes(), "/v1/transcribe", transcribeRequest{
		EncounterID: "enc-1",
		SampleRate:  16000,
		Samples:     make([]float32, 100),
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestTranscribeAllProvidersFailed(t *testing.T) {
	providers := &Providers{
		Transcription: []transcription.Provider{
			&transcriptionmock.Provider{ProviderName: "a", Err: errors.New("model crashed")},
			&transcriptionmock.Provider{ProviderName: "b", Err: errors.New("model crashed")},
		},
	}
	a := newTestApp(t, providers)
	rec := postJSON(t, a.routes(), "/v1/transcribe", transcribeRequest{
		EncounterID: "enc-1",
		SampleRate:  16000,
		Samples:     make([]float32, 100),
	})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502; body: %s", rec.Code, rec.Body)
	}
}

func TestDeleteEncounter(t *testing.T) {
	a := newTestApp(t, nil)
	a.encounters.Append("enc-9", 0, fusion.Result{Text: "patient reports nausea"})
	mux := a.routes()

	req := httptest.NewRequest(http.MethodDelete, "/v1/encounters/enc-9", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if _, ok := a.encounters.Windows("enc-9"); ok {
		t.Error("encounter should be gone after delete")
	}
}

func TestHealthEndpoints(t *testing.T) {
	a := newTestApp(t, nil)
	mux := a.routes()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}
