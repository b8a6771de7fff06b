package app

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nocturnehealth/clinscribe/internal/fusion"
)

// FusedWindow is one fused transcription window within an encounter. OffsetMs
// is the window start in milliseconds, matching the transcribe request field.
type FusedWindow struct {
	OffsetMs   int64    `json:"offsetMs"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// encounter accumulates fused windows for one recording session.
type encounter struct {
	windows   []FusedWindow
	updatedAt time.Time
}

// EncounterStore keeps the fused transcript accumulated so far per encounter.
// It is an in-memory working set for in-progress recordings, not a medical
// record store; callers persist the finished note elsewhere.
type EncounterStore struct {
	mu         sync.Mutex
	encounters map[string]*encounter
}

// NewEncounterStore creates an empty store.
func NewEncounterStore() *EncounterStore {
	return &EncounterStore{encounters: make(map[string]*encounter)}
}

// Append records a fused window for the encounter, creating it on first use.
func (s *EncounterStore) Append(encounterID string, offset time.Duration, res fusion.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc, ok := s.encounters[encounterID]
	if !ok {
		enc = &encounter{}
		s.encounters[encounterID] = enc
	}
	enc.windows = append(enc.windows, FusedWindow{
		OffsetMs:   offset.Milliseconds(),
		Text:       res.Text,
		Confidence: res.Confidence,
		Sources:    res.Sources,
	})
	enc.updatedAt = time.Now()
}

// Windows returns the fused windows for an encounter ordered by offset, and
// whether the encounter exists.
func (s *EncounterStore) Windows(encounterID string) ([]FusedWindow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc, ok := s.encounters[encounterID]
	if !ok {
		return nil, false
	}
	out := make([]FusedWindow, len(enc.windows))
	copy(out, enc.windows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OffsetMs < out[j].OffsetMs })
	return out, true
}

// Transcript returns the encounter's accumulated transcript text in window
// order, and whether the encounter exists.
func (s *EncounterStore) Transcript(encounterID string) (string, bool) {
	windows, ok := s.Windows(encounterID)
	if !ok {
		return "", false
	}
	parts := make([]string, 0, len(windows))
	for _, w := range windows {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), true
}

// Delete removes an encounter's accumulated windows.
func (s *EncounterStore) Delete(encounterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.encounters, encounterID)
}

// Len returns the number of live encounters.
func (s *EncounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.encounters)
}
