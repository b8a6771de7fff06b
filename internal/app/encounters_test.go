package app

import (
	"testing"
	"time"

	"github.com/nocturnehealth/clinscribe/internal/fusion"
)

func TestEncounterStoreOrdersWindowsByOffset(t *testing.T) {
	t.Parallel()

	s := NewEncounterStore()
	s.Append("enc", 10*time.Second, fusion.Result{Text: "second window"})
	s.Append("enc", 0, fusion.Result{Text: "first window"})
	s.Append("enc", 20*time.Second, fusion.Result{Text: "third window"})

	transcript, ok := s.Transcript("enc")
	if !ok {
		t.Fatal("encounter should exist")
	}
	want := "first window second window third window"
	if transcript != want {
		t.Errorf("transcript = %q, want %q", transcript, want)
	}

	windows, _ := s.Windows("enc")
	if got := windows[1].OffsetMs; got != 10_000 {
		t.Errorf("OffsetMs = %d, want 10000 (milliseconds, not nanoseconds)", got)
	}
}

func TestEncounterStoreSkipsEmptyWindows(t *testing.T) {
	t.Parallel()

	s := NewEncounterStore()
	s.Append("enc", 0, fusion.Result{Text: "speech"})
	s.Append("enc", time.Second, fusion.Result{Text: "   "})

	transcript, _ := s.Transcript("enc")
	if transcript != "speech" {
		t.Errorf("transcript = %q, want %q", transcript, "speech")
	}
}

func TestEncounterStoreUnknownEncounter(t *testing.T) {
	t.Parallel()

	s := NewEncounterStore()
	if _, ok := s.Windows("nope"); ok {
		t.Error("unknown encounter should not exist")
	}
	if _, ok := s.Transcript("nope"); ok {
		t.Error("unknown encounter should have no transcript")
	}
}
