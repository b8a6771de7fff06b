// Package note assembles structured clinical notes from fused transcript
// text.
//
// The pipeline per request is fixed: extract entities, deduplicate narrative
// sentences, build a [ClinicalAssessment], then render it into the requested
// note format. Building and rendering are deterministic rule-table lookups;
// given the same transcript and vocabulary the output is identical across
// runs.
package note

import (
	"fmt"

	"github.com/nocturnehealth/clinscribe/internal/clinical/extract"
)

// Type identifies a supported note format.
type Type string

const (
	SOAP      Type = "SOAP"
	EDNote    Type = "EDNote"
	Progress  Type = "Progress"
	Consult   Type = "Consult"
	Handoff   Type = "Handoff"
	Discharge Type = "Discharge"
)

// Types lists every supported note type.
func Types() []Type {
	return []Type{SOAP, EDNote, Progress, Consult, Handoff, Discharge}
}

// ParseType converts a string into a [Type].
func ParseType(s string) (Type, error) {
	for _, t := range Types() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("note: unknown note type %q", s)
}

// Phase distinguishes a first encounter note from a follow-up.
type Phase string

const (
	PhaseInitial  Phase = "initial"
	PhaseFollowUp Phase = "followUp"
)

// Request is one note-generation request.
type Request struct {
	// TranscriptText is the accumulated fused transcript for the encounter.
	TranscriptText string `json:"transcriptText"`

	// NoteType selects the output format.
	NoteType Type `json:"noteType"`

	// EncounterID identifies the encounter; echoed into machine-readable
	// output.
	EncounterID string `json:"encounterId"`

	// Phase is the encounter phase; defaults to initial when empty.
	Phase Phase `json:"phase"`
}

// Response is the rendered note plus its quality metadata.
type Response struct {
	// RenderedNote is the complete format-specific note text.
	RenderedNote string `json:"renderedNote"`

	// QualityScore is in [0, 1]; placeholder-filled sections lower it.
	QualityScore float64 `json:"qualityScore"`

	// Sections maps section name to rendered section content, including
	// placeholder-filled ones.
	Sections map[string]string `json:"sections"`

	// Document is the machine-readable projection, populated for ED notes
	// only.
	Document *EDDocument `json:"document,omitempty"`
}

// EDDocument is the machine-readable projection of an ED note. Only fields
// with content are emitted; EncounterID and Phase are always present.
type EDDocument struct {
	EncounterID           string `json:"EncounterID"`
	Phase                 string `json:"Phase"`
	ChiefComplaint        string `json:"ChiefComplaint,omitempty"`
	HPI                   string `json:"HPI,omitempty"`
	ROS                   string `json:"ROS,omitempty"`
	PE                    string `json:"PE,omitempty"`
	MDM                   string `json:"MDM,omitempty"`
	FinalImpression       string `json:"FinalImpression,omitempty"`
	Dispo                 string `json:"Dispo,omitempty"`
	DischargeInstructions string `json:"DischargeInstructions,omitempty"`
}

// Assessment is the structured intermediate every note format renders from.
// It is built once per request and not mutated afterwards.
type Assessment struct {
	ChiefComplaint string

	// HPI is the assembled history-of-present-illness narrative.
	HPI string

	// ROS maps body system to findings ("positive for X", "denies Y").
	ROS map[string][]string

	// PertinentNegatives are expected findings for the complaint category
	// that the patient did not report, excluding confirmed positives.
	PertinentNegatives []string

	// PhysicalExam holds exam narrative dictated in the transcript, when any.
	PhysicalExam string

	Medications []extract.Entity
	RiskFactors []extract.Entity

	// Differentials is the ranked differential diagnosis list.
	Differentials []string

	PlanItems   []string
	MDM         string
	Disposition string

	Phase Phase
}

// RiskLevel summarises the highest severity among derived risk factors:
// "high", "elevated" or "routine".
func (a *Assessment) RiskLevel() string {
	level := "routine"
	for _, r := range a.RiskFactors {
		switch r.Severity {
		case "HIGH RISK":
			return "high"
		case "ELEVATED RISK":
			level = "elevated"
		}
	}
	return level
}
