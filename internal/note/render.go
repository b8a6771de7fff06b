package note

import (
	"fmt"
	"strings"

	"github.com/nocturnehealth/clinscribe/internal/clinical/extract"
)

// Placeholder fills a required section for which the transcript yielded no
// content. Downstream EMR-style consumers require every section present, so
// missing data is made explicit rather than omitted.
const Placeholder = "Not assessed."

// placeholderPenalty is subtracted from the quality score per
// placeholder-filled required section.
const placeholderPenalty = 0.15

// sectionSpec is one row of a note format's layout table.
type sectionSpec struct {
	name     string
	required bool
	fill     func(*Assessment) string
}

// noteLayouts defines every supported format as data: section order, which
// sections are required, and how each is filled from the assessment. Adding a
// format is adding a table entry.
var noteLayouts = map[Type][]sectionSpec{
	SOAP: {
		{"Subjective", true, fillSubjective},
		{"Objective", true, fillExam},
		{"Assessment", true, fillMDM},
		{"Plan", true, fillPlan},
	},
	EDNote: {
		{"Chief Complaint", true, fillChiefComplaint},
		{"HPI", true, fillHPI},
		{"ROS", true, fillROS},
		{"Physical Exam", true, fillExam},
		{"MDM", true, fillMDM},
		{"Final Impression", true, fillImpression},
		{"Disposition", true, fillDisposition},
		{"Discharge Instructions", false, fillDischargeInstructions},
	},
	Progress: {
		{"Interval History", true, fillHPI},
		{"Assessment", true, fillMDM},
		{"Plan", true, fillPlan},
	},
	Consult: {
		{"Reason for Consultation", true, fillReasonForConsult},
		{"HPI", true, fillHPI},
		{"Assessment", true, fillMDM},
		{"Recommendations", true, fillPlan},
	},
	Handoff: {
		{"Situation", true, fillSituation},
		{"Background", true, fillBackground},
		{"Assessment", true, fillMDM},
		{"Recommendation", true, fillPlan},
	},
	Discharge: {
		{"Diagnosis", true, fillImpression},
		{"Hospital Course", true, fillHPI},
		{"Discharge Medications", true, fillMedications},
		{"Discharge Instructions", true, fillDischargeInstructions},
		{"Follow-up", true, fillFollowUp},
	},
}

// RequiredSections returns the required section names for a note type, in
// render order.
func RequiredSections(t Type) []string {
	var out []string
	for _, s := range noteLayouts[t] {
		if s.required {
			out = append(out, s.name)
		}
	}
	return out
}

// Render walks the format's layout table, fills each section from the
// assessment, substitutes [Placeholder] for empty required sections, and
// composes the final note text. The quality score starts at 1.0 and loses
// [placeholderPenalty] per substituted placeholder, floored at 0.
func Render(t Type, a *Assessment) (rendered string, sections map[string]string, quality float64, err error) {
	layout, ok := noteLayouts[t]
	if !ok {
		return "", nil, 0, fmt.Errorf("%w: %q", ErrUnknownNoteType, t)
	}

	sections = make(map[string]string, len(layout))
	quality = 1.0
	var sb strings.Builder
	for _, spec := range layout {
		content := strings.TrimSpace(spec.fill(a))
		if content == "" {
			if !spec.required {
				continue
			}
			content = Placeholder
			quality -= placeholderPenalty
		}
		sections[spec.name] = content
		fmt.Fprintf(&sb, "%s:\n%s\n\n", strings.ToUpper(spec.name), content)
	}
	if quality < 0 {
		quality = 0
	}
	return strings.TrimRight(sb.String(), "\n") + "\n", sections, quality, nil
}

// EDDocumentFrom projects rendered ED-note sections into the machine-readable
// document. Placeholder-filled sections are carried through so the document
// mirrors the rendered note exactly.
func EDDocumentFrom(encounterID string, phase Phase, sections map[string]string) *EDDocument {
	if phase == "" {
		phase = PhaseInitial
	}
	return &EDDocument{
		EncounterID:           encounterID,
		Phase:                 string(phase),
		ChiefComplaint:        sections["Chief Complaint"],
		HPI:                   sections["HPI"],
		ROS:                   sections["ROS"],
		PE:                    sections["Physical Exam"],
		MDM:                   sections["MDM"],
		FinalImpression:       sections["Final Impression"],
		Dispo:                 sections["Disposition"],
		DischargeInstructions: sections["Discharge Instructions"],
	}
}

// rosSystemOrder fixes the rendering order of ROS systems.
var rosSystemOrder = []string{
	"Constitutional", "Cardiovascular", "Respiratory", "Gastrointestinal", "Neurological",
}

func fillChiefComplaint(a *Assessment) string { return a.ChiefComplaint }
func fillHPI(a *Assessment) string            { return a.HPI }
func fillExam(a *Assessment) string           { return a.PhysicalExam }
func fillMDM(a *Assessment) string            { return a.MDM }
func fillDisposition(a *Assessment) string    { return a.Disposition }

func fillROS(a *Assessment) string {
	var lines []string
	for _, system := range rosSystemOrder {
		findings := a.ROS[system]
		if len(findings) == 0 {
			continue
		}
		lines = append(lines, system+": "+strings.Join(findings, "; ")+".")
	}
	if len(a.PertinentNegatives) > 0 {
		lines = append(lines, "Pertinent negatives: denies "+strings.Join(a.PertinentNegatives, ", ")+".")
	}
	return strings.Join(lines, "\n")
}

func fillSubjective(a *Assessment) string {
	parts := []string{a.HPI}
	if ros := fillROS(a); ros != "" {
		parts = append(parts, ros)
	}
	if meds := fillMedications(a); meds != "" {
		parts = append(parts, "Medications: "+strings.ReplaceAll(meds, "\n", "; "))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func fillMedications(a *Assessment) string {
	var lines []string
	for _, m := range a.Medications {
		line := m.Name
		var notes []string
		if m.Class != "" {
			notes = append(notes, m.Class)
		}
		if m.Status != "" && m.Status != extract.StatusActive {
			notes = append(notes, string(m.Status))
		}
		if len(notes) > 0 {
			line += " (" + strings.Join(notes, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func fillPlan(a *Assessment) string {
	var lines []string
	for _, item := range a.PlanItems {
		lines = append(lines, "- "+item)
	}
	if a.Disposition != "" {
		lines = append(lines, "- "+a.Disposition)
	}
	return strings.Join(lines, "\n")
}

func fillImpression(a *Assessment) string {
	if len(a.Differentials) == 0 {
		return ""
	}
	out := "Working diagnosis: " + a.Differentials[0] + "."
	if level := a.RiskLevel(); level != "routine" {
		out += " Risk stratification: " + level + "."
	}
	return out
}

func fillReasonForConsult(a *Assessment) string {
	if a.ChiefComplaint == "" {
		return ""
	}
	return "Evaluation of " + a.ChiefComplaint + "."
}

func fillSituation(a *Assessment) string {
	if a.ChiefComplaint == "" {
		return ""
	}
	return "Patient presenting with " + a.ChiefComplaint + ", risk level " + a.RiskLevel() + "."
}

func fillBackground(a *Assessment) string {
	var parts []string
	if meds := fillMedications(a); meds != "" {
		parts = append(parts, "Medications: "+strings.ReplaceAll(meds, "\n", "; ")+".")
	}
	for _, r := range a.RiskFactors {
		parts = append(parts, r.Name+".")
	}
	return strings.Join(parts, " ")
}

func fillDischargeInstructions(a *Assessment) string {
	if a.RiskLevel() == "high" {
		// High-risk patients are not discharged from the note pipeline's
		// perspective; the section stays empty.
		return ""
	}
	return "Return to the emergency department immediately for worsening symptoms, " +
		"new chest pain, shortness of breath, or any other concerning change."
}

func fillFollowUp(a *Assessment) string {
	if a.RiskLevel() == "routine" {
		return "Follow up with primary care within one week."
	}
	return "Follow up with primary care within 48 hours; sooner if symptoms worsen."
}
