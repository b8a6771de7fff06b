package note

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nocturnehealth/clinscribe/internal/clinical/dedupe"
	"github.com/nocturnehealth/clinscribe/internal/clinical/extract"
	"github.com/nocturnehealth/clinscribe/internal/vocab"
)

// rosSystems maps complaint categories to ROS system headings.
var rosSystems = map[string]string{
	"cardiac":          "Cardiovascular",
	"respiratory":      "Respiratory",
	"gastrointestinal": "Gastrointestinal",
	"neurological":     "Neurological",
	"general":          "Constitutional",
}

// differentialsByCategory is the base ranked differential list per complaint
// category. Risk factors reorder it (see rankDifferentials).
var differentialsByCategory = map[string][]string{
	"cardiac":          {"Acute coronary syndrome", "Pulmonary embolism", "Aortic dissection", "Musculoskeletal chest pain", "Gastroesophageal reflux"},
	"respiratory":      {"Pneumonia", "Pulmonary embolism", "COPD exacerbation", "Acute bronchitis"},
	"gastrointestinal": {"Gastroenteritis", "Appendicitis", "Cholecystitis", "Peptic ulcer disease"},
	"neurological":     {"Migraine", "Tension headache", "Transient ischemic attack", "Vestibular neuritis"},
	"general":          {"Viral syndrome", "Dehydration", "Early sepsis"},
}

// planByCategory is the base workup plan per complaint category.
var planByCategory = map[string][]string{
	"cardiac":          {"Obtain ECG", "Serial troponins", "Chest x-ray", "Continuous cardiac monitoring"},
	"respiratory":      {"Chest x-ray", "Continuous pulse oximetry", "Consider CT pulmonary angiography"},
	"gastrointestinal": {"CBC and metabolic panel", "Lipase", "Abdominal imaging as indicated"},
	"neurological":     {"Neurological examination", "Consider CT head", "Orthostatic vital signs"},
	"general":          {"CBC and metabolic panel", "Symptomatic treatment", "Reassess after initial workup"},
}

// Builder assembles a [Assessment] from extracted entities and deduplicated
// sentences. Safe for concurrent use.
type Builder struct {
	vocab *vocab.Vocabulary
}

// NewBuilder creates a [Builder] over the shared vocabulary.
func NewBuilder(v *vocab.Vocabulary) *Builder {
	return &Builder{vocab: v}
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

// Sentences splits transcript text into classified narrative sentences, the
// unit the deduplicator works on. Each starts with SourceCount 1.
func (b *Builder) Sentences(text string) []dedupe.Sentence {
	var out []dedupe.Sentence
	for _, raw := range sentenceSplitRe.Split(text, -1) {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		out = append(out, dedupe.Sentence{
			Content:     s,
			Topic:       b.classify(s),
			SourceCount: 1,
		})
	}
	return out
}

var onsetWords = []string{"started", "began", "ago", "since", "onset"}

// classify assigns a coarse topic: onset, symptom:X, medication:X,
// condition:X or general.
func (b *Builder) classify(sentence string) string {
	lowered := strings.ToLower(sentence)
	for _, w := range onsetWords {
		if strings.Contains(lowered, w) {
			return "onset"
		}
	}
	for _, group := range []struct {
		prefix string
		terms  []vocab.Term
	}{
		{"symptom", b.vocab.Symptoms},
		{"medication", b.vocab.Medications},
		{"condition", b.vocab.Conditions},
	} {
		prefix := group.prefix
		for _, term := range group.terms {
			for _, variant := range append([]string{term.Name}, term.Aliases...) {
				if strings.Contains(lowered, strings.ToLower(variant)) {
					return prefix + ":" + term.Name
				}
			}
		}
	}
	return "general"
}

// Build assembles the assessment. entities must be in first-mention order;
// sentences must already be deduplicated.
func (b *Builder) Build(entities []extract.Entity, sentences []dedupe.Sentence, phase Phase) *Assessment {
	if phase == "" {
		phase = PhaseInitial
	}
	a := &Assessment{
		ROS:   make(map[string][]string),
		Phase: phase,
	}

	var complaint *extract.Entity
	for i := range entities {
		e := &entities[i]
		switch e.Kind {
		case extract.KindSymptom:
			if !e.Negated && complaint == nil {
				complaint = e
			}
			b.addROSFinding(a, e)
		case extract.KindMedication:
			a.Medications = append(a.Medications, *e)
		case extract.KindRiskFactor:
			a.RiskFactors = append(a.RiskFactors, *e)
		}
	}

	category := "general"
	if complaint != nil {
		a.ChiefComplaint = complaint.Name
		category = b.vocab.Category(complaint.Name)
	}

	a.PertinentNegatives = b.pertinentNegatives(category, entities)
	a.PhysicalExam = examNarrative(sentences)
	a.HPI = b.buildHPI(complaint, a, sentences)
	a.Differentials = rankDifferentials(category, a.RiskFactors)
	a.PlanItems = buildPlan(category, a.RiskLevel())
	a.MDM = buildMDM(a, category)
	a.Disposition = buildDisposition(a.RiskLevel())
	return a
}

func (b *Builder) addROSFinding(a *Assessment, e *extract.Entity) {
	system := rosSystems[b.vocab.Category(e.Name)]
	if system == "" {
		system = rosSystems["general"]
	}
	finding := "positive for " + e.Name
	if e.Negated {
		finding = "denies " + e.Name
	}
	a.ROS[system] = append(a.ROS[system], finding)
}

// pertinentNegatives returns the expected findings for the complaint category
// that the transcript did not mention at all. Confirmed positives are
// excluded per the table's contract; explicitly denied findings already
// appear in the ROS and are not repeated.
func (b *Builder) pertinentNegatives(category string, entities []extract.Entity) []string {
	mentioned := make(map[string]bool)
	for _, e := range entities {
		if e.Kind == extract.KindSymptom {
			mentioned[strings.ToLower(e.Name)] = true
		}
	}
	var out []string
	for _, expected := range b.vocab.PertinentNegatives[category] {
		if !mentioned[strings.ToLower(expected)] {
			out = append(out, expected)
		}
	}
	return out
}

// buildHPI composes the narrative: an opening sentence that varies by phase
// and risk-factor presence, the complaint qualifiers, then the deduplicated
// onset sentences.
func (b *Builder) buildHPI(complaint *extract.Entity, a *Assessment, sentences []dedupe.Sentence) string {
	var parts []string

	switch {
	case complaint == nil:
		parts = append(parts, "Patient presents for evaluation.")
	case a.Phase == PhaseFollowUp:
		parts = append(parts, fmt.Sprintf("Patient returns for follow-up of %s.", describeComplaint(complaint)))
	case len(a.RiskFactors) > 0:
		parts = append(parts, fmt.Sprintf("Patient presents with %s in the setting of %s.",
			describeComplaint(complaint), riskNames(a.RiskFactors)))
	default:
		parts = append(parts, fmt.Sprintf("Patient presents with %s.", describeComplaint(complaint)))
	}

	for _, s := range sentences {
		if s.Topic == "onset" {
			parts = append(parts, ensurePeriod(s.Content))
		}
	}
	return strings.Join(parts, " ")
}

// describeComplaint folds the entity qualifiers into a noun phrase, e.g.
// "severe chest pain, described as radiating, located in the jaw, beginning
// two hours ago".
func describeComplaint(e *extract.Entity) string {
	desc := e.Name
	if e.Severity != "" {
		desc = e.Severity + " " + desc
	}
	if e.Quality != "" {
		desc += ", described as " + e.Quality
	}
	if e.Location != "" {
		desc += ", located in the " + e.Location
	}
	if e.Duration != "" {
		desc += ", beginning " + e.Duration
	}
	return desc
}

func riskNames(risks []extract.Entity) string {
	names := make([]string, len(risks))
	for i, r := range risks {
		names[i] = strings.TrimPrefix(r.Name, r.Severity+": ")
	}
	return strings.Join(names, "; ")
}

// rankDifferentials reorders the category's base list: a VTE-related risk
// factor promotes pulmonary embolism to the top.
func rankDifferentials(category string, risks []extract.Entity) []string {
	base := differentialsByCategory[category]
	out := append([]string(nil), base...)
	for _, r := range risks {
		if !strings.Contains(r.Name, "VTE") {
			continue
		}
		for i, d := range out {
			if d == "Pulmonary embolism" && i > 0 {
				copy(out[1:i+1], out[:i])
				out[0] = d
				break
			}
		}
	}
	return out
}

func buildPlan(category, riskLevel string) []string {
	plan := append([]string(nil), planByCategory[category]...)
	if riskLevel == "high" {
		plan = append(plan, "Expedited workup given high-risk features")
	}
	return plan
}

// buildMDM varies the medical-decision-making narrative by risk level and
// complaint category.
func buildMDM(a *Assessment, category string) string {
	var sb strings.Builder
	if a.ChiefComplaint != "" {
		fmt.Fprintf(&sb, "Patient presenting with %s (%s complaint). ", a.ChiefComplaint, category)
	} else {
		sb.WriteString("Patient presenting for evaluation. ")
	}
	switch a.RiskLevel() {
	case "high":
		fmt.Fprintf(&sb, "High-risk features present: %s. These elevate concern for serious pathology and warrant expedited evaluation. ", riskNames(a.RiskFactors))
	case "elevated":
		fmt.Fprintf(&sb, "Risk factors noted: %s. ", riskNames(a.RiskFactors))
	default:
		sb.WriteString("No high-risk features identified on initial assessment. ")
	}
	if len(a.Differentials) > 0 {
		fmt.Fprintf(&sb, "Differential diagnosis includes: %s.", strings.Join(a.Differentials, "; "))
	}
	return strings.TrimSpace(sb.String())
}

func buildDisposition(riskLevel string) string {
	switch riskLevel {
	case "high":
		return "Disposition pending expedited workup; anticipate observation or admission."
	case "elevated":
		return "Disposition pending diagnostic workup."
	default:
		return "Anticipate discharge home with return precautions if workup is unremarkable."
	}
}

var examWords = []string{"exam", "examination", "auscultation", "palpation"}

// examNarrative collects dictated physical-exam sentences.
func examNarrative(sentences []dedupe.Sentence) string {
	var parts []string
	for _, s := range sentences {
		lowered := strings.ToLower(s.Content)
		for _, w := range examWords {
			if strings.Contains(lowered, w) {
				parts = append(parts, ensurePeriod(s.Content))
				break
			}
		}
	}
	return strings.Join(parts, " ")
}

func ensurePeriod(s string) string {
	if strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}
