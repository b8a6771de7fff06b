// Package vocab provides the clinical vocabulary and pattern store consumed
// by the entity extractor and the note builder.
//
// A Vocabulary holds term lists (symptoms, medications, conditions,
// procedures), negation cues, qualifier lookup tables, the
// pertinent-negative table keyed by chief-complaint category, and the ordered
// risk-factor derivation rules. It is loaded once at process start —
// [Default] plus any YAML overlay files — and is read-only afterwards, so it
// may be shared across concurrent note-generation requests without locking.
package vocab

import "strings"

// Term is one clinical vocabulary entry. Matching is case-insensitive against
// Name and every alias; extracted entities always carry the canonical Name.
type Term struct {
	// Name is the canonical term (e.g. "chest pain", "warfarin").
	Name string `yaml:"name"`

	// Aliases lists alternate phrasings mapped to the same canonical term
	// (e.g. "blood thinner" for an anticoagulant-class medication).
	Aliases []string `yaml:"aliases"`

	// Class groups related terms for rule matching (e.g. "anticoagulant",
	// "vte"). Empty for unclassed terms.
	Class string `yaml:"class"`
}

// Matches reports whether text equals the term name or one of its aliases,
// ignoring case.
func (t Term) Matches(text string) bool {
	if strings.EqualFold(text, t.Name) {
		return true
	}
	for _, a := range t.Aliases {
		if strings.EqualFold(text, a) {
			return true
		}
	}
	return false
}

// EntityPattern is one predicate of a risk rule: it matches when the
// extracted entity set contains at least one entity of the given kind whose
// term class (or canonical name, when Class is empty) matches, with the
// required status, and which is not negated.
type EntityPattern struct {
	// Kind is the entity kind to match: "symptom", "medication", "condition"
	// or "procedure".
	Kind string `yaml:"kind"`

	// Class matches the term class of the entity. When empty, Name is used.
	Class string `yaml:"class"`

	// Name matches the canonical entity name, case-insensitive. Ignored when
	// Class is set.
	Name string `yaml:"name"`

	// Status, when non-empty, requires the entity's status to equal it
	// (e.g. "discontinued").
	Status string `yaml:"status"`
}

// RiskRule derives a risk factor from a combination of extracted entities.
// Rules are data, not code: the extractor applies them in order with one
// generic matcher, so new rules are added without touching control flow.
type RiskRule struct {
	// Name is the derived risk factor (e.g. "VTE with anticoagulation gap").
	Name string `yaml:"name"`

	// Severity is the fixed severity label attached to the derived entity
	// (e.g. "HIGH RISK").
	Severity string `yaml:"severity"`

	// When lists the entity patterns that must all be satisfied.
	When []EntityPattern `yaml:"when"`

	// MinElapsedDays, when > 0, additionally requires a timing marker whose
	// elapsed time is at least this many days.
	MinElapsedDays int `yaml:"min_elapsed_days"`
}

// Vocabulary is the complete read-only pattern store.
type Vocabulary struct {
	Symptoms    []Term `yaml:"symptoms"`
	Medications []Term `yaml:"medications"`
	Conditions  []Term `yaml:"conditions"`
	Procedures  []Term `yaml:"procedures"`

	// NegationCues are scanned in the token window around a term match;
	// finding one marks the entity negated.
	NegationCues []string `yaml:"negation_cues"`

	// StatusCues maps status-indicating phrases to the entity status they
	// imply (e.g. "ran out of" → "discontinued").
	StatusCues map[string]string `yaml:"status_cues"`

	// Severities maps severity phrasings to canonical labels
	// (e.g. "really bad" → "severe").
	Severities map[string]string `yaml:"severities"`

	// Locations and Qualities are attached to symptom entities when found in
	// the match window.
	Locations []string `yaml:"locations"`
	Qualities []string `yaml:"qualities"`

	// PertinentNegatives maps a chief-complaint category to the findings a
	// complete note must document as present or absent.
	PertinentNegatives map[string][]string `yaml:"pertinent_negatives"`

	// ComplaintCategories maps a canonical symptom name to its complaint
	// category (e.g. "chest pain" → "cardiac").
	ComplaintCategories map[string]string `yaml:"complaint_categories"`

	// RiskRules is the ordered risk-factor derivation table.
	RiskRules []RiskRule `yaml:"risk_rules"`
}

// TermList returns the term list for an entity kind, or nil for kinds without
// vocabulary (timing markers, derived risk factors).
func (v *Vocabulary) TermList(kind string) []Term {
	switch kind {
	case "symptom":
		return v.Symptoms
	case "medication":
		return v.Medications
	case "condition":
		return v.Conditions
	case "procedure":
		return v.Procedures
	default:
		return nil
	}
}

// DomainTerms returns every canonical name and alias across all term lists.
// The fusion engine counts occurrences of these to reward candidates that
// recognise clinical vocabulary.
func (v *Vocabulary) DomainTerms() []string {
	var out []string
	for _, list := range [][]Term{v.Symptoms, v.Medications, v.Conditions, v.Procedures} {
		for _, t := range list {
			out = append(out, t.Name)
			out = append(out, t.Aliases...)
		}
	}
	return out
}

// Category returns the complaint category for a canonical symptom name, or
// "general" when the symptom is not categorised.
func (v *Vocabulary) Category(symptom string) string {
	if c, ok := v.ComplaintCategories[strings.ToLower(symptom)]; ok {
		return c
	}
	return "general"
}

// Default returns the built-in clinical vocabulary. Deployments overlay
// site-specific YAML files on top via [Merge]; the built-in set is broad
// enough for the common emergency-department presentations the note formats
// target.
func Default() *Vocabulary {
	return &Vocabulary{
		Symptoms: []Term{
			{Name: "chest pain", Aliases: []string{"chest tightness", "chest pressure", "chest discomfort"}},
			{Name: "shortness of breath", Aliases: []string{"dyspnea", "trouble breathing", "short of breath"}},
			{Name: "fever", Aliases: []string{"febrile", "high temperature"}},
			{Name: "chills"},
			{Name: "nausea", Aliases: []string{"nauseated", "nauseous"}},
			{Name: "vomiting", Aliases: []string{"threw up", "throwing up", "emesis"}},
			{Name: "headache", Aliases: []string{"head pain"}},
			{Name: "abdominal pain", Aliases: []string{"stomach pain", "belly pain", "stomach ache"}},
			{Name: "cough", Aliases: []string{"coughing"}},
			{Name: "dizziness", Aliases: []string{"dizzy", "lightheaded", "lightheadedness"}},
			{Name: "palpitations", Aliases: []string{"heart racing", "racing heart"}},
			{Name: "leg swelling", Aliases: []string{"swollen leg", "leg edema"}},
			{Name: "leg pain", Aliases: []string{"calf pain"}},
			{Name: "syncope", Aliases: []string{"passed out", "fainted", "fainting"}},
			{Name: "diaphoresis", Aliases: []string{"sweating", "sweaty"}},
			{Name: "back pain"},
			{Name: "weakness", Aliases: []string{"weak"}},
			{Name: "numbness", Aliases: []string{"tingling"}},
			{Name: "weight loss"},
			{Name: "fatigue", Aliases: []string{"tired", "exhausted"}},
		},
		Medications: []Term{
			{Name: "warfarin", Class: "anticoagulant", Aliases: []string{"coumadin"}},
			{Name: "apixaban", Class: "anticoagulant", Aliases: []string{"eliquis"}},
			{Name: "rivaroxaban", Class: "anticoagulant", Aliases: []string{"xarelto"}},
			{Name: "heparin", Class: "anticoagulant"},
			{Name: "blood thinner", Class: "anticoagulant", Aliases: []string{"blood thinners"}},
			{Name: "aspirin", Class: "antiplatelet"},
			{Name: "clopidogrel", Class: "antiplatelet", Aliases: []string{"plavix"}},
			{Name: "metoprolol", Class: "beta-blocker"},
			{Name: "lisinopril", Class: "ace-inhibitor"},
			{Name: "atorvastatin", Class: "statin", Aliases: []string{"lipitor"}},
			{Name: "insulin", Class: "antidiabetic"},
			{Name: "metformin", Class: "antidiabetic"},
			{Name: "ibuprofen", Class: "nsaid", Aliases: []string{"advil", "motrin"}},
			{Name: "acetaminophen", Aliases: []string{"tylenol", "paracetamol"}},
			{Name: "albuterol", Class: "bronchodilator"},
			{Name: "nitroglycerin", Class: "nitrate"},
		},
		Conditions: []Term{
			{Name: "history of VTE", Class: "vte", Aliases: []string{"blood clot", "blood clots", "dvt", "deep vein thrombosis", "pulmonary embolism"}},
			{Name: "hypertension", Class: "cardiovascular-risk", Aliases: []string{"high blood pressure"}},
			{Name: "diabetes", Class: "cardiovascular-risk", Aliases: []string{"diabetic", "diabetes mellitus"}},
			{Name: "hyperlipidemia", Class: "cardiovascular-risk", Aliases: []string{"high cholesterol"}},
			{Name: "coronary artery disease", Class: "cardiac", Aliases: []string{"heart disease", "prior heart attack", "myocardial infarction"}},
			{Name: "atrial fibrillation", Class: "cardiac", Aliases: []string{"afib", "a-fib", "irregular heartbeat"}},
			{Name: "asthma", Class: "pulmonary"},
			{Name: "copd", Class: "pulmonary", Aliases: []string{"emphysema", "chronic bronchitis"}},
			{Name: "chronic kidney disease", Aliases: []string{"kidney disease"}},
			{Name: "cancer", Class: "malignancy", Aliases: []string{"malignancy"}},
		},
		Procedures: []Term{
			{Name: "appendectomy"},
			{Name: "cholecystectomy", Aliases: []string{"gallbladder removal", "gallbladder surgery"}},
			{Name: "coronary stent", Aliases: []string{"stent placement", "cardiac stent"}},
			{Name: "knee replacement", Aliases: []string{"knee surgery"}},
			{Name: "hip replacement", Aliases: []string{"hip surgery"}},
			{Name: "cesarean section", Aliases: []string{"c-section"}},
		},
		NegationCues: []string{
			"denies", "denied", "no", "not", "without", "ruled out", "negative for", "never had", "free of",
		},
		StatusCues: map[string]string{
			"ran out":      "discontinued",
			"ran out of":   "discontinued",
			"stopped":      "discontinued",
			"discontinued": "discontinued",
			"quit":         "discontinued",
			"off":          "discontinued",
			"resolved":     "resolved",
			"better now":   "resolved",
			"went away":    "resolved",
		},
		Severities: map[string]string{
			"mild":       "mild",
			"slight":     "mild",
			"moderate":   "moderate",
			"severe":     "severe",
			"terrible":   "severe",
			"worst":      "severe",
			"really bad": "severe",
			"excruciating": "severe",
		},
		Locations: []string{
			"jaw", "left arm", "right arm", "arm", "shoulder", "neck", "back",
			"chest", "abdomen", "head", "leg", "calf", "epigastric", "substernal",
		},
		Qualities: []string{
			"sharp", "dull", "crushing", "pressure", "squeezing", "burning",
			"stabbing", "aching", "radiating", "intermittent", "constant", "tearing",
		},
		PertinentNegatives: map[string][]string{
			"cardiac":          {"shortness of breath", "diaphoresis", "nausea", "palpitations", "syncope"},
			"respiratory":      {"fever", "chest pain", "leg swelling"},
			"gastrointestinal": {"vomiting", "fever", "blood in stool"},
			"neurological":     {"weakness", "numbness", "vision changes", "syncope"},
			"general":          {"fever", "chills", "weight loss"},
		},
		ComplaintCategories: map[string]string{
			"chest pain":          "cardiac",
			"palpitations":        "cardiac",
			"syncope":             "cardiac",
			"shortness of breath": "respiratory",
			"cough":               "respiratory",
			"abdominal pain":      "gastrointestinal",
			"nausea":              "gastrointestinal",
			"vomiting":            "gastrointestinal",
			"headache":            "neurological",
			"dizziness":           "neurological",
			"weakness":            "neurological",
			"numbness":            "neurological",
		},
		RiskRules: []RiskRule{
			{
				Name:     "VTE with anticoagulation gap",
				Severity: "HIGH RISK",
				When: []EntityPattern{
					{Kind: "condition", Class: "vte"},
					{Kind: "medication", Class: "anticoagulant", Status: "discontinued"},
				},
				MinElapsedDays: 1,
			},
			{
				Name:     "chest pain with cardiac history",
				Severity: "ELEVATED RISK",
				When: []EntityPattern{
					{Kind: "symptom", Name: "chest pain"},
					{Kind: "condition", Class: "cardiac"},
				},
			},
			{
				Name:     "chest pain with multiple cardiovascular risk factors",
				Severity: "ELEVATED RISK",
				When: []EntityPattern{
					{Kind: "symptom", Name: "chest pain"},
					{Kind: "condition", Class: "cardiovascular-risk"},
				},
			},
		},
	}
}
