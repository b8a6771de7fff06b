package vocab

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML vocabulary overlay from path and merges it onto base.
// The overlay file uses the same schema as [Vocabulary]; unknown keys are
// rejected.
func Load(base *Vocabulary, path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: open %s: %w", path, err)
	}
	defer f.Close()
	v, err := LoadFromReader(base, f)
	if err != nil {
		return nil, fmt.Errorf("vocab: load %s: %w", path, err)
	}
	return v, nil
}

// LoadFromReader decodes a YAML overlay from r and merges it onto base,
// returning a new Vocabulary. base is not modified.
//
// Merge semantics: term lists and cue lists are appended (an overlay term
// whose name matches a built-in term replaces it); map tables are merged
// key-wise with overlay entries winning; risk rules are appended after the
// built-in rules so built-ins keep evaluation priority.
func LoadFromReader(base *Vocabulary, r io.Reader) (*Vocabulary, error) {
	var overlay Vocabulary
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&overlay); err != nil {
		if err == io.EOF {
			cp := *base
			return &cp, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	merged := *base
	merged.Symptoms = mergeTerms(base.Symptoms, overlay.Symptoms)
	merged.Medications = mergeTerms(base.Medications, overlay.Medications)
	merged.Conditions = mergeTerms(base.Conditions, overlay.Conditions)
	merged.Procedures = mergeTerms(base.Procedures, overlay.Procedures)
	merged.NegationCues = appendUnique(base.NegationCues, overlay.NegationCues)
	merged.Locations = appendUnique(base.Locations, overlay.Locations)
	merged.Qualities = appendUnique(base.Qualities, overlay.Qualities)
	merged.StatusCues = mergeMap(base.StatusCues, overlay.StatusCues)
	merged.Severities = mergeMap(base.Severities, overlay.Severities)
	merged.PertinentNegatives = mergeMap(base.PertinentNegatives, overlay.PertinentNegatives)
	merged.ComplaintCategories = mergeMap(base.ComplaintCategories, overlay.ComplaintCategories)
	merged.RiskRules = append(append([]RiskRule{}, base.RiskRules...), overlay.RiskRules...)
	return &merged, nil
}

func mergeTerms(base, overlay []Term) []Term {
	if len(overlay) == 0 {
		return base
	}
	out := make([]Term, 0, len(base)+len(overlay))
	replaced := make(map[string]bool, len(overlay))
	for _, o := range overlay {
		replaced[o.Name] = true
	}
	for _, b := range base {
		if !replaced[b.Name] {
			out = append(out, b)
		}
	}
	return append(out, overlay...)
}

func appendUnique(base, overlay []string) []string {
	if len(overlay) == 0 {
		return base
	}
	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base)+len(overlay))
	for _, s := range base {
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range overlay {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func mergeMap[V any](base, overlay map[string]V) map[string]V {
	if len(overlay) == 0 {
		return base
	}
	out := make(map[string]V, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
