package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/nocturnehealth/clinscribe/internal/vocab"
)

// defaultWindow is the token radius scanned around a match for negation cues
// and qualifiers.
const defaultWindow = 10

// scopeResetters end a negation scope: a cue found on the far side of one of
// these does not govern the match. "denies fever, reports chest pain" must
// not negate the chest pain.
var scopeResetters = map[string]bool{
	"reports": true, "reporting": true, "endorses": true, "complains": true,
	"admits": true, "states": true, "describes": true,
}

// Extractor turns transcript text into ordered [Entity] records using the
// vocabulary store's term lists, cues and rule tables.
type Extractor struct {
	vocab  *vocab.Vocabulary
	window int
	fuzzy  bool
}

// Option configures an [Extractor].
type Option func(*Extractor)

// WithWindow sets the token radius for negation and qualifier scanning.
// Default: 10.
func WithWindow(n int) Option {
	return func(x *Extractor) {
		if n > 0 {
			x.window = n
		}
	}
}

// WithFuzzyMatching toggles the phonetic fuzzy fallback for single-word
// terms, which recovers vocabulary words the acoustic models misspell
// ("warfrin" for "warfarin"). Default: enabled.
func WithFuzzyMatching(enabled bool) Option {
	return func(x *Extractor) { x.fuzzy = enabled }
}

// New creates an [Extractor] over the given vocabulary. The vocabulary must
// not be mutated afterwards.
func New(v *vocab.Vocabulary, opts ...Option) *Extractor {
	x := &Extractor{vocab: v, window: defaultWindow, fuzzy: true}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// token is one whitespace-delimited word with its normalised form and
// whether it ends a clause (trailing punctuation).
type token struct {
	norm      string
	clauseEnd bool
}

func tokenize(text string) []token {
	fields := strings.Fields(text)
	out := make([]token, len(fields))
	for i, f := range fields {
		trimmed := strings.TrimRight(f, ".,;:!?")
		out[i] = token{
			norm:      strings.ToLower(strings.Trim(trimmed, "\"'()")),
			clauseEnd: trimmed != f,
		}
	}
	return out
}

// Extract scans text and returns entities ordered by first mention, with
// derived risk factors appended. An empty or unmatched text yields an empty
// slice, never an error.
func (x *Extractor) Extract(text string) []Entity {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	var entities []Entity
	seen := make(map[string]bool)

	for _, kind := range []Kind{KindSymptom, KindMedication, KindCondition, KindProcedure} {
		for _, term := range x.vocab.TermList(string(kind)) {
			pos, end, ok := x.findTerm(tokens, term)
			if !ok {
				continue
			}
			key := string(kind) + "/" + term.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			entities = append(entities, x.qualify(Entity{
				Kind:     kind,
				Name:     term.Name,
				Class:    term.Class,
				Status:   StatusActive,
				Position: pos,
			}, tokens, pos, end))
		}
	}

	entities = append(entities, x.timingMarkers(tokens)...)

	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Position < entities[j].Position
	})

	return append(entities, x.deriveRiskFactors(entities)...)
}

// findTerm locates the earliest mention of a term (canonical name or alias)
// as a token sequence. Returns the start and end token indices of the match.
func (x *Extractor) findTerm(tokens []token, term vocab.Term) (start, end int, ok bool) {
	variants := append([]string{term.Name}, term.Aliases...)
	best := -1
	bestEnd := 0
	for _, v := range variants {
		words := strings.Fields(strings.ToLower(v))
		if len(words) == 0 {
			continue
		}
		for i := 0; i+len(words) <= len(tokens); i++ {
			if best >= 0 && i >= best {
				break
			}
			if x.matchAt(tokens, i, words) {
				best = i
				bestEnd = i + len(words) - 1
				break
			}
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return best, bestEnd, true
}

func (x *Extractor) matchAt(tokens []token, i int, words []string) bool {
	for j, w := range words {
		tok := tokens[i+j].norm
		if tok == w {
			continue
		}
		// Fuzzy fallback only for single-word terms long enough that a
		// phonetic collision is unlikely.
		if x.fuzzy && len(words) == 1 && len(w) >= 5 && phoneticMatch(tok, w) {
			continue
		}
		return false
	}
	return true
}

// phoneticMatch reports whether tok plausibly is a misrecognition of word:
// same primary Double Metaphone code and high Jaro-Winkler similarity.
func phoneticMatch(tok, word string) bool {
	if len(tok) < 4 {
		return false
	}
	p1, s1 := matchr.DoubleMetaphone(tok)
	p2, s2 := matchr.DoubleMetaphone(word)
	if p1 != p2 && (s1 == "" || s1 != s2) {
		return false
	}
	return matchr.JaroWinkler(tok, word, true) >= 0.88
}

// qualify scans the token window around a match for negation, status,
// severity, duration, location and quality.
func (x *Extractor) qualify(e Entity, tokens []token, start, end int) Entity {
	e.Negated = x.negated(tokens, start, end)

	lo := max(0, start-x.window)
	hi := min(len(tokens), end+1+x.window)
	window := tokens[lo:hi]
	// Location and quality scan only the flanks: the matched term's own
	// tokens must not qualify it ("chest pain" is not located in the chest
	// of the sentence, and "chest pressure" is not of quality "pressure").
	before, after := tokens[lo:start], tokens[end+1:hi]

	if status, ok := x.findPhraseValue(window, x.vocab.StatusCues); ok {
		e.Status = Status(status)
	}
	if e.Negated {
		return e
	}

	if sev, ok := x.findPhraseValue(window, x.vocab.Severities); ok {
		e.Severity = sev
	} else if sev, ok := numericSeverity(window); ok {
		e.Severity = sev
	}
	if dur, _, ok := findDuration(window); ok {
		e.Duration = dur
	}
	e.Location = x.findFromFlanks(before, after, x.vocab.Locations)
	e.Quality = x.findFromFlanks(before, after, x.vocab.Qualities)
	return e
}

// findFromFlanks scans the tokens before the match, then the tokens after it.
func (x *Extractor) findFromFlanks(before, after []token, list []string) string {
	if v := x.findFromList(before, list); v != "" {
		return v
	}
	return x.findFromList(after, list)
}

// negated scans outward from the match in both directions, up to the window
// radius, for a negation cue. The scan stops at a clause boundary or a
// scope-resetting word, so a cue in a different clause does not negate the
// match.
func (x *Extractor) negated(tokens []token, start, end int) bool {
	// Backward: cues like "denies", "no", "without" precede the term.
	for i := start - 1; i >= 0 && i >= start-x.window; i-- {
		if x.cueEndsAt(tokens, i) {
			return true
		}
		if scopeResetters[tokens[i].norm] || tokens[i].clauseEnd {
			break
		}
	}
	// Forward: "chest pain was ruled out".
	for i := end + 1; i < len(tokens) && i <= end+x.window; i++ {
		if tokens[i-1].clauseEnd {
			break
		}
		if x.cueStartsAt(tokens, i) {
			return true
		}
		if scopeResetters[tokens[i].norm] {
			break
		}
	}
	return false
}

func (x *Extractor) cueEndsAt(tokens []token, i int) bool {
	for _, cue := range x.vocab.NegationCues {
		words := strings.Fields(strings.ToLower(cue))
		startIdx := i - len(words) + 1
		if startIdx < 0 {
			continue
		}
		if phraseAt(tokens, startIdx, words) {
			return true
		}
	}
	return false
}

func (x *Extractor) cueStartsAt(tokens []token, i int) bool {
	for _, cue := range x.vocab.NegationCues {
		words := strings.Fields(strings.ToLower(cue))
		if phraseAt(tokens, i, words) {
			return true
		}
	}
	return false
}

func phraseAt(tokens []token, i int, words []string) bool {
	if i+len(words) > len(tokens) {
		return false
	}
	for j, w := range words {
		if tokens[i+j].norm != w {
			return false
		}
	}
	return true
}

// findPhraseValue returns the mapped value of the first cue phrase from m
// found in the window.
func (x *Extractor) findPhraseValue(window []token, m map[string]string) (string, bool) {
	for i := range window {
		for phrase, value := range m {
			words := strings.Fields(strings.ToLower(phrase))
			if phraseAt(window, i, words) {
				return value, true
			}
		}
	}
	return "", false
}

func (x *Extractor) findFromList(window []token, list []string) string {
	for i := range window {
		for _, item := range list {
			words := strings.Fields(strings.ToLower(item))
			if phraseAt(window, i, words) {
				return item
			}
		}
	}
	return ""
}

var painScaleRe = regexp.MustCompile(`^(\d{1,2})(?:/10)?$`)

// numericSeverity maps pain-scale mentions ("8 out of 10", "7/10") to a
// canonical severity label.
func numericSeverity(window []token) (string, bool) {
	for i, tok := range window {
		m := painScaleRe.FindStringSubmatch(tok.norm)
		if m == nil {
			continue
		}
		isScale := strings.HasSuffix(tok.norm, "/10") ||
			(i+2 < len(window) && window[i+1].norm == "out" && window[i+2].norm == "of")
		if !isScale {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > 10 {
			continue
		}
		switch {
		case n <= 3:
			return "mild", true
		case n <= 6:
			return "moderate", true
		default:
			return "severe", true
		}
	}
	return "", false
}
