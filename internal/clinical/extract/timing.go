package extract

import (
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11,
	"twelve": 12, "couple": 2, "few": 3, "several": 3,
}

var unitDurations = map[string]time.Duration{
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    day,
	"week":   7 * day,
	"month":  30 * day,
	"year":   365 * day,
}

// relativePhrases are fixed temporal expressions with an approximate elapsed
// time, used both as entity qualifiers and as standalone timing markers.
var relativePhrases = []struct {
	words   []string
	elapsed time.Duration
}{
	{[]string{"this", "morning"}, 6 * time.Hour},
	{[]string{"this", "afternoon"}, 3 * time.Hour},
	{[]string{"this", "evening"}, time.Hour},
	{[]string{"last", "night"}, 12 * time.Hour},
	{[]string{"yesterday"}, day},
	{[]string{"today"}, 6 * time.Hour},
}

// findDuration returns the first temporal phrase in the window, its parsed
// elapsed time, and whether one was found. Recognised forms are
// "<N> <unit>(s) ago" with numeric or spelled-out N, and the fixed relative
// phrases ("this morning", "yesterday", ...).
func findDuration(window []token) (string, time.Duration, bool) {
	for i := range window {
		if phrase, elapsed, ok := durationAt(window, i); ok {
			return phrase, elapsed, true
		}
	}
	return "", 0, false
}

// durationAt tries to parse a temporal phrase starting at index i.
func durationAt(tokens []token, i int) (string, time.Duration, bool) {
	for _, rp := range relativePhrases {
		if phraseAt(tokens, i, rp.words) {
			return strings.Join(rp.words, " "), rp.elapsed, true
		}
	}

	// "<N> <unit>(s) ago"
	if i+2 >= len(tokens) {
		return "", 0, false
	}
	n, ok := parseNumber(tokens[i].norm)
	if !ok {
		return "", 0, false
	}
	unit := strings.TrimSuffix(tokens[i+1].norm, "s")
	base, ok := unitDurations[unit]
	if !ok || tokens[i+2].norm != "ago" {
		return "", 0, false
	}
	phrase := tokens[i].norm + " " + tokens[i+1].norm + " ago"
	return phrase, time.Duration(n) * base, true
}

func parseNumber(s string) (int, bool) {
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// timingMarkers extracts every temporal phrase in the text as a distinct
// entity, so second-pass rules can reason about elapsed time independently of
// which entity a phrase happened to qualify.
func (x *Extractor) timingMarkers(tokens []token) []Entity {
	var out []Entity
	seen := make(map[string]bool)
	for i := 0; i < len(tokens); i++ {
		phrase, elapsed, ok := durationAt(tokens, i)
		if !ok || seen[phrase] {
			continue
		}
		seen[phrase] = true
		out = append(out, Entity{
			Kind:     KindTimingMarker,
			Name:     phrase,
			Elapsed:  elapsed,
			Status:   StatusActive,
			Position: i,
		})
	}
	return out
}
