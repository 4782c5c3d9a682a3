// Package audit implements C3, the fragment auditor: a deterministic
// heuristic scorer, the fragment_state transition rules, and the
// peer-consensus check that promotes or demotes a suspected fragment.
package audit

import (
	"strings"
	"unicode"
)

// Weight values for the heuristic scorer. Each is applied
// independently per spec.md §4.3's "combining" language: a fact that
// trips the very-short check also trips the moderately-short check,
// and both contribute. Values are implementation-defined but fixed
// and documented here, not tuned per input.
const (
	weightStrong = 0.40
	weightWeak   = 0.12
)

var leadingPronouns = map[string]bool{
	"he": true, "she": true, "they": true, "it": true,
	"this": true, "that": true, "these": true, "those": true,
	"we": true, "i": true,
}

// Score returns a heuristic fragment score in [0.0, 1.0] for content
// plus the list of triggered reason tags; the auditor comma-joins them
// into fragment_reason.
func Score(content string) (float64, []string) {
	tokens := strings.Fields(content)
	var score float64
	var reasons []string

	add := func(weight float64, tag string) {
		score += weight
		reasons = append(reasons, tag)
	}

	if len(tokens) < 4 {
		add(weightStrong, "very_short")
	}
	if len(tokens) < 8 {
		add(weightWeak, "moderately_short")
	}
	if !hasNamedEntityLikeToken(tokens) {
		add(weightWeak, "no_named_entity")
	}
	if len(tokens) > 0 && leadingPronouns[strings.ToLower(tokens[0])] {
		add(weightWeak, "pronoun_leading")
	}
	if !endsWithTerminator(content) {
		add(weightWeak, "no_sentence_terminator")
	}
	if startsLowercase(content) {
		add(weightWeak, "lowercase_start")
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}

func hasNamedEntityLikeToken(tokens []string) bool {
	for _, tok := range tokens {
		runes := []rune(tok)
		if len(runes) == 0 {
			continue
		}
		if unicode.IsUpper(runes[0]) {
			return true
		}
		for _, r := range runes {
			if unicode.IsDigit(r) {
				return true
			}
		}
	}
	return false
}

func endsWithTerminator(content string) bool {
	trimmed := strings.TrimRightFunc(content, unicode.IsSpace)
	if trimmed == "" {
		return false
	}
	last := trimmed[len(trimmed)-1]
	return last == '.' || last == '!' || last == '?'
}

func startsLowercase(content string) bool {
	for _, r := range content {
		if unicode.IsLetter(r) {
			return unicode.IsLower(r)
		}
	}
	return false
}
