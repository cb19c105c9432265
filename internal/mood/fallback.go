package mood

import (
	"strings"
	"unicode/utf8"
)

const shortInputRunes = 20

// Fallback guesses a mood from surface features of text. The first check
// that decides wins; it never fails.
func (lx *Lexicon) Fallback(text string, hour int) Label {
	if utf8.RuneCountInString(text) < shortInputRunes {
		return Bosan
	}

	folded := fold(text)
	if m, ok := lx.tone(text, folded); ok {
		return m
	}
	if countPresent(folded, lx.negative) > 1 {
		return Stress
	}
	if m, ok := timeOfDay(hour); ok {
		return m
	}
	return Stress
}

func (lx *Lexicon) tone(raw, folded string) (Label, bool) {
	if strings.Count(raw, "!") > 2 {
		if containsAny(folded, lx.positive) {
			return Senang, true
		}
		return Stress, true
	}
	if strings.Count(raw, "?") > 1 {
		return Stress, true
	}
	return "", false
}

func timeOfDay(hour int) (Label, bool) {
	switch {
	case hour >= 9 && hour <= 17:
		return Stress, true
	case hour >= 19 && hour <= 23:
		return Bosan, true
	default:
		return "", false
	}
}
