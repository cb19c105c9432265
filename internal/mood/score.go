package mood

import "strings"

// ScoreVector holds one non-negative score per mood.
type ScoreVector map[Label]int

// Score adds each matching rule's weight to its mood. Matching is plain
// substring containment on case-folded text, so a keyword also matches
// inside longer words ("libur" inside "liburan").
func (lx *Lexicon) Score(text string) ScoreVector {
	vec := make(ScoreVector, len(labels))
	for _, l := range labels {
		vec[l] = 0
	}
	folded := fold(text)
	for _, r := range lx.rules {
		if strings.Contains(folded, r.Keyword) {
			vec[r.Mood] += r.Weight
		}
	}
	return vec
}

// Max returns the highest score in the vector.
func (v ScoreVector) Max() int {
	best := 0
	for _, s := range v {
		if s > best {
			best = s
		}
	}
	return best
}

// Select picks the winning mood. It reports false when nothing scored.
// Ties go to the first tied mood in the priority order, then to the first
// tied mood in enumeration order.
func (lx *Lexicon) Select(v ScoreVector) (Label, bool) {
	best := v.Max()
	if best == 0 {
		return "", false
	}

	var tied []Label
	for _, l := range labels {
		if v[l] == best {
			tied = append(tied, l)
		}
	}
	if len(tied) == 1 {
		return tied[0], true
	}

	for _, p := range lx.priority {
		for _, t := range tied {
			if p == t {
				return t, true
			}
		}
	}
	return tied[0], true
}

// Analyze scores text and selects a mood in one step.
func (lx *Lexicon) Analyze(text string) (Label, bool) {
	return lx.Select(lx.Score(text))
}
