package mood

import "strings"

// Label is one of the closed set of moods every component understands.
type Label string

const (
	Senang Label = "senang"
	Sedih  Label = "sedih"
	Stress Label = "stress"
	Bosan  Label = "bosan"
)

var labels = []Label{Senang, Sedih, Stress, Bosan}

// Labels returns the moods in enumeration order.
func Labels() []Label {
	return append([]Label(nil), labels...)
}

// ParseLabel trims and lowercases raw and reports whether it names a known mood.
func ParseLabel(raw string) (Label, bool) {
	candidate := Label(strings.ToLower(strings.TrimSpace(raw)))
	for _, l := range labels {
		if l == candidate {
			return l, true
		}
	}
	return "", false
}

// Valid reports whether l is in the closed set.
func (l Label) Valid() bool {
	for _, known := range labels {
		if l == known {
			return true
		}
	}
	return false
}

func (l Label) String() string {
	return string(l)
}
