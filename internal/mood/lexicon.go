package mood

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Class separates strong keywords from situational ones.
type Class int

const (
	Direct Class = iota + 1
	Contextual
)

func (c Class) String() string {
	switch c {
	case Direct:
		return "direct"
	case Contextual:
		return "contextual"
	default:
		return "unknown"
	}
}

const (
	DirectWeight     = 2
	ContextualWeight = 1
)

// KeywordRule adds Weight to Mood whenever Keyword occurs in the input.
type KeywordRule struct {
	Mood    Label
	Keyword string
	Class   Class
	Weight  int
}

// LexiconConfig is the raw material for NewLexicon.
type LexiconConfig struct {
	Rules            []KeywordRule
	Priority         []Label
	NegativeWords    []string
	PositiveWords    []string
	StrongIndicators []string
}

// Lexicon is immutable once built and safe for concurrent use.
type Lexicon struct {
	rules    []KeywordRule
	priority []Label
	negative []string
	positive []string
	strong   []string
}

// NewLexicon validates cfg and folds every keyword so scoring can compare
// against case-folded input directly.
func NewLexicon(cfg LexiconConfig) (*Lexicon, error) {
	if len(cfg.Rules) == 0 {
		return nil, errors.New("lexicon: at least one rule is required")
	}
	rules := make([]KeywordRule, 0, len(cfg.Rules))
	for i, r := range cfg.Rules {
		if !r.Mood.Valid() {
			return nil, fmt.Errorf("lexicon: rule %d: unknown mood %q", i, r.Mood)
		}
		kw := fold(strings.TrimSpace(r.Keyword))
		if kw == "" {
			return nil, fmt.Errorf("lexicon: rule %d: empty keyword", i)
		}
		if r.Weight <= 0 {
			return nil, fmt.Errorf("lexicon: rule %d: weight must be positive", i)
		}
		r.Keyword = kw
		rules = append(rules, r)
	}
	for _, p := range cfg.Priority {
		if !p.Valid() {
			return nil, fmt.Errorf("lexicon: unknown priority mood %q", p)
		}
	}
	return &Lexicon{
		rules:    rules,
		priority: append([]Label(nil), cfg.Priority...),
		negative: foldAll(cfg.NegativeWords),
		positive: foldAll(cfg.PositiveWords),
		strong:   foldAll(cfg.StrongIndicators),
	}, nil
}

// Rules returns a copy of the folded rule set.
func (lx *Lexicon) Rules() []KeywordRule {
	return append([]KeywordRule(nil), lx.rules...)
}

// Priority returns the tie-break order.
func (lx *Lexicon) Priority() []Label {
	return append([]Label(nil), lx.priority...)
}

// HasStrongIndicator reports whether text contains any strong indicator keyword.
func (lx *Lexicon) HasStrongIndicator(text string) bool {
	return containsAny(fold(text), lx.strong)
}

// DefaultLexicon returns the Indonesian keyword set the service ships with.
func DefaultLexicon() *Lexicon {
	direct := map[Label][]string{
		Stress: {"stress", "tegang", "kerja", "tugas", "tekanan", "capek", "lelah", "overtime"},
		Sedih:  {"sedih", "kecewa", "putus", "galau", "down", "hancur", "patah hati", "nangis"},
		Bosan:  {"bosan", "jenuh", "monoton", "gitu-gitu aja", "pengen yang beda", "gabut", "males"},
		Senang: {"senang", "bahagia", "gembira", "excited", "antusias", "happy", "seru", "asik"},
	}
	contextual := map[Label][]string{
		Stress: {"deadline", "atasan", "boss", "meeting", "laporan", "ujian", "macet", "telat", "lembur"},
		Sedih:  {"mantan", "ditolak", "gagal", "hujan", "sendiri", "sepi"},
		Bosan:  {"libur", "weekend", "dirumah", "netflix", "tidur", "kosong"},
		Senang: {"liburan", "gajian", "ultah", "lulus", "hadiah", "menang", "berhasil"},
	}

	var rules []KeywordRule
	for _, m := range labels {
		for _, kw := range direct[m] {
			rules = append(rules, KeywordRule{Mood: m, Keyword: kw, Class: Direct, Weight: DirectWeight})
		}
		for _, kw := range contextual[m] {
			rules = append(rules, KeywordRule{Mood: m, Keyword: kw, Class: Contextual, Weight: ContextualWeight})
		}
	}

	lx, err := NewLexicon(LexiconConfig{
		Rules:            rules,
		Priority:         []Label{Stress, Sedih, Bosan, Senang},
		NegativeWords:    []string{"tidak", "nggak", "gak", "susah", "sulit", "masalah", "ribet"},
		PositiveWords:    []string{"bagus", "keren", "mantap", "oke", "baik", "sip"},
		StrongIndicators: []string{"stress", "sedih", "bosan", "senang", "bahagia", "deadline", "kerja", "galau", "excited"},
	})
	if err != nil {
		panic(err)
	}
	return lx
}

// fold builds a fresh Caser per call; a Caser must not be shared between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

func foldAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if f := fold(strings.TrimSpace(w)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func containsAny(folded string, words []string) bool {
	for _, w := range words {
		if strings.Contains(folded, w) {
			return true
		}
	}
	return false
}

func countPresent(folded string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(folded, w) {
			n++
		}
	}
	return n
}
