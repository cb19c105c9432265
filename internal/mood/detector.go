package mood

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"moodfood-backend/internal/shared/metrics"
	"moodfood-backend/internal/shared/telemetry"
)

// StrategyName identifies how a mood was decided.
type StrategyName string

const (
	StrategyExternal StrategyName = "external"
	StrategyKeyword  StrategyName = "keyword"
	StrategyFallback StrategyName = "fallback"
	StrategyDefault  StrategyName = "default"
	StrategyManual   StrategyName = "manual"
)

// Confidence grades a detection result.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceManual  Confidence = "manual"
	ConfidenceUnknown Confidence = "unknown"
)

// Result is the outcome of one detection.
type Result struct {
	Mood       Label        `json:"mood"`
	Strategy   StrategyName `json:"strategy"`
	Confidence Confidence   `json:"confidence"`
}

// DefaultResult is returned when every configured strategy came up empty.
func DefaultResult() Result {
	return Result{Mood: Stress, Strategy: StrategyDefault, Confidence: ConfidenceLow}
}

// ManualResult describes a mood chosen by the caller rather than detected.
func ManualResult(m Label) Result {
	return Result{Mood: m, Strategy: StrategyManual, Confidence: ConfidenceManual}
}

// Classifier labels free text with a mood. Implementations may fail, time
// out or answer with something outside the closed set.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Strategy is a closed set: ExternalStrategy, KeywordStrategy, FallbackStrategy.
type Strategy interface {
	Name() StrategyName
	sealed()
}

// ExternalStrategy asks a Classifier.
type ExternalStrategy struct {
	Classifier Classifier
}

// KeywordStrategy scores text against the lexicon.
type KeywordStrategy struct{}

// FallbackStrategy applies the surface heuristics and always succeeds.
type FallbackStrategy struct{}

func (ExternalStrategy) Name() StrategyName { return StrategyExternal }
func (KeywordStrategy) Name() StrategyName  { return StrategyKeyword }
func (FallbackStrategy) Name() StrategyName { return StrategyFallback }

func (ExternalStrategy) sealed() {}
func (KeywordStrategy) sealed()  {}
func (FallbackStrategy) sealed() {}

const defaultExternalTimeout = 8 * time.Second

var sharedDefault = sync.OnceValue(DefaultLexicon)

// Detector runs strategies in order and returns the first mood produced.
type Detector struct {
	Lexicon         *Lexicon
	Classifier      Classifier
	ExternalTimeout time.Duration
	Location        *time.Location
	BatchWorkers    int
	Now             func() time.Time
}

// NewDetector builds a detector over lx. classifier may be nil, in which
// case the default strategy list skips the external step.
func NewDetector(lx *Lexicon, classifier Classifier) *Detector {
	if lx == nil {
		lx = sharedDefault()
	}
	return &Detector{
		Lexicon:         lx,
		Classifier:      classifier,
		ExternalTimeout: defaultExternalTimeout,
		Location:        time.Local,
		BatchWorkers:    4,
		Now:             time.Now,
	}
}

// DefaultStrategies returns external (when a classifier is wired), keyword, fallback.
func (d *Detector) DefaultStrategies() []Strategy {
	out := make([]Strategy, 0, 3)
	if d.Classifier != nil {
		out = append(out, ExternalStrategy{Classifier: d.Classifier})
	}
	return append(out, KeywordStrategy{}, FallbackStrategy{})
}

// ParseStrategies maps API names onto strategies. An empty list means defaults.
func (d *Detector) ParseStrategies(names []string) ([]Strategy, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]Strategy, 0, len(names))
	for _, raw := range names {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "external", "ai":
			out = append(out, ExternalStrategy{Classifier: d.Classifier})
		case "keyword", "keywords":
			out = append(out, KeywordStrategy{})
		case "fallback":
			out = append(out, FallbackStrategy{})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, raw)
		}
	}
	return out, nil
}

// Detect classifies text. Strategy failures are logged and skipped; only
// empty input is reported as an error.
func (d *Detector) Detect(ctx context.Context, text string, strategies ...Strategy) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyInput
	}
	if len(strategies) == 0 {
		strategies = d.DefaultStrategies()
	}

	for _, s := range strategies {
		m, err := d.run(ctx, s, text)
		if err != nil {
			metrics.StrategyFailures.WithLabelValues(string(s.Name())).Inc()
			telemetry.Warn("mood.strategy_failed", map[string]any{
				"strategy":  s.Name(),
				"error":     err.Error(),
				"input_len": len(text),
			})
			continue
		}
		res := Result{Mood: m, Strategy: s.Name(), Confidence: d.confidence(s.Name(), text)}
		metrics.MoodDetections.WithLabelValues(string(res.Strategy), string(res.Mood)).Inc()
		return res, nil
	}

	res := DefaultResult()
	metrics.MoodDetections.WithLabelValues(string(res.Strategy), string(res.Mood)).Inc()
	return res, nil
}

func (d *Detector) run(ctx context.Context, s Strategy, text string) (Label, error) {
	switch st := s.(type) {
	case ExternalStrategy:
		return d.external(ctx, st, text)
	case KeywordStrategy:
		m, ok := d.lexicon().Analyze(text)
		if !ok {
			return "", ErrNoKeywordMatch
		}
		return m, nil
	case FallbackStrategy:
		return d.lexicon().Fallback(text, d.hour()), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownStrategy, s)
	}
}

func (d *Detector) external(ctx context.Context, st ExternalStrategy, text string) (Label, error) {
	if st.Classifier == nil {
		return "", fmt.Errorf("%w: classifier not configured", ErrStrategyFailed)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStrategyFailed, err)
	}

	callCtx := ctx
	if d.ExternalTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.ExternalTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := st.Classifier.Classify(callCtx, text)
	metrics.ObserveExternalCall("classify", start, err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStrategyFailed, err)
	}
	m, ok := ParseLabel(raw)
	if !ok {
		return "", fmt.Errorf("%w: classifier answered %q", ErrStrategyFailed, raw)
	}
	return m, nil
}

func (d *Detector) confidence(name StrategyName, text string) Confidence {
	switch name {
	case StrategyExternal:
		return ConfidenceHigh
	case StrategyKeyword:
		if d.lexicon().HasStrongIndicator(text) {
			return ConfidenceMedium
		}
		return ConfidenceLow
	default:
		return ConfidenceLow
	}
}

func (d *Detector) lexicon() *Lexicon {
	if d.Lexicon == nil {
		return sharedDefault()
	}
	return d.Lexicon
}

func (d *Detector) hour() int {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc).Hour()
}
