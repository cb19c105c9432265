package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"moodfood-backend/internal/catalog"
	"moodfood-backend/internal/llm"
	"moodfood-backend/internal/mood"
	"moodfood-backend/internal/shared/metrics"
	"moodfood-backend/internal/shared/telemetry"
)

const defaultPersonalizeTimeout = 15 * time.Second

// Envelope is the recommendation response shape.
type Envelope struct {
	Mood                  mood.Label         `json:"mood"`
	MoodConfidence        mood.Confidence    `json:"mood_confidence"`
	MoodDetectionStrategy mood.StrategyName  `json:"mood_detection_strategy"`
	Recommendations       []catalog.FoodItem `json:"recommendations"`
	TotalAvailable        int                `json:"total_available"`
	FiltersApplied        catalog.Filters    `json:"filters_applied"`
	Personalized          bool               `json:"personalized"`
	Timestamp             time.Time          `json:"timestamp"`
	DataVersion           string             `json:"data_version"`
}

// BuildOptions carries the context the envelope reports back.
type BuildOptions struct {
	Personalize    bool
	Filters        catalog.Filters
	TotalAvailable int
	DataVersion    string
}

// Builder assembles envelopes, optionally asking a Personalizer for reasons.
type Builder struct {
	Personalizer llm.Personalizer
	Timeout      time.Duration
	Now          func() time.Time
}

// Build copies foods into an envelope. Personalisation failures are logged
// and the catalog reasons are kept.
func (b *Builder) Build(ctx context.Context, input string, det mood.Result, foods []catalog.FoodItem, opts BuildOptions) (Envelope, error) {
	if len(foods) == 0 {
		return Envelope{}, fmt.Errorf("%w: %s", ErrNoCandidates, det.Mood)
	}
	recs := append([]catalog.FoodItem(nil), foods...)

	personalized := false
	if opts.Personalize {
		reasons, err := b.personalize(ctx, input, det.Mood, recs)
		if err != nil {
			metrics.PersonalizationFallbacks.Inc()
			telemetry.Warn("recommend.personalize_failed", map[string]any{
				"mood":  det.Mood,
				"error": err.Error(),
			})
		} else {
			for i := range recs {
				if r := strings.TrimSpace(reasons[i]); r != "" {
					recs[i].Reason = r
				}
			}
			personalized = true
		}
	}

	return Envelope{
		Mood:                  det.Mood,
		MoodConfidence:        det.Confidence,
		MoodDetectionStrategy: det.Strategy,
		Recommendations:       recs,
		TotalAvailable:        opts.TotalAvailable,
		FiltersApplied:        opts.Filters,
		Personalized:          personalized,
		Timestamp:             b.now().UTC(),
		DataVersion:           opts.DataVersion,
	}, nil
}

func (b *Builder) personalize(ctx context.Context, input string, m mood.Label, foods []catalog.FoodItem) ([]string, error) {
	if b.Personalizer == nil {
		return nil, fmt.Errorf("%w: no personalizer configured", errPersonalization)
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = defaultPersonalizeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dishes := make([]llm.Dish, len(foods))
	for i, f := range foods {
		dishes[i] = llm.Dish{Name: f.Name, Description: f.Description}
	}
	reasons, err := b.Personalizer.Personalize(ctx, llm.PersonalizeInput{Text: input, Mood: string(m), Foods: dishes})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPersonalization, err)
	}
	if len(reasons) != len(foods) {
		return nil, fmt.Errorf("%w: got %d reasons for %d foods", errPersonalization, len(reasons), len(foods))
	}
	return reasons, nil
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
