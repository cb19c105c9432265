package catalog

import (
	"time"

	"moodfood-backend/internal/mood"
)

const defaultVersion = "1.0"

// FoodItem is one recommendable dish. Items are read-only once loaded.
type FoodItem struct {
	ID                  string     `json:"id" yaml:"id" validate:"required"`
	Name                string     `json:"name" yaml:"name" validate:"required"`
	Description         string     `json:"description" yaml:"description" validate:"required"`
	Mood                mood.Label `json:"mood" yaml:"mood" validate:"required,mood"`
	Category            string     `json:"category" yaml:"category" validate:"required"`
	Difficulty          string     `json:"difficulty,omitempty" yaml:"difficulty"`
	PrepTime            int        `json:"prep_time" yaml:"prep_time" validate:"gte=0"`
	PriceRange          string     `json:"price_range,omitempty" yaml:"price_range"`
	Tags                []string   `json:"tags,omitempty" yaml:"tags"`
	NutritionalBenefits []string   `json:"nutritional_benefits,omitempty" yaml:"nutritional_benefits"`
	Ingredients         []string   `json:"ingredients,omitempty" yaml:"ingredients"`
	Reason              string     `json:"reason" yaml:"reason"`
}

// Metadata describes a catalog document.
type Metadata struct {
	Version string `json:"version" yaml:"version"`
}

// Document is the wire shape of a catalog source.
type Document struct {
	Foods    []FoodItem `json:"foods" yaml:"foods"`
	Metadata Metadata   `json:"metadata" yaml:"metadata"`
}

// Filters narrow a query. Zero fields are ignored.
type Filters struct {
	Category    string   `json:"category,omitempty" form:"category"`
	Difficulty  string   `json:"difficulty,omitempty" form:"difficulty"`
	MaxPrepTime int      `json:"max_prep_time,omitempty" form:"max_prep_time"`
	PriceRange  string   `json:"price_range,omitempty" form:"price_range"`
	Tags        []string `json:"tags,omitempty" form:"tags"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.Category == "" && f.Difficulty == "" && f.MaxPrepTime <= 0 && f.PriceRange == "" && len(f.Tags) == 0
}

// Match applies exact matches on category, difficulty and price range,
// an upper bound on prep time and any-overlap on tags.
func (f Filters) Match(item FoodItem) bool {
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.Difficulty != "" && item.Difficulty != f.Difficulty {
		return false
	}
	if f.MaxPrepTime > 0 && item.PrepTime > f.MaxPrepTime {
		return false
	}
	if f.PriceRange != "" && item.PriceRange != f.PriceRange {
		return false
	}
	if len(f.Tags) > 0 && !overlaps(item.Tags, f.Tags) {
		return false
	}
	return true
}

func overlaps(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// MoodCount is one mood bucket size.
type MoodCount struct {
	Mood  mood.Label `json:"mood"`
	Count int        `json:"count"`
}

// ReloadSummary is returned by Reload.
type ReloadSummary struct {
	Status         string       `json:"status"`
	Timestamp      time.Time    `json:"timestamp"`
	TotalFoods     int          `json:"total_foods"`
	AvailableMoods []mood.Label `json:"available_moods"`
	DataVersion    string       `json:"data_version"`
}

// Analytics summarises the active snapshot.
type Analytics struct {
	TotalFoods             int                `json:"total_foods"`
	Categories             []string           `json:"categories"`
	AvailableMoods         []mood.Label       `json:"available_moods"`
	MoodDistribution       map[mood.Label]int `json:"mood_distribution"`
	CategoryDistribution   map[string]int     `json:"category_distribution"`
	DifficultyDistribution map[string]int     `json:"difficulty_distribution"`
	PriceRangeDistribution map[string]int     `json:"price_range_distribution"`
	AveragePrepTime        float64            `json:"average_prep_time"`
	CacheStatus            []MoodCount        `json:"cache_status"`
	LastLoaded             time.Time          `json:"last_loaded"`
	DataVersion            string             `json:"data_version"`
}

// Status reports whether a snapshot is being served.
type Status struct {
	Loaded       bool       `json:"loaded"`
	LastLoadTime *time.Time `json:"last_load_time"`
	TotalFoods   int        `json:"total_foods"`
	CacheReady   bool       `json:"cache_ready"`
	Source       string     `json:"source,omitempty"`
}

// Options lists the distinct values callers can filter on.
type Options struct {
	Moods        []mood.Label `json:"moods"`
	Categories   []string     `json:"categories"`
	Difficulties []string     `json:"difficulties"`
	PriceRanges  []string     `json:"price_ranges"`
	Tags         []string     `json:"tags"`
}
