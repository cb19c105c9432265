package catalog

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/cases"

	"moodfood-backend/internal/mood"
	"moodfood-backend/internal/shared/metrics"
	"moodfood-backend/internal/shared/telemetry"
)

// snapshot is built off to the side and published with one pointer store,
// so readers see either the old or the new catalog in full.
type snapshot struct {
	items     []FoodItem
	byMood    map[mood.Label][]FoodItem
	byID      map[string]int
	moodOrder []mood.Label
	version   string
	source    string
	loadedAt  time.Time
}

// Cache serves catalog reads from the latest successfully loaded snapshot.
type Cache struct {
	source  Source
	loadMu  sync.Mutex
	current atomic.Pointer[snapshot]
	now     func() time.Time
}

// NewCache creates an empty cache over src. Call Load before serving reads.
func NewCache(src Source) *Cache {
	return &Cache{source: src, now: time.Now}
}

// Load reads the source, validates it and swaps in a new snapshot. On any
// failure the current snapshot is left untouched.
func (c *Cache) Load(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	name := c.source.Name()
	doc, err := c.source.Load(ctx)
	if err != nil {
		return c.failLoad(name, err)
	}
	if err := Validate(doc); err != nil {
		return c.failLoad(name, err)
	}

	snap := buildSnapshot(doc, name, c.now().UTC())
	c.current.Store(snap)

	metrics.CatalogLoads.WithLabelValues("ok").Inc()
	metrics.CatalogFoods.Set(float64(len(snap.items)))
	telemetry.Info("catalog.loaded", map[string]any{
		"source":       name,
		"total_foods":  len(snap.items),
		"moods":        snap.moodOrder,
		"data_version": snap.version,
	})
	return nil
}

func (c *Cache) failLoad(source string, err error) error {
	metrics.CatalogLoads.WithLabelValues("error").Inc()
	telemetry.Error("catalog.load_failed", map[string]any{
		"source": source,
		"error":  err.Error(),
	})
	return &LoadError{Source: source, Err: err}
}

// Reload re-runs Load and summarises the new snapshot.
func (c *Cache) Reload(ctx context.Context) (ReloadSummary, error) {
	if err := c.Load(ctx); err != nil {
		return ReloadSummary{}, err
	}
	snap := c.current.Load()
	return ReloadSummary{
		Status:         "reloaded",
		Timestamp:      snap.loadedAt,
		TotalFoods:     len(snap.items),
		AvailableMoods: append([]mood.Label(nil), snap.moodOrder...),
		DataVersion:    snap.version,
	}, nil
}

func buildSnapshot(doc Document, source string, at time.Time) *snapshot {
	snap := &snapshot{
		items:    append([]FoodItem(nil), doc.Foods...),
		byMood:   make(map[mood.Label][]FoodItem),
		byID:     make(map[string]int, len(doc.Foods)),
		version:  strings.TrimSpace(doc.Metadata.Version),
		source:   source,
		loadedAt: at,
	}
	if snap.version == "" {
		snap.version = defaultVersion
	}
	for i, item := range snap.items {
		if _, ok := snap.byMood[item.Mood]; !ok {
			snap.moodOrder = append(snap.moodOrder, item.Mood)
		}
		snap.byMood[item.Mood] = append(snap.byMood[item.Mood], item)
		snap.byID[item.ID] = i
	}
	return snap
}

func (c *Cache) active() (*snapshot, error) {
	snap := c.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Loaded reports whether any snapshot has been published.
func (c *Cache) Loaded() bool {
	return c.current.Load() != nil
}

// Version returns the active data version, or the default before loading.
func (c *Cache) Version() string {
	if snap := c.current.Load(); snap != nil {
		return snap.version
	}
	return defaultVersion
}

// Query returns up to limit shuffled items of the mood bucket that pass f.
// A limit of zero or less returns every match.
func (c *Cache) Query(m mood.Label, limit int, f Filters) ([]FoodItem, error) {
	snap, err := c.active()
	if err != nil {
		return nil, err
	}
	return snap.query(m, limit, f), nil
}

// Selection is a query answered from a single snapshot.
type Selection struct {
	Foods   []FoodItem
	Total   int
	Version string
}

// Select runs Query and reads the unfiltered bucket size and data version
// from the same snapshot, so a concurrent reload cannot mix catalogs.
func (c *Cache) Select(m mood.Label, limit int, f Filters) (Selection, error) {
	snap, err := c.active()
	if err != nil {
		return Selection{}, err
	}
	return Selection{
		Foods:   snap.query(m, limit, f),
		Total:   len(snap.byMood[m]),
		Version: snap.version,
	}, nil
}

func (s *snapshot) query(m mood.Label, limit int, f Filters) []FoodItem {
	bucket := s.byMood[m]
	out := make([]FoodItem, 0, len(bucket))
	for _, item := range bucket {
		if f.Match(item) {
			out = append(out, item)
		}
	}
	shuffle(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// shuffle is an in-place Fisher-Yates over the process random source.
func shuffle(items []FoodItem) {
	for i := len(items) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// TotalForMood returns the unfiltered size of a mood bucket.
func (c *Cache) TotalForMood(m mood.Label) (int, error) {
	snap, err := c.active()
	if err != nil {
		return 0, err
	}
	return len(snap.byMood[m]), nil
}

// GetByID looks up a single item.
func (c *Cache) GetByID(id string) (FoodItem, bool) {
	snap := c.current.Load()
	if snap == nil {
		return FoodItem{}, false
	}
	idx, ok := snap.byID[id]
	if !ok {
		return FoodItem{}, false
	}
	return snap.items[idx], true
}

// Search matches text case-insensitively against name, description and
// tags, in catalog order. A limit of zero or less returns every match.
func (c *Cache) Search(text string, f Filters, limit int) ([]FoodItem, error) {
	snap, err := c.active()
	if err != nil {
		return nil, err
	}
	caser := cases.Fold()
	needle := caser.String(strings.TrimSpace(text))
	var out []FoodItem
	for _, item := range snap.items {
		if !matchesText(caser, item, needle) || !f.Match(item) {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func matchesText(caser cases.Caser, item FoodItem, needle string) bool {
	if strings.Contains(caser.String(item.Name), needle) || strings.Contains(caser.String(item.Description), needle) {
		return true
	}
	for _, tag := range item.Tags {
		if strings.Contains(caser.String(tag), needle) {
			return true
		}
	}
	return false
}

// Status describes the active snapshot without failing when none is loaded.
func (c *Cache) Status() Status {
	snap := c.current.Load()
	if snap == nil {
		return Status{}
	}
	at := snap.loadedAt
	return Status{
		Loaded:       true,
		LastLoadTime: &at,
		TotalFoods:   len(snap.items),
		CacheReady:   len(snap.byMood) > 0,
		Source:       snap.source,
	}
}

// Analytics computes distributions over the active snapshot.
func (c *Cache) Analytics() (Analytics, error) {
	snap, err := c.active()
	if err != nil {
		return Analytics{}, err
	}
	out := Analytics{
		TotalFoods:             len(snap.items),
		AvailableMoods:         append([]mood.Label(nil), snap.moodOrder...),
		MoodDistribution:       map[mood.Label]int{},
		CategoryDistribution:   map[string]int{},
		DifficultyDistribution: map[string]int{},
		PriceRangeDistribution: map[string]int{},
		LastLoaded:             snap.loadedAt,
		DataVersion:            snap.version,
	}

	var categories distinct
	prepSum, prepCount := 0, 0
	for _, item := range snap.items {
		out.MoodDistribution[item.Mood]++
		out.CategoryDistribution[item.Category]++
		categories.add(item.Category)
		if item.Difficulty != "" {
			out.DifficultyDistribution[item.Difficulty]++
		}
		if item.PriceRange != "" {
			out.PriceRangeDistribution[item.PriceRange]++
		}
		if item.PrepTime > 0 {
			prepSum += item.PrepTime
			prepCount++
		}
	}
	if prepCount > 0 {
		out.AveragePrepTime = float64(prepSum) / float64(prepCount)
	}
	out.Categories = categories.values()
	for _, m := range snap.moodOrder {
		out.CacheStatus = append(out.CacheStatus, MoodCount{Mood: m, Count: len(snap.byMood[m])})
	}
	return out, nil
}

// Options lists distinct filter values in first-seen order.
func (c *Cache) Options() (Options, error) {
	snap, err := c.active()
	if err != nil {
		return Options{}, err
	}
	var categories, difficulties, prices, tags distinct
	for _, item := range snap.items {
		categories.add(item.Category)
		difficulties.add(item.Difficulty)
		prices.add(item.PriceRange)
		for _, t := range item.Tags {
			tags.add(t)
		}
	}
	return Options{
		Moods:        append([]mood.Label(nil), snap.moodOrder...),
		Categories:   categories.values(),
		Difficulties: difficulties.values(),
		PriceRanges:  prices.values(),
		Tags:         tags.values(),
	}, nil
}

type distinct struct {
	seen map[string]struct{}
	list []string
}

func (d *distinct) add(v string) {
	if v == "" {
		return
	}
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	if _, ok := d.seen[v]; ok {
		return
	}
	d.seen[v] = struct{}{}
	d.list = append(d.list, v)
}

func (d *distinct) values() []string {
	if d.list == nil {
		return []string{}
	}
	return d.list
}
