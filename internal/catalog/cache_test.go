package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"moodfood-backend/internal/mood"
)

type stubSource struct {
	mu   sync.Mutex
	doc  Document
	err  error
	name string
}

func (s *stubSource) Name() string {
	if s.name == "" {
		return "stub"
	}
	return s.name
}

func (s *stubSource) Load(context.Context) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, s.err
}

func (s *stubSource) set(doc Document, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc, s.err = doc, err
}

func food(id string, m mood.Label, category string) FoodItem {
	return FoodItem{
		ID:          id,
		Name:        "Food " + id,
		Description: "Deskripsi " + id,
		Mood:        m,
		Category:    category,
		Reason:      "default reason " + id,
	}
}

func sampleDoc() Document {
	items := []FoodItem{
		food("s1", mood.Senang, "dessert"),
		food("s2", mood.Senang, "main"),
		food("d1", mood.Sedih, "soup"),
		food("t1", mood.Stress, "snack"),
		food("t2", mood.Stress, "drink"),
		food("t3", mood.Stress, "snack"),
	}
	items[0].Difficulty, items[0].PriceRange, items[0].PrepTime = "easy", "low", 10
	items[0].Tags = []string{"manis", "dingin"}
	items[1].Difficulty, items[1].PriceRange, items[1].PrepTime = "medium", "mid", 30
	items[2].Difficulty, items[2].PriceRange, items[2].PrepTime = "easy", "low", 20
	items[2].Tags = []string{"hangat"}
	items[3].Difficulty, items[3].PrepTime = "easy", 5
	items[3].Tags = []string{"renyah", "manis"}
	items[4].Name = "Teh Chamomile"
	items[4].Tags = []string{"hangat", "relaksasi"}
	return Document{Foods: items, Metadata: Metadata{Version: "2.1"}}
}

func newLoadedCache(t *testing.T, doc Document) *Cache {
	t.Helper()
	c := NewCache(&stubSource{doc: doc})
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestCacheReadsBeforeLoad(t *testing.T) {
	c := NewCache(&stubSource{doc: sampleDoc()})

	if _, err := c.Query(mood.Senang, 5, Filters{}); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Query err = %v, want ErrNotLoaded", err)
	}
	if _, err := c.Analytics(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Analytics err = %v, want ErrNotLoaded", err)
	}
	if _, ok := c.GetByID("s1"); ok {
		t.Fatalf("GetByID before load should miss")
	}
	if st := c.Status(); st.Loaded || st.LastLoadTime != nil {
		t.Fatalf("unexpected status %+v", st)
	}
	if c.Version() != defaultVersion {
		t.Fatalf("Version = %q", c.Version())
	}
}

func TestCacheLoadBuildsBuckets(t *testing.T) {
	c := newLoadedCache(t, sampleDoc())

	counts := map[mood.Label]int{mood.Senang: 2, mood.Sedih: 1, mood.Stress: 3, mood.Bosan: 0}
	for m, want := range counts {
		got, err := c.TotalForMood(m)
		if err != nil {
			t.Fatalf("TotalForMood(%s): %v", m, err)
		}
		if got != want {
			t.Fatalf("TotalForMood(%s) = %d, want %d", m, got, want)
		}
	}
	if c.Version() != "2.1" {
		t.Fatalf("Version = %q", c.Version())
	}
	item, ok := c.GetByID("d1")
	if !ok || item.Category != "soup" {
		t.Fatalf("GetByID(d1) = %+v, %v", item, ok)
	}
}

func TestCacheLoadDefaultsVersion(t *testing.T) {
	doc := sampleDoc()
	doc.Metadata.Version = "  "
	c := newLoadedCache(t, doc)
	if c.Version() != "1.0" {
		t.Fatalf("Version = %q, want 1.0", c.Version())
	}
}

func TestCacheLoadRejectsInvalidDocuments(t *testing.T) {
	missingName := sampleDoc()
	missingName.Foods[1].Name = ""

	badMood := sampleDoc()
	badMood.Foods[0].Mood = "marah"

	dup := sampleDoc()
	dup.Foods[2].ID = "s1"

	cases := []struct {
		name    string
		doc     Document
		wantMsg string
	}{
		{name: "nil foods", doc: Document{}, wantMsg: "foods must be an array"},
		{name: "missing field", doc: missingName, wantMsg: "missing required field 'name'"},
		{name: "unknown mood", doc: badMood, wantMsg: "unknown mood"},
		{name: "duplicate id", doc: dup, wantMsg: "duplicate id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCache(&stubSource{doc: tc.doc})
			err := c.Load(context.Background())
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			var le *LoadError
			if !errors.As(err, &le) || le.Source != "stub" {
				t.Fatalf("expected LoadError from stub, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("err %q does not mention %q", err, tc.wantMsg)
			}
			if c.Loaded() {
				t.Fatalf("cache should stay unloaded")
			}
		})
	}
}

func TestCacheFailedReloadKeepsPreviousSnapshot(t *testing.T) {
	src := &stubSource{doc: sampleDoc()}
	c := NewCache(src)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	src.set(Document{}, errors.New("bucket unavailable"))
	if _, err := c.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload error")
	}

	bad := sampleDoc()
	bad.Foods[0].Description = ""
	src.set(bad, nil)
	if _, err := c.Reload(context.Background()); !errors.Is(err, ErrValidation) {
		t.Fatalf("reload err = %v, want ErrValidation", err)
	}

	if got, _ := c.TotalForMood(mood.Stress); got != 3 {
		t.Fatalf("previous snapshot lost, stress = %d", got)
	}
	if c.Version() != "2.1" {
		t.Fatalf("Version = %q", c.Version())
	}
}

func TestCacheReloadSummary(t *testing.T) {
	src := &stubSource{doc: sampleDoc()}
	c := NewCache(src)
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	next := sampleDoc()
	next.Foods = append(next.Foods, food("b1", mood.Bosan, "snack"))
	next.Metadata.Version = "3.0"
	src.set(next, nil)

	summary, err := c.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if summary.Status != "reloaded" || summary.TotalFoods != 7 || summary.DataVersion != "3.0" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !summary.Timestamp.Equal(fixed) {
		t.Fatalf("Timestamp = %v", summary.Timestamp)
	}
	want := []mood.Label{mood.Senang, mood.Sedih, mood.Stress, mood.Bosan}
	if fmt.Sprint(summary.AvailableMoods) != fmt.Sprint(want) {
		t.Fatalf("AvailableMoods = %v, want %v", summary.AvailableMoods, want)
	}
}

func TestCacheQueryFiltersAndLimit(t *testing.T) {
	c := newLoadedCache(t, sampleDoc())

	cases := []struct {
		name    string
		mood    mood.Label
		limit   int
		filters Filters
		wantIDs map[string]bool
		wantLen int
	}{
		{name: "whole bucket", mood: mood.Stress, limit: 10, wantIDs: map[string]bool{"t1": true, "t2": true, "t3": true}, wantLen: 3},
		{name: "no limit", mood: mood.Stress, limit: 0, wantIDs: map[string]bool{"t1": true, "t2": true, "t3": true}, wantLen: 3},
		{name: "limit truncates", mood: mood.Stress, limit: 2, wantIDs: map[string]bool{"t1": true, "t2": true, "t3": true}, wantLen: 2},
		{name: "category", mood: mood.Stress, limit: 5, filters: Filters{Category: "snack"}, wantIDs: map[string]bool{"t1": true, "t3": true}, wantLen: 2},
		{name: "tags overlap", mood: mood.Stress, limit: 5, filters: Filters{Tags: []string{"relaksasi", "asin"}}, wantIDs: map[string]bool{"t2": true}, wantLen: 1},
		{name: "max prep time", mood: mood.Senang, limit: 5, filters: Filters{MaxPrepTime: 15}, wantIDs: map[string]bool{"s1": true}, wantLen: 1},
		{name: "price range", mood: mood.Senang, limit: 5, filters: Filters{PriceRange: "mid"}, wantIDs: map[string]bool{"s2": true}, wantLen: 1},
		{name: "difficulty miss", mood: mood.Sedih, limit: 5, filters: Filters{Difficulty: "hard"}, wantLen: 0},
		{name: "empty bucket", mood: mood.Bosan, limit: 5, wantLen: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Query(tc.mood, tc.limit, tc.filters)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) != tc.wantLen {
				t.Fatalf("len = %d, want %d (%v)", len(got), tc.wantLen, got)
			}
			seen := map[string]bool{}
			for _, item := range got {
				if item.Mood != tc.mood {
					t.Fatalf("item %s has mood %s", item.ID, item.Mood)
				}
				if !tc.wantIDs[item.ID] {
					t.Fatalf("unexpected item %s", item.ID)
				}
				if seen[item.ID] {
					t.Fatalf("duplicate item %s", item.ID)
				}
				seen[item.ID] = true
			}
		})
	}
}

func TestCacheQueryDoesNotMutateSnapshot(t *testing.T) {
	c := newLoadedCache(t, sampleDoc())
	for range 20 {
		got, _ := c.Query(mood.Stress, 3, Filters{})
		got[0].Name = "mutated"
	}
	snap := c.current.Load()
	for _, item := range snap.byMood[mood.Stress] {
		if item.Name == "mutated" {
			t.Fatalf("query result aliases snapshot")
		}
	}
}

func TestCacheConcurrentReadsDuringReload(t *testing.T) {
	docA := sampleDoc()
	docB := sampleDoc()
	for i := range docB.Foods {
		docB.Foods[i].Name = "B " + docB.Foods[i].Name
	}
	docB.Metadata.Version = "B"

	src := &stubSource{doc: docA}
	c := NewCache(src)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				snap := c.current.Load()
				prefixB := snap.version == "B"
				for _, item := range snap.items {
					if strings.HasPrefix(item.Name, "B ") != prefixB {
						errs <- fmt.Errorf("mixed snapshot: version %s item %q", snap.version, item.Name)
						return
					}
				}
				if _, err := c.Query(mood.Stress, 2, Filters{}); err != nil {
					errs <- err
					return
				}
			}
		}()
	}

	for i := range 50 {
		if i%2 == 0 {
			src.set(docB, nil)
		} else {
			src.set(docA, nil)
		}
		if _, err := c.Reload(context.Background()); err != nil {
			t.Fatalf("Reload: %v", err)
		}
	}
	cancel()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestCacheSearch(t *testing.T) {
	c := newLoadedCache(t, sampleDoc())

	got, err := c.Search("CHAMOMILE", Filters{}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t2" {
		t.Fatalf("name search = %v", got)
	}

	got, _ = c.Search("manis", Filters{}, 10)
	if len(got) != 2 || got[0].ID != "s1" || got[1].ID != "t1" {
		t.Fatalf("tag search = %v", got)
	}

	got, _ = c.Search("manis", Filters{Category: "snack"}, 10)
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("filtered search = %v", got)
	}

	got, _ = c.Search("deskripsi", Filters{}, 2)
	if len(got) != 2 {
		t.Fatalf("limited search len = %d", len(got))
	}

	got, _ = c.Search("rendang", Filters{}, 10)
	if len(got) != 0 {
		t.Fatalf("expected no match, got %v", got)
	}
}

func TestCacheAnalyticsAndOptions(t *testing.T) {
	c := newLoadedCache(t, sampleDoc())

	a, err := c.Analytics()
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if a.TotalFoods != 6 || a.DataVersion != "2.1" {
		t.Fatalf("unexpected analytics %+v", a)
	}
	if a.MoodDistribution[mood.Stress] != 3 || a.MoodDistribution[mood.Senang] != 2 {
		t.Fatalf("mood distribution = %v", a.MoodDistribution)
	}
	if a.CategoryDistribution["snack"] != 2 {
		t.Fatalf("category distribution = %v", a.CategoryDistribution)
	}
	if a.DifficultyDistribution["easy"] != 3 || a.PriceRangeDistribution["low"] != 2 {
		t.Fatalf("difficulty/price distributions = %v %v", a.DifficultyDistribution, a.PriceRangeDistribution)
	}
	// prep times 10, 30, 20, 5; zeros are excluded
	if a.AveragePrepTime != 16.25 {
		t.Fatalf("AveragePrepTime = %v", a.AveragePrepTime)
	}
	if len(a.CacheStatus) != 3 || a.CacheStatus[2] != (MoodCount{Mood: mood.Stress, Count: 3}) {
		t.Fatalf("CacheStatus = %v", a.CacheStatus)
	}

	opts, err := c.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if fmt.Sprint(opts.Categories) != "[dessert main soup snack drink]" {
		t.Fatalf("Categories = %v", opts.Categories)
	}
	if fmt.Sprint(opts.Difficulties) != "[easy medium]" {
		t.Fatalf("Difficulties = %v", opts.Difficulties)
	}
	if fmt.Sprint(opts.PriceRanges) != "[low mid]" {
		t.Fatalf("PriceRanges = %v", opts.PriceRanges)
	}
	if fmt.Sprint(opts.Tags) != "[manis dingin hangat renyah relaksasi]" {
		t.Fatalf("Tags = %v", opts.Tags)
	}
}

func TestCacheStatus(t *testing.T) {
	c := NewCache(&stubSource{doc: sampleDoc(), name: "object:foods.json"})
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := c.Status()
	if !st.Loaded || !st.CacheReady || st.TotalFoods != 6 || st.Source != "object:foods.json" {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.LastLoadTime == nil || !st.LastLoadTime.Equal(fixed) {
		t.Fatalf("LastLoadTime = %v", st.LastLoadTime)
	}
}

func TestCacheSelectReadsOneSnapshot(t *testing.T) {
	src := &stubSource{doc: Document{
		Foods:    []FoodItem{food("s1", mood.Stress, "drink"), food("s2", mood.Stress, "snack"), food("b1", mood.Bosan, "snack")},
		Metadata: Metadata{Version: "7"},
	}}
	c := NewCache(src)
	if _, err := c.Select(mood.Stress, 1, Filters{}); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	sel, err := c.Select(mood.Stress, 1, Filters{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(sel.Foods) != 1 || sel.Total != 2 || sel.Version != "7" {
		t.Fatalf("unexpected selection %+v", sel)
	}
	if sel.Foods[0].Mood != mood.Stress {
		t.Fatalf("unexpected food %+v", sel.Foods[0])
	}
}
