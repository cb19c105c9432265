package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"moodfood-backend/internal/catalog"
	"moodfood-backend/internal/llm"
	"moodfood-backend/internal/mood"
)

type docSource struct {
	doc catalog.Document
	err error
}

func (s *docSource) Name() string { return "test" }

func (s *docSource) Load(context.Context) (catalog.Document, error) {
	return s.doc, s.err
}

type fakePersonalizer struct {
	reasons []string
	err     error
	calls   atomic.Int32
}

func (p *fakePersonalizer) Personalize(_ context.Context, in llm.PersonalizeInput) ([]string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	if p.reasons != nil {
		return p.reasons, nil
	}
	out := make([]string, len(in.Foods))
	for i, f := range in.Foods {
		out[i] = "personal: " + f.Name
	}
	return out, nil
}

type fakeClassifier struct {
	label string
	err   error
}

func (f fakeClassifier) Classify(context.Context, string) (string, error) {
	return f.label, f.err
}

type breakerState string

func (p breakerState) State() string { return string(p) }

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testFoods() []catalog.FoodItem {
	var foods []catalog.FoodItem
	add := func(m mood.Label, n int, category string) {
		for i := range n {
			foods = append(foods, catalog.FoodItem{
				ID:          fmt.Sprintf("%s-%d", m, i),
				Name:        fmt.Sprintf("%s food %d", m, i),
				Description: "enak",
				Mood:        m,
				Category:    category,
				PrepTime:    10 * (i + 1),
				Tags:        []string{string(m)},
				Reason:      fmt.Sprintf("default %s %d", m, i),
			})
		}
	}
	add(mood.Stress, 8, "drink")
	add(mood.Sedih, 3, "dessert")
	add(mood.Bosan, 2, "snack")
	add(mood.Senang, 1, "main")
	return foods
}

type serviceOpts struct {
	classifier mood.Classifier
	personal   llm.Personalizer
	source     catalog.Source
	skipLoad   bool
	ai         AIMonitor
}

func newTestService(t *testing.T, o serviceOpts) *Service {
	t.Helper()
	src := o.source
	if src == nil {
		src = &docSource{doc: catalog.Document{Foods: testFoods(), Metadata: catalog.Metadata{Version: "9.9"}}}
	}
	cache := catalog.NewCache(src)
	if !o.skipLoad {
		if err := cache.Load(context.Background()); err != nil {
			t.Fatalf("load catalog: %v", err)
		}
	}
	det := mood.NewDetector(nil, o.classifier)
	det.Now = func() time.Time { return testNow }
	det.Location = time.UTC
	return &Service{
		Detector: det,
		Catalog:  cache,
		Builder:  &Builder{Personalizer: o.personal, Timeout: time.Second, Now: func() time.Time { return testNow }},
		AI:       o.ai,
		Now:      func() time.Time { return testNow },
	}
}

var errBoom = errors.New("boom")
