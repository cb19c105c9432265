package mood

import (
	"context"
	"testing"
)

func TestDetectBatchIsolatesFailures(t *testing.T) {
	d := newTestDetector(nil, 10)
	inputs := []string{"Capek banget hari ini", "Aku senang sekali hari ini!!!", ""}

	out := d.DetectBatch(context.Background(), inputs)

	if len(out.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(out.Items))
	}
	for i, in := range inputs {
		if out.Items[i].Input != in {
			t.Fatalf("item %d out of order: %q", i, out.Items[i].Input)
		}
	}
	if !out.Items[0].Success || out.Items[0].Mood != Stress || out.Items[0].Strategy != StrategyKeyword {
		t.Fatalf("unexpected first item: %+v", out.Items[0])
	}
	if !out.Items[1].Success || out.Items[1].Mood != Senang {
		t.Fatalf("unexpected second item: %+v", out.Items[1])
	}
	if out.Items[2].Success || out.Items[2].Error == "" {
		t.Fatalf("expected third item to fail validation: %+v", out.Items[2])
	}
	if out.Items[2].Mood != "" {
		t.Fatalf("failed item must not carry a mood")
	}

	sum := out.Summary
	if sum.Total != 3 || sum.Successful != 2 || sum.Failed != 1 {
		t.Fatalf("unexpected summary counts: %+v", sum)
	}
	if sum.Strategies[StrategyKeyword] != 2 {
		t.Fatalf("expected 2 keyword detections, got %v", sum.Strategies)
	}
	if sum.Moods[Stress] != 1 || sum.Moods[Senang] != 1 {
		t.Fatalf("unexpected mood distribution: %v", sum.Moods)
	}
}

func TestDetectBatchLargeInputKeepsOrder(t *testing.T) {
	d := newTestDetector(nil, 10)
	d.BatchWorkers = 3

	var inputs []string
	for i := 0; i < 25; i++ {
		if i%2 == 0 {
			inputs = append(inputs, "aku galau dan jenuh")
		} else {
			inputs = append(inputs, "stress banget deadline")
		}
	}
	out := d.DetectBatch(context.Background(), inputs)
	for i, it := range out.Items {
		want := Stress
		if i%2 == 0 {
			want = Sedih
		}
		if it.Mood != want {
			t.Fatalf("item %d = %s, want %s", i, it.Mood, want)
		}
	}
}

func TestDetectBatchEmpty(t *testing.T) {
	out := newTestDetector(nil, 10).DetectBatch(context.Background(), nil)
	if len(out.Items) != 0 || out.Summary.Total != 0 {
		t.Fatalf("expected empty result, got %+v", out)
	}
}
