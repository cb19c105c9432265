package mood

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the per-input outcome of DetectBatch.
type BatchItem struct {
	Input      string       `json:"input"`
	Mood       Label        `json:"mood,omitempty"`
	Strategy   StrategyName `json:"strategy,omitempty"`
	Confidence Confidence   `json:"confidence,omitempty"`
	Success    bool         `json:"success"`
	Error      string       `json:"error,omitempty"`
}

// BatchSummary aggregates the successful items of a batch.
type BatchSummary struct {
	Total            int                  `json:"total"`
	Successful       int                  `json:"successful"`
	Failed           int                  `json:"failed"`
	Strategies       map[StrategyName]int `json:"strategies"`
	Moods            map[Label]int        `json:"moods"`
	ConfidenceLevels map[Confidence]int   `json:"confidence_levels"`
}

// BatchResult keeps items in input order.
type BatchResult struct {
	Items   []BatchItem  `json:"results"`
	Summary BatchSummary `json:"analytics"`
}

// DetectBatch runs Detect on every text independently. A failing item is
// recorded in place; the batch itself never fails.
func (d *Detector) DetectBatch(ctx context.Context, texts []string, strategies ...Strategy) BatchResult {
	items := make([]BatchItem, len(texts))

	workers := d.BatchWorkers
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, text := range texts {
		g.Go(func() error {
			items[i] = d.detectItem(ctx, text, strategies)
			return nil
		})
	}
	_ = g.Wait()

	return BatchResult{Items: items, Summary: Summarize(items)}
}

func (d *Detector) detectItem(ctx context.Context, text string, strategies []Strategy) BatchItem {
	res, err := d.Detect(ctx, text, strategies...)
	if err != nil {
		return BatchItem{Input: text, Success: false, Error: err.Error()}
	}
	return BatchItem{
		Input:      text,
		Mood:       res.Mood,
		Strategy:   res.Strategy,
		Confidence: res.Confidence,
		Success:    true,
	}
}

// Summarize counts strategies, moods and confidence levels over successful items.
func Summarize(items []BatchItem) BatchSummary {
	sum := BatchSummary{
		Total:            len(items),
		Strategies:       map[StrategyName]int{},
		Moods:            map[Label]int{},
		ConfidenceLevels: map[Confidence]int{},
	}
	for _, it := range items {
		if !it.Success {
			sum.Failed++
			continue
		}
		sum.Successful++
		sum.Strategies[it.Strategy]++
		sum.Moods[it.Mood]++
		sum.ConfidenceLevels[it.Confidence]++
	}
	return sum
}
