package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"moodfood-backend/internal/mood"
	"moodfood-backend/internal/shared/storage/kv"
	"moodfood-backend/internal/shared/telemetry"
)

const defaultMemoTTL = 6 * time.Hour

// CachedClassifier remembers classifier answers per normalised input. Only
// answers in the closed mood set are stored; anything else is passed through
// so the next call asks the provider again. Cache errors never fail a
// classification.
type CachedClassifier struct {
	Base  Classifier
	Store kv.Store
	TTL   time.Duration
}

func (c *CachedClassifier) Classify(ctx context.Context, text string) (string, error) {
	key := memoKey(text)
	if cached, err := c.Store.Get(ctx, key); err == nil && cached != "" {
		return cached, nil
	} else if err != nil && !errors.Is(err, kv.ErrMiss) {
		telemetry.Warn("llm.memo_get_failed", map[string]any{"error": err.Error()})
	}

	label, err := c.Base.Classify(ctx, text)
	if err != nil {
		return "", err
	}
	m, ok := mood.ParseLabel(NormalizeMood(label))
	if !ok {
		return label, nil
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultMemoTTL
	}
	if err := c.Store.Set(ctx, key, string(m), ttl); err != nil {
		telemetry.Warn("llm.memo_set_failed", map[string]any{"error": err.Error()})
	}
	return label, nil
}

func memoKey(text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(norm))
	return "mood:" + hex.EncodeToString(sum[:16])
}
