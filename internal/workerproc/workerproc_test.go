package workerproc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"moodfood-backend/internal/catalog"
	"moodfood-backend/internal/mood"
	"moodfood-backend/internal/queue"
	"moodfood-backend/internal/shared/storage/object"
)

type memObjects map[string][]byte

func (m memObjects) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m[key]
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m memObjects) Put(_ context.Context, key, _ string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m[key] = data
	return int64(len(data)), nil
}

type recordingImporter struct {
	docs []catalog.Document
	err  error
}

func (r *recordingImporter) ReplaceAll(_ context.Context, doc catalog.Document) error {
	if r.err != nil {
		return r.err
	}
	r.docs = append(r.docs, doc)
	return nil
}

func publish(t *testing.T, store memObjects, key, version string, m mood.Label) {
	t.Helper()
	doc := catalog.Document{
		Metadata: catalog.Metadata{Version: version},
		Foods: []catalog.FoodItem{{
			ID: "f1", Name: "Bakso", Description: "Kuah hangat", Mood: m, Category: "main", PrepTime: 20,
		}},
	}
	if _, err := catalog.Publish(context.Background(), store, key, doc); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func body(t *testing.T, msg queue.Message) string {
	t.Helper()
	data, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	return string(data)
}

func TestHandleMessageSyncsCatalog(t *testing.T) {
	store := memObjects{}
	publish(t, store, "foods.json", "3", mood.Sedih)
	target := &recordingImporter{}
	p := &Processor{Objects: store, Target: target}

	res, err := HandleMessage(context.Background(), p, body(t, queue.Message{Key: "foods.json", DataVersion: "3", RequestID: "r1"}))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if res.Foods != 1 || res.DataVersion != "3" || len(target.docs) != 1 {
		t.Fatalf("unexpected result %+v docs=%d", res, len(target.docs))
	}
}

func TestHandleMessageErrors(t *testing.T) {
	store := memObjects{}
	publish(t, store, "foods.json", "3", mood.Senang)
	store["bad.json"] = []byte(`{"foods":[{"id":"x","mood":"marah"}]}`)

	cases := []struct {
		name          string
		body          string
		importErr     error
		unrecoverable bool
	}{
		{"empty body", "  ", nil, true},
		{"bad json", "{nope", nil, true},
		{"missing key", `{"requestId":"r"}`, nil, true},
		{"missing object", `{"key":"gone.json"}`, nil, true},
		{"invalid document", `{"key":"bad.json"}`, nil, true},
		{"stale version", `{"key":"foods.json","dataVersion":"2"}`, nil, true},
		{"database down", `{"key":"foods.json"}`, errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Processor{Objects: store, Target: &recordingImporter{err: tc.importErr}}
			_, err := HandleMessage(context.Background(), p, tc.body)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := Unrecoverable(err); got != tc.unrecoverable {
				t.Fatalf("Unrecoverable(%v) = %v, want %v", err, got, tc.unrecoverable)
			}
		})
	}
}

func TestHandleMessageUsesParsedContext(t *testing.T) {
	store := memObjects{}
	publish(t, store, "foods.yaml", "1", mood.Bosan)
	target := &recordingImporter{}
	p := &Processor{Objects: store, Target: target}

	ctx := WithParsedMessage(context.Background(), queue.Message{Key: "foods.yaml"})
	if _, err := HandleMessage(ctx, p, "ignored"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(target.docs) != 1 {
		t.Fatalf("expected one import, got %d", len(target.docs))
	}
}

func TestComputeMeta(t *testing.T) {
	if meta := ComputeMeta(""); meta.BodyLen != 0 || meta.BodySHA != "" {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if meta := ComputeMeta("abc"); meta.BodyLen != 3 || len(meta.BodySHA) != 64 {
		t.Fatalf("unexpected meta %+v", meta)
	}
}
