package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Source produces a catalog document.
type Source interface {
	Load(ctx context.Context) (Document, error)
	Name() string
}

// objectOpener is the read half of the object store.
type objectOpener interface {
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

type objectWriter interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
}

// Publish validates doc and writes it to key in the format the key implies.
func Publish(ctx context.Context, store objectWriter, key string, doc Document) (int64, error) {
	if err := Validate(doc); err != nil {
		return 0, err
	}
	data, contentType, err := Encode(doc, key)
	if err != nil {
		return 0, fmt.Errorf("encode catalog: %w", err)
	}
	return store.Put(ctx, key, contentType, bytes.NewReader(data))
}

// ObjectSource reads a JSON or YAML document from an object store.
type ObjectSource struct {
	Store objectOpener
	Key   string
}

func (s *ObjectSource) Name() string {
	return "object:" + s.Key
}

func (s *ObjectSource) Load(ctx context.Context) (Document, error) {
	if s.Store == nil {
		return Document{}, fmt.Errorf("object store not configured")
	}
	rc, err := s.Store.Open(ctx, s.Key)
	if err != nil {
		return Document{}, fmt.Errorf("open %s: %w", s.Key, err)
	}
	defer rc.Close()
	return Decode(rc, s.Key)
}

// Decode parses a document, choosing YAML for .yaml/.yml keys and JSON otherwise.
func Decode(r io.Reader, key string) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read catalog: %w", err)
	}
	var doc Document
	if isYAML(key) {
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return Document{}, fmt.Errorf("parse yaml catalog: %w", err)
		}
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("parse json catalog: %w", err)
	}
	return doc, nil
}

// Encode writes doc in the format implied by key.
func Encode(doc Document, key string) ([]byte, string, error) {
	if isYAML(key) {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, "", err
		}
		if err := enc.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/yaml", nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

func isYAML(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
