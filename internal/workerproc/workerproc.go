package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"moodfood-backend/internal/catalog"
	"moodfood-backend/internal/queue"
	"moodfood-backend/internal/shared/storage/object"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrStale means the stored document no longer matches the message.
var ErrStale = errors.New("stale catalog message")

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingKey indicates a message without an object key.
type ErrMissingKey struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingKey) Error() string { return "missing catalog key" }

// ErrProcess indicates the sync failed after the message parsed.
type ErrProcess struct {
	Key       string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "sync catalog"
	}
	return "sync catalog " + e.Key + ": " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports errors that redelivery cannot fix: malformed
// messages, missing objects and documents that fail validation.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingKey
	)
	switch {
	case errors.As(err, &empty), errors.As(err, &decode), errors.As(err, &missing):
		return true
	case errors.Is(err, catalog.ErrValidation), errors.Is(err, object.ErrNotFound), errors.Is(err, ErrStale):
		return true
	default:
		return false
	}
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.Key) == "" {
		return msg, meta, ErrMissingKey{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// Importer replaces the stored catalog. catalog.PGRepo implements it.
type Importer interface {
	ReplaceAll(ctx context.Context, doc catalog.Document) error
}

// Processor mirrors published catalog documents into the database.
type Processor struct {
	Objects object.Store
	Target  Importer
}

// Result summarises one successful sync.
type Result struct {
	Key         string
	Foods       int
	DataVersion string
}

// Sync loads msg.Key, validates it and replaces the stored catalog.
func (p *Processor) Sync(ctx context.Context, msg queue.Message) (Result, error) {
	if p == nil || p.Objects == nil || p.Target == nil {
		return Result{}, errors.New("catalog sync not configured")
	}
	src := &catalog.ObjectSource{Store: p.Objects, Key: msg.Key}
	doc, err := src.Load(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := catalog.Validate(doc); err != nil {
		return Result{}, err
	}
	if msg.DataVersion != "" && doc.Metadata.Version != "" && msg.DataVersion != doc.Metadata.Version {
		// Overwritten since the message was sent; a newer message follows.
		return Result{}, fmt.Errorf("%w: announced %s, found %s", ErrStale, msg.DataVersion, doc.Metadata.Version)
	}
	if err := p.Target.ReplaceAll(ctx, doc); err != nil {
		return Result{}, err
	}
	return Result{Key: msg.Key, Foods: len(doc.Foods), DataVersion: doc.Metadata.Version}, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, p *Processor, body string) (Result, error) {
	if p == nil {
		return Result{}, errors.New("catalog sync not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return Result{}, err
		}
	}

	if strings.TrimSpace(msg.Key) == "" {
		return Result{}, ErrMissingKey{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	res, err := p.Sync(ctx, msg)
	if err != nil {
		return Result{}, ErrProcess{Key: msg.Key, RequestID: msg.RequestID, Err: err}
	}
	return res, nil
}
