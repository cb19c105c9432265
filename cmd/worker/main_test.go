package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"moodfood-backend/internal/catalog"
	"moodfood-backend/internal/mood"
	"moodfood-backend/internal/queue"
	"moodfood-backend/internal/shared/storage/object"
	"moodfood-backend/internal/workerproc"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type objects map[string][]byte

func (o objects) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := o[key]
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o objects) Put(_ context.Context, key, _ string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	o[key] = data
	return int64(len(data)), err
}

type importer struct {
	err   error
	calls int
}

func (i *importer) ReplaceAll(context.Context, catalog.Document) error {
	i.calls++
	return i.err
}

func newProcessor(t *testing.T, importErr error) (*workerproc.Processor, *importer) {
	t.Helper()
	store := objects{}
	doc := catalog.Document{Foods: []catalog.FoodItem{{
		ID: "es-campur", Name: "Es Campur", Description: "Segar", Mood: mood.Senang, Category: "dessert",
	}}}
	if _, err := catalog.Publish(context.Background(), store, "foods.json", doc); err != nil {
		t.Fatalf("publish: %v", err)
	}
	imp := &importer{err: importErr}
	return &workerproc.Processor{Objects: store, Target: imp}, imp
}

func sqsMessage(id, body string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	proc, imp := newProcessor(t, nil)
	body, _ := queue.EncodeMessage(queue.Message{Key: "foods.json", RequestID: "req-1"})

	handleMessage(context.Background(), client, "queue", proc, sqsMessage("m1", string(body)))

	if len(client.deleted) != 1 || imp.calls != 1 {
		t.Fatalf("expected delete and import, got deleted=%d calls=%d", len(client.deleted), imp.calls)
	}
}

func TestWorkerKeepsMessageOnTransientFailure(t *testing.T) {
	client := &fakeSQS{}
	proc, _ := newProcessor(t, errors.New("connection refused"))
	body, _ := queue.EncodeMessage(queue.Message{Key: "foods.json", RequestID: "req-2"})

	handleMessage(context.Background(), client, "queue", proc, sqsMessage("m2", string(body)))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDropsUnrecoverableMessages(t *testing.T) {
	cases := map[string]string{
		"invalid json":   "{bad-json",
		"missing key":    `{"requestId":"r"}`,
		"missing object": `{"key":"gone.json"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			client := &fakeSQS{}
			proc, imp := newProcessor(t, nil)
			handleMessage(context.Background(), client, "queue", proc, sqsMessage("m3", body))
			if len(client.deleted) != 1 || imp.calls != 0 {
				t.Fatalf("expected drop without import, got deleted=%d calls=%d", len(client.deleted), imp.calls)
			}
		})
	}
}

func TestReceiveCount(t *testing.T) {
	if got := receiveCount(sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "4"}}); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
