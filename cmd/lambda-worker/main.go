package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"moodfood-backend/internal/bootstrap"
	"moodfood-backend/internal/shared/config"
	"moodfood-backend/internal/shared/metrics"
	"moodfood-backend/internal/shared/telemetry"
	"moodfood-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	proc     *workerproc.Processor
)

func initApp(ctx context.Context) {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	// The connection is kept for the lifetime of the execution environment.
	built, _, err := bootstrap.BuildCatalogSync(ctx, cfg)
	if err != nil {
		initErr = err
		return
	}
	proc = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(func() { initApp(ctx) })
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processRecords(ctx, proc, event.Records), nil
}

// processRecords reports transient failures back to SQS so only those
// records are retried.
func processRecords(ctx context.Context, p *workerproc.Processor, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		metrics.IncCatalogSync("received")
		res, err := workerproc.HandleMessage(ctx, p, record.Body)
		fields := map[string]any{"sqs_message_id": record.MessageId}
		switch {
		case err == nil:
			fields["catalog_key"] = res.Key
			fields["foods"] = res.Foods
			telemetry.Info("worker.catalog.completed", fields)
			metrics.IncCatalogSync("completed")
		case workerproc.Unrecoverable(err):
			fields["error"] = err.Error()
			telemetry.Error("worker.catalog.dropped", fields)
			metrics.IncCatalogSync("dropped")
		default:
			fields["error"] = err.Error()
			telemetry.Error("worker.catalog.failed", fields)
			metrics.IncCatalogSync("failed")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
