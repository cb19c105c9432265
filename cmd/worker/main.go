package main

// Mirror published catalogs into Postgres:
//   CATALOG_QUEUE_URL=... DATABASE_URL=... S3_BUCKET=... go run ./cmd/worker

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"moodfood-backend/internal/bootstrap"
	"moodfood-backend/internal/shared/config"
	"moodfood-backend/internal/shared/metrics"
	"moodfood-backend/internal/shared/telemetry"
	"moodfood-backend/internal/workerproc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("config.invalid", err)
	}

	queueURL := strings.TrimSpace(cfg.CatalogQueueURL)
	if queueURL == "" {
		fatal("worker.config", errors.New("CATALOG_QUEUE_URL is required"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.AWSRegion != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		fatal("worker.aws_config", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	proc, closeFn, err := bootstrap.BuildCatalogSync(ctx, cfg)
	if err != nil {
		fatal("worker.bootstrap", err)
	}
	defer closeFn()

	concurrency := max(1, cfg.WorkerConcurrency)
	visibility := int32(cfg.WorkerVisibilityTimeout / time.Second)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{
		"queue":       queueURL,
		"concurrency": concurrency,
		"visibility":  visibility,
	})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   visibility,
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Warn("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncCatalogSync("received")
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, sqsClient, queueURL, proc, m)
			}(msg)
		}
	}

	telemetry.Info("worker.draining", map[string]any{"timeout": cfg.WorkerShutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(cfg.WorkerShutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", nil)
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage deletes the message on success and on unrecoverable
// failures; anything else is left for redelivery.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, proc *workerproc.Processor, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)

	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, "", "")
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.catalog.invalid_message", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.Key, decoded.RequestID) {
			metrics.IncCatalogSync("dropped")
		}
		return
	}

	telemetry.Info("worker.catalog.received", baseFields(msg, decoded.Key, decoded.RequestID))

	res, err := workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, decoded), proc, body)
	if err != nil {
		fields := baseFields(msg, decoded.Key, decoded.RequestID)
		fields["error"] = err.Error()
		if workerproc.Unrecoverable(err) {
			telemetry.Error("worker.catalog.dropped", fields)
			if deleteMessage(ctx, client, queueURL, msg, decoded.Key, decoded.RequestID) {
				metrics.IncCatalogSync("dropped")
			}
			return
		}
		telemetry.Error("worker.catalog.failed", fields)
		metrics.IncCatalogSync("failed")
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.Key, decoded.RequestID) {
		fields := baseFields(msg, decoded.Key, decoded.RequestID)
		fields["foods"] = res.Foods
		fields["data_version"] = res.DataVersion
		telemetry.Info("worker.catalog.completed", fields)
		metrics.IncCatalogSync("completed")
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, key, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, key, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.catalog.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, key, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.catalog.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, key, requestID string) map[string]any {
	fields := map[string]any{
		"catalog_key":    key,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func fatal(event string, err error) {
	telemetry.Error(event, map[string]any{"error": err.Error()})
	os.Exit(1)
}
