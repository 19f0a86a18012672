package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"portfolio-backend/internal/bootstrap"
	"portfolio-backend/internal/pipeline"
	"portfolio-backend/internal/shared/config"
	"portfolio-backend/internal/shared/metrics"
	"portfolio-backend/internal/shared/telemetry"
	"portfolio-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	runner   pipeline.Runner
)

func initApp() {
	cfg := config.Load()
	if err := telemetry.Configure(cfg.Env); err != nil {
		initErr = err
		return
	}
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	runner = built.Orchestrator
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda_worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	defer telemetry.Sync()
	return processBatch(ctx, runner, event), nil
}

// processBatch reports only retryable records as failures; malformed records
// are acknowledged so they leave the queue.
func processBatch(ctx context.Context, r pipeline.Runner, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncJobsReceived()
		job, err := workerproc.Handle(ctx, r, record.Body)
		if err == nil {
			metrics.IncJobsCompleted()
			continue
		}
		fields := job.Fields()
		fields["sqs_message_id"] = record.MessageId
		fields["error"] = err.Error()
		if workerproc.Unrecoverable(err) {
			telemetry.Error("lambda_worker.unrecoverable", fields)
			metrics.IncJobsDeletedUnrecoverable()
		} else {
			telemetry.Error("lambda_worker.failed", fields)
			metrics.IncJobsFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
