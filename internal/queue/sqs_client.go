package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"portfolio-backend/internal/shared/telemetry"
)

const (
	defaultRegion = "us-east-1"
	// SessionIDAttribute carries the session id outside the body so queue
	// tooling can filter without decoding it.
	SessionIDAttribute = "SessionId"
)

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient sends session tasks to an SQS queue. FIFO queues (URL ending in
// .fifo) group by session id and deduplicate per session and enqueue time.
type SQSClient struct {
	client   sqsSender
	queueURL string
	fifo     bool
}

// NewSQSClient constructs an SQS-backed queue client.
func NewSQSClient(ctx context.Context, region, queueURL string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("RA_SQS_QUEUE_URL is required")
	}
	region = strings.TrimSpace(region)
	if region == "" {
		region = defaultRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSQSClient(sqs.NewFromConfig(cfg), queueURL), nil
}

func newSQSClient(sender sqsSender, queueURL string) *SQSClient {
	return &SQSClient{
		client:   sender,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// Send enqueues one session task.
func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.SessionID) == "" {
		return fmt.Errorf("sqs send: empty session id")
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			SessionIDAttribute: {DataType: aws.String("String"), StringValue: aws.String(msg.SessionID)},
		},
	}
	if s.fifo {
		input.MessageGroupId = aws.String(msg.SessionID)
		input.MessageDeduplicationId = aws.String(msg.SessionID + ":" + msg.EnqueuedAt)
	}

	out, err := s.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	telemetry.Debug("queue.sent", map[string]any{
		"session_id":     msg.SessionID,
		"request_id":     msg.RequestID,
		"sqs_message_id": aws.ToString(out.MessageId),
	})
	return nil
}

var _ Client = (*SQSClient)(nil)
