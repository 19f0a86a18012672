package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSender struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSClientSendEncodesMessage(t *testing.T) {
	sender := &fakeSender{}
	client := newSQSClient(sender, "https://sqs.example/queue")

	if err := client.Send(context.Background(), Message{SessionID: "s-1", Version: MessageVersion}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(sender.input.QueueUrl) != "https://sqs.example/queue" {
		t.Fatalf("unexpected queue url %q", aws.ToString(sender.input.QueueUrl))
	}
	got, err := DecodeMessage([]byte(aws.ToString(sender.input.MessageBody)))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.SessionID != "s-1" {
		t.Fatalf("expected session id s-1, got %q", got.SessionID)
	}
	attr := sender.input.MessageAttributes[SessionIDAttribute]
	if aws.ToString(attr.StringValue) != "s-1" {
		t.Fatalf("expected session id attribute, got %+v", attr)
	}
	if sender.input.MessageGroupId != nil {
		t.Fatalf("standard queue must not set a group id")
	}
}

func TestSQSClientFIFOGroupsBySession(t *testing.T) {
	sender := &fakeSender{}
	client := newSQSClient(sender, "https://sqs.example/review.fifo")

	msg := Message{SessionID: "s-2", EnqueuedAt: "2026-03-01T12:00:00Z"}
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(sender.input.MessageGroupId) != "s-2" {
		t.Fatalf("group id = %q", aws.ToString(sender.input.MessageGroupId))
	}
	if aws.ToString(sender.input.MessageDeduplicationId) != "s-2:2026-03-01T12:00:00Z" {
		t.Fatalf("dedup id = %q", aws.ToString(sender.input.MessageDeduplicationId))
	}
}

func TestSQSClientSendWrapsError(t *testing.T) {
	boom := errors.New("boom")
	client := newSQSClient(&fakeSender{err: boom}, "q")
	if err := client.Send(context.Background(), Message{SessionID: "s-1"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSQSClientRejectsEmptySession(t *testing.T) {
	sender := &fakeSender{}
	if err := newSQSClient(sender, "q").Send(context.Background(), Message{}); err == nil {
		t.Fatalf("expected error for empty session id")
	}
	if sender.input != nil {
		t.Fatalf("nothing should be sent")
	}
}

func TestNewSQSClientRequiresQueueURL(t *testing.T) {
	if _, err := NewSQSClient(context.Background(), "", " "); err == nil {
		t.Fatalf("expected error for empty queue url")
	}
}
