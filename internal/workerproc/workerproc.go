package workerproc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"portfolio-backend/internal/pipeline"
	"portfolio-backend/internal/queue"
	"portfolio-backend/internal/sessions"
	"portfolio-backend/internal/shared/util"
)

// ErrUnrecoverable marks a message that can never succeed. Consumers drop it
// instead of waiting for redelivery.
var ErrUnrecoverable = errors.New("unrecoverable message")

// Job is a queued session run decoded from a message body.
type Job struct {
	queue.Message
	// BodyLen and BodyHash identify the raw payload in logs.
	BodyLen  int
	BodyHash string
}

// Fields returns log fields describing the job.
func (j Job) Fields() map[string]any {
	fields := map[string]any{"session_id": j.SessionID, "body_len": j.BodyLen}
	if j.RequestID != "" {
		fields["request_id"] = j.RequestID
	}
	if j.BodyHash != "" {
		fields["body_hash"] = j.BodyHash
	}
	return fields
}

// Decode validates a message body. Every error it returns wraps ErrUnrecoverable.
func Decode(body string) (Job, error) {
	job := Job{BodyLen: len(body), BodyHash: util.ShortHash(body)}
	if strings.TrimSpace(body) == "" {
		return job, fmt.Errorf("%w: empty body", ErrUnrecoverable)
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return job, fmt.Errorf("%w: %w", ErrUnrecoverable, err)
	}
	job.Message = msg
	if strings.TrimSpace(msg.SessionID) == "" {
		return job, fmt.Errorf("%w: missing session id", ErrUnrecoverable)
	}
	return job, nil
}

// Run drives the job's session with its request id on the context. A session
// that no longer exists is unrecoverable; other runner errors are retryable.
func Run(ctx context.Context, runner pipeline.Runner, job Job) error {
	if runner == nil {
		return errors.New("pipeline runner not configured")
	}
	if strings.TrimSpace(job.SessionID) == "" {
		return fmt.Errorf("%w: missing session id", ErrUnrecoverable)
	}
	err := runner.Run(pipeline.WithRequestID(ctx, job.RequestID), job.SessionID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sessions.ErrNotFound):
		return fmt.Errorf("%w: session %s: %w", ErrUnrecoverable, job.SessionID, err)
	default:
		return fmt.Errorf("run session %s: %w", job.SessionID, err)
	}
}

// Handle decodes body and runs it. The returned job carries whatever could be
// decoded, for logging.
func Handle(ctx context.Context, runner pipeline.Runner, body string) (Job, error) {
	job, err := Decode(body)
	if err != nil {
		return job, err
	}
	return job, Run(ctx, runner, job)
}

// Unrecoverable reports whether err means the message should be deleted.
func Unrecoverable(err error) bool {
	return errors.Is(err, ErrUnrecoverable)
}
