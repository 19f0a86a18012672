package pipeline

import (
	"context"
	"errors"
	"strings"

	"portfolio-backend/internal/sessions"
)

// stageFailure is an error raised by a pipeline stage. Message is the short
// user-facing text persisted on the session; Err keeps the cause for logs.
type stageFailure struct {
	Code    string
	Message string
	Err     error
}

func (f *stageFailure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return f.Message + ": " + f.Err.Error()
}

func (f *stageFailure) Unwrap() error { return f.Err }

func failure(code, message string, err error) error {
	return &stageFailure{Code: code, Message: message, Err: err}
}

const internalFailureMessage = "internal error during analysis"

// classifyFailure maps err to the error code and message recorded on a failed session.
func classifyFailure(err error) (string, string) {
	var sf *stageFailure
	if errors.As(err, &sf) {
		return sf.Code, sanitizeError(errors.New(sf.Message))
	}
	if err == nil {
		return sessions.CodeInternalError, internalFailureMessage
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sessions.CodeInterpretationFailed, "analysis timed out"
	}
	return sessions.CodeInternalError, internalFailureMessage
}

// sanitizeError flattens err to a single line of at most 500 bytes.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = strings.ToValidUTF8(msg[:maxLen], "")
	}
	if msg == "" {
		msg = internalFailureMessage
	}
	return msg
}
