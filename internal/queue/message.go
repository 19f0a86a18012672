package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageVersion is the payload version written by this build.
const MessageVersion = 1

// ErrUnsupportedVersion is returned for payloads newer than MessageVersion.
var ErrUnsupportedVersion = errors.New("unsupported message version")

// Client sends session tasks to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Message asks a worker to run the review pipeline for one session.
type Message struct {
	SessionID  string `json:"sessionId"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt,omitempty"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message, stamping the
// current version when unset.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload. Unversioned payloads are read as
// version 1.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, msg.Version)
	}
	return msg, nil
}
