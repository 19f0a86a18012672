package sessions

import (
	"time"

	"portfolio-backend/internal/insights"
)

// Status is the lifecycle state of a review session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage is the pipeline step of a processing session.
type Stage string

const (
	StageNone       Stage = ""
	StageParsing    Stage = "parsing"
	StageAnalyzing  Stage = "analyzing"
	StageGenerating Stage = "generating"
)

// Session tracks one portfolio document through the review pipeline.
type Session struct {
	ID            string            `json:"id"`
	SourceRef     string            `json:"sourceRef"`
	FileName      string            `json:"fileName,omitempty"`
	MimeType      string            `json:"mimeType,omitempty"`
	SizeBytes     int64             `json:"sizeBytes,omitempty"`
	PhoneNumber   string            `json:"phoneNumber,omitempty"`
	PhoneVerified bool              `json:"phoneVerified"`
	Status        Status            `json:"status"`
	Stage         Stage             `json:"stage,omitempty"`
	Progress      int               `json:"progress"`
	Result        *insights.Insight `json:"result,omitempty"`
	Error         string            `json:"error,omitempty"`
	ErrorCode     string            `json:"errorCode,omitempty"`
	StartedAt     *time.Time        `json:"startedAt,omitempty"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Clone returns a copy that shares no mutable state with s.
func (s Session) Clone() Session {
	out := s
	if s.Result != nil {
		r := s.Result.Clone()
		out.Result = &r
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
