package sessions

import (
	"context"
	"fmt"
	"slices"
	"time"

	"portfolio-backend/internal/insights"
)

// Store persists sessions. Implementations must make Update an atomic
// read-modify-write of a single record.
type Store interface {
	Create(ctx context.Context, s Session) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	Update(ctx context.Context, id string, p Patch) (Session, error)
}

// StaleLister is implemented by stores that can enumerate processing sessions
// whose last update is older than a cutoff.
type StaleLister interface {
	ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]Session, error)
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	// IfStatus, when non-empty, makes the update conditional on the current status.
	IfStatus []Status

	Status         *Status
	Stage          *Stage
	Progress       *int
	Result         *insights.Insight
	ClearResult    bool
	Error          *string
	ErrorCode      *string
	PhoneNumber    *string
	PhoneVerified  *bool
	StartedAt      *time.Time
	CompletedAt    *time.Time
	ClearCompleted bool
}

// Apply merges p into s and stamps UpdatedAt. It returns ErrConflict when the
// IfStatus precondition does not hold.
func (p Patch) Apply(s Session, now time.Time) (Session, error) {
	if len(p.IfStatus) > 0 && !slices.Contains(p.IfStatus, s.Status) {
		return s, fmt.Errorf("%w: status is %s", ErrConflict, s.Status)
	}
	out := s.Clone()
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Stage != nil {
		out.Stage = *p.Stage
	}
	if p.Progress != nil {
		out.Progress = *p.Progress
	}
	if p.ClearResult {
		out.Result = nil
	}
	if p.Result != nil {
		r := p.Result.Clone()
		out.Result = &r
	}
	if p.Error != nil {
		out.Error = *p.Error
	}
	if p.ErrorCode != nil {
		out.ErrorCode = *p.ErrorCode
	}
	if p.PhoneNumber != nil {
		out.PhoneNumber = *p.PhoneNumber
	}
	if p.PhoneVerified != nil {
		out.PhoneVerified = *p.PhoneVerified
	}
	if p.StartedAt != nil {
		t := *p.StartedAt
		out.StartedAt = &t
	}
	if p.ClearCompleted {
		out.CompletedAt = nil
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	out.UpdatedAt = now
	return out, nil
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
