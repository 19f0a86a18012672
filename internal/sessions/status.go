package sessions

import (
	"context"
	"strings"
	"time"

	"portfolio-backend/internal/insights"
)

// Projection is the polling view of a session.
type Projection struct {
	ID        string            `json:"id"`
	Status    Status            `json:"status"`
	Stage     Stage             `json:"stage,omitempty"`
	Progress  int               `json:"progress"`
	Result    *insights.Insight `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Project builds the polling view. Stage, result and error are only exposed
// in the status they belong to.
func Project(s Session) Projection {
	p := Projection{
		ID:        s.ID,
		Status:    s.Status,
		Progress:  s.Progress,
		UpdatedAt: s.UpdatedAt,
	}
	switch s.Status {
	case StatusProcessing:
		p.Stage = s.Stage
	case StatusCompleted:
		if s.Result != nil {
			r := s.Result.Clone()
			p.Result = &r
		}
	case StatusFailed:
		p.Error = s.Error
	}
	return p
}

// StatusService answers polling requests straight from the store.
type StatusService struct {
	Store Store
}

// Get returns the current projection for id.
func (s *StatusService) Get(ctx context.Context, id string) (Projection, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Projection{}, ErrValidation
	}
	sess, err := s.Store.Get(ctx, id)
	if err != nil {
		return Projection{}, err
	}
	return Project(sess), nil
}
