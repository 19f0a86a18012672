package pipeline

import (
	"context"
	"errors"
	"time"

	"portfolio-backend/internal/sessions"
	"portfolio-backend/internal/shared/metrics"
	"portfolio-backend/internal/shared/telemetry"
)

const (
	defaultReapInterval  = time.Minute
	defaultReapBatchSize = 100
	staleSessionMessage  = "analysis interrupted before completion"
)

// Reaper fails sessions that stayed in processing past StaleAfter, which
// happens when the process running their task exits mid-pipeline.
type Reaper struct {
	Sessions   sessions.Store
	Lister     sessions.StaleLister
	StaleAfter time.Duration
	Interval   time.Duration
	BatchSize  int
	Now        func() time.Time
}

// Run sweeps on every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	if r.StaleAfter <= 0 || r.Lister == nil {
		return nil
	}
	interval := r.Interval
	if interval <= 0 {
		interval = defaultReapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				telemetry.Error("reaper.sweep_failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// Sweep fails one batch of stale sessions and returns how many it changed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now()
	}
	limit := r.BatchSize
	if limit <= 0 {
		limit = defaultReapBatchSize
	}
	stale, err := r.Lister.ListStale(ctx, now.Add(-r.StaleAfter), limit)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, s := range stale {
		_, err := r.Sessions.Update(ctx, s.ID, sessions.Patch{
			IfStatus:    []sessions.Status{sessions.StatusProcessing},
			Status:      sessions.Ptr(sessions.StatusFailed),
			Stage:       sessions.Ptr(sessions.StageNone),
			ClearResult: true,
			Error:       sessions.Ptr(staleSessionMessage),
			ErrorCode:   sessions.Ptr(sessions.CodeStaleSession),
			CompletedAt: &now,
		})
		if errors.Is(err, sessions.ErrConflict) || errors.Is(err, sessions.ErrNotFound) {
			continue
		}
		if err != nil {
			return reaped, err
		}
		reaped++
		metrics.IncSessionFailed(sessions.CodeStaleSession)
		telemetry.Warn("session.status", map[string]any{
			"session_id":        s.ID,
			"status":            sessions.StatusFailed,
			"status_transition": "processing->failed",
			"error_code":        sessions.CodeStaleSession,
			"last_update":       s.UpdatedAt.Format(time.RFC3339),
		})
	}
	return reaped, nil
}
