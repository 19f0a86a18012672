package pipeline

import (
	"context"
	"testing"
	"time"

	"portfolio-backend/internal/sessions"
)

func TestReaperFailsStaleProcessingSessions(t *testing.T) {
	store := sessions.NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"stuck", "pending"} {
		if _, err := store.Create(ctx, sessions.Session{ID: id, Status: sessions.StatusPending}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if _, err := store.Update(ctx, "stuck", sessions.Patch{
		Status:   sessions.Ptr(sessions.StatusProcessing),
		Stage:    sessions.Ptr(sessions.StageAnalyzing),
		Progress: sessions.Ptr(50),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	r := &Reaper{
		Sessions:   store,
		Lister:     store,
		StaleAfter: time.Minute,
		Now:        func() time.Time { return time.Now().UTC().Add(time.Hour) },
	}
	n, err := r.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reaped session, got %d", n)
	}

	got, err := store.Get(ctx, "stuck")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != sessions.StatusFailed || got.ErrorCode != sessions.CodeStaleSession || got.Error == "" {
		t.Fatalf("unexpected reaped session %+v", got)
	}
	if got.Stage != sessions.StageNone {
		t.Fatalf("expected stage cleared, got %q", got.Stage)
	}
	if pending, _ := store.Get(ctx, "pending"); pending.Status != sessions.StatusPending {
		t.Fatalf("pending session must not be reaped, got %s", pending.Status)
	}

	if n, err := r.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
}

func TestReaperRunDisabledWithoutWindow(t *testing.T) {
	r := &Reaper{Sessions: sessions.NewMemoryStore()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
}
