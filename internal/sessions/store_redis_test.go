package sessions

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := NewRedisClient(context.Background(), addr)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return &RedisStore{Client: client, Prefix: "test:review:" + uuid.NewString() + ":"}
}

func TestRedisStoreLifecycle(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, newPendingSession("s-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create(ctx, newPendingSession("s-1")); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := store.Update(ctx, "s-1", Patch{Progress: Ptr(30)}); err != nil {
			t.Errorf("progress update: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := store.Update(ctx, "s-1", Patch{PhoneVerified: Ptr(true)}); err != nil {
			t.Errorf("verify update: %v", err)
		}
	}()
	wg.Wait()

	got, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Progress != 30 || !got.PhoneVerified {
		t.Fatalf("lost update: %+v", got)
	}

	_, err = store.Update(ctx, "s-1", Patch{IfStatus: []Status{StatusCompleted}, Status: Ptr(StatusFailed)})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
