package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"portfolio-backend/internal/shared/storage/object"
)

func TestStoreSaveOpenSignedURL(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()
	body := "%PDF-1.4\n" + strings.Repeat("x", 1024)

	obj, err := store.Save(ctx, "session-1", "cams statement.pdf", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if obj.Key != "session-1/cams statement.pdf" {
		t.Fatalf("key = %q", obj.Key)
	}
	if obj.SizeBytes != int64(len(body)) {
		t.Fatalf("size = %d, want %d", obj.SizeBytes, len(body))
	}
	if obj.MimeType != "application/pdf" {
		t.Fatalf("mime = %q", obj.MimeType)
	}

	rc, err := store.Open(ctx, obj.Key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != body {
		t.Fatalf("round trip mismatch")
	}

	u, err := store.SignedURL(ctx, obj.Key, 0)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if !strings.HasPrefix(u, "file://") {
		t.Fatalf("url = %q", u)
	}
}

func TestStoreDelete(t *testing.T) {
	base := t.TempDir()
	store := New(base)
	ctx := context.Background()

	obj, err := store.Save(ctx, "session-2", "a.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, obj.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, obj.Key); err == nil {
		t.Fatalf("expected object to be gone")
	}
	if _, err := os.Stat(filepath.Join(base, "session-2")); !os.IsNotExist(err) {
		t.Fatalf("expected empty namespace dir removed, got %v", err)
	}
	if err := store.Delete(ctx, obj.Key); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if err := store.Delete(ctx, "../escape.pdf"); !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestStoreRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Open(context.Background(), "../secret"); !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := store.Save(context.Background(), "..", "a.pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("expected namespace rejection")
	}
}

func TestReadAllEnforcesLimit(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()
	obj, err := store.Save(ctx, "s", "a.txt", strings.NewReader("0123456789"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := object.ReadAll(ctx, store, obj.Key, 5); !errors.Is(err, object.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	data, err := object.ReadAll(ctx, store, obj.Key, 10)
	if err != nil || string(data) != "0123456789" {
		t.Fatalf("ReadAll = %q, %v", data, err)
	}
}
