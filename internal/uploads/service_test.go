package uploads

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"portfolio-backend/internal/sessions"
	localstore "portfolio-backend/internal/shared/storage/object/local"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

func newTestService(t *testing.T) (*Service, *sessions.MemoryStore) {
	t.Helper()
	store := sessions.NewMemoryStore()
	return &Service{
		Store:    localstore.New(t.TempDir()),
		Sessions: store,
		NewID:    func() string { return "upload-1" },
	}, store
}

type failingCreateStore struct {
	*sessions.MemoryStore
}

func (failingCreateStore) Create(context.Context, sessions.Session) (sessions.Session, error) {
	return sessions.Session{}, errors.New("connection refused")
}

func assertNoStoredUpload(t *testing.T, svc *Service) {
	t.Helper()
	rc, err := svc.Store.Open(context.Background(), "upload-1/a.pdf")
	if err == nil {
		rc.Close()
		t.Fatalf("expected the stored upload to be removed")
	}
}

func TestUploadCreatesPendingSession(t *testing.T) {
	svc, store := newTestService(t)

	sess, err := svc.Upload(context.Background(), Input{
		FileName:    "holdings.pdf",
		ContentType: "application/octet-stream",
		SizeBytes:   int64(len(samplePDF)),
		PhoneNumber: " +91 98765 43210 ",
		Body:        bytes.NewReader(samplePDF),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if sess.ID != "upload-1" || sess.Status != sessions.StatusPending {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.PhoneNumber != "+91 98765 43210" {
		t.Fatalf("phone number not trimmed: %q", sess.PhoneNumber)
	}
	if sess.SizeBytes != int64(len(samplePDF)) {
		t.Fatalf("sizeBytes = %d", sess.SizeBytes)
	}

	stored, err := store.Get(context.Background(), "upload-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rc, err := svc.Store.Open(context.Background(), stored.SourceRef)
	if err != nil {
		t.Fatalf("open stored document: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, samplePDF) {
		t.Fatalf("stored bytes differ from upload")
	}
}

func TestUploadAcceptsDeclaredPDF(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Upload(context.Background(), Input{
		FileName:    "statement.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("not really a pdf but declared as one"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want error
	}{
		{
			name: "missing body",
			in:   Input{FileName: "a.pdf"},
			want: ErrInvalidFile,
		},
		{
			name: "empty body",
			in:   Input{FileName: "a.pdf", ContentType: "application/pdf", Body: strings.NewReader("")},
			want: ErrInvalidFile,
		},
		{
			name: "not a pdf",
			in:   Input{FileName: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("hello world")},
			want: ErrInvalidFile,
		},
		{
			name: "declared too large",
			in:   Input{FileName: "a.pdf", ContentType: "application/pdf", SizeBytes: MaxUploadBytes + 1, Body: bytes.NewReader(samplePDF)},
			want: ErrTooLarge,
		},
		{
			name: "streamed too large",
			in: Input{
				FileName:    "a.pdf",
				ContentType: "application/pdf",
				Body:        io.MultiReader(bytes.NewReader(samplePDF), bytes.NewReader(make([]byte, MaxUploadBytes))),
			},
			want: ErrTooLarge,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := newTestService(t)
			_, err := svc.Upload(context.Background(), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if _, err := store.Get(context.Background(), "upload-1"); !errors.Is(err, sessions.ErrNotFound) {
				t.Fatalf("expected no session, got %v", err)
			}
			assertNoStoredUpload(t, svc)
		})
	}
}

func TestUploadRemovesBlobWhenSessionCreateFails(t *testing.T) {
	svc, store := newTestService(t)
	svc.Sessions = failingCreateStore{MemoryStore: store}

	_, err := svc.Upload(context.Background(), Input{FileName: "a.pdf", Body: bytes.NewReader(samplePDF)})
	if err == nil || !strings.Contains(err.Error(), "create session") {
		t.Fatalf("expected create session error, got %v", err)
	}
	assertNoStoredUpload(t, svc)
}

func TestFileURL(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.FileURL(ctx, "  "); !errors.Is(err, sessions.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, _, err := svc.FileURL(ctx, "missing"); !errors.Is(err, sessions.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := svc.Upload(ctx, Input{FileName: "a.pdf", Body: bytes.NewReader(samplePDF)}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	url, ttl, err := svc.FileURL(ctx, "upload-1")
	if err != nil {
		t.Fatalf("file url: %v", err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "a.pdf") {
		t.Fatalf("unexpected url %q", url)
	}
	if ttl != 24*time.Hour {
		t.Fatalf("ttl = %v, want default 24h", ttl)
	}

	svc.SignedURLTTL = time.Hour
	if _, ttl, _ := svc.FileURL(ctx, "upload-1"); ttl != time.Hour {
		t.Fatalf("ttl = %v, want 1h", ttl)
	}
}
