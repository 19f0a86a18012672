package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"portfolio-backend/internal/sessions"
	"portfolio-backend/internal/shared/storage/object"
	"portfolio-backend/internal/shared/telemetry"
	"portfolio-backend/internal/shared/util"
)

// MaxUploadBytes is the largest accepted portfolio document.
const MaxUploadBytes = 10 << 20

const (
	mimePDF             = "application/pdf"
	defaultSignedURLTTL = 24 * time.Hour
)

var (
	// ErrInvalidFile is returned for missing, empty or non-PDF uploads.
	ErrInvalidFile = errors.New("invalid file")
	// ErrTooLarge is returned when the upload exceeds MaxUploadBytes.
	ErrTooLarge = errors.New("file exceeds 10MB limit")
)

// Input describes one uploaded document.
type Input struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	PhoneNumber string
	Body        io.Reader
}

// Service stores uploaded documents and opens a pending review session for each.
type Service struct {
	Store        object.ObjectStore
	Sessions     sessions.Store
	SignedURLTTL time.Duration
	NewID        func() string
}

// Upload validates and saves the document, then creates the pending session.
func (s *Service) Upload(ctx context.Context, in Input) (sessions.Session, error) {
	if in.Body == nil {
		return sessions.Session{}, fmt.Errorf("%w: file is required", ErrInvalidFile)
	}
	fileName, err := util.SanitizeFileName(in.FileName)
	if err != nil {
		return sessions.Session{}, fmt.Errorf("%w: invalid file name", ErrInvalidFile)
	}
	if in.SizeBytes > MaxUploadBytes {
		return sessions.Session{}, ErrTooLarge
	}

	var sniff [512]byte
	n, err := io.ReadFull(in.Body, sniff[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return sessions.Session{}, fmt.Errorf("read upload: %w", err)
	}
	if n == 0 {
		return sessions.Session{}, fmt.Errorf("%w: file is empty", ErrInvalidFile)
	}
	if !isPDF(in.ContentType, sniff[:n]) {
		return sessions.Session{}, fmt.Errorf("%w: only PDF files are allowed", ErrInvalidFile)
	}

	id := s.newID()
	body := io.MultiReader(bytes.NewReader(sniff[:n]), io.LimitReader(in.Body, MaxUploadBytes+1-int64(n)))
	obj, err := s.Store.Save(ctx, id, fileName, body)
	if err != nil {
		return sessions.Session{}, fmt.Errorf("save upload: %w", err)
	}
	if obj.SizeBytes > MaxUploadBytes {
		s.discard(ctx, id, obj.Key)
		return sessions.Session{}, ErrTooLarge
	}

	created, err := s.Sessions.Create(ctx, sessions.Session{
		ID:          id,
		SourceRef:   obj.Key,
		FileName:    fileName,
		MimeType:    mimePDF,
		SizeBytes:   obj.SizeBytes,
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Status:      sessions.StatusPending,
	})
	if err != nil {
		s.discard(ctx, id, obj.Key)
		return sessions.Session{}, fmt.Errorf("create session: %w", err)
	}

	telemetry.Info("session.created", map[string]any{
		"session_id": created.ID,
		"size_bytes": created.SizeBytes,
		"phone_hash": util.ShortHash(created.PhoneNumber),
	})
	return created, nil
}

// FileURL returns a time-limited URL for the session's uploaded document.
func (s *Service) FileURL(ctx context.Context, sessionID string) (string, time.Duration, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", 0, sessions.ErrValidation
	}
	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return "", 0, err
	}
	ttl := s.SignedURLTTL
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}
	url, err := s.Store.SignedURL(ctx, sess.SourceRef, ttl)
	if err != nil {
		return "", 0, fmt.Errorf("signed url: %w", err)
	}
	return url, ttl, nil
}

// discard removes a stored upload that no session will reference.
func (s *Service) discard(ctx context.Context, sessionID, key string) {
	if err := s.Store.Delete(context.WithoutCancel(ctx), key); err != nil {
		telemetry.Warn("upload.discard_failed", map[string]any{
			"session_id": sessionID,
			"key":        key,
			"error":      err.Error(),
		})
	}
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func isPDF(contentType string, head []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	return http.DetectContentType(head) == mimePDF
}
