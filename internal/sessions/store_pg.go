package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"portfolio-backend/internal/insights"
)

const uniqueViolation = "23505"

const sessionColumns = `id, source_ref, file_name, mime_type, size_bytes, phone_number, phone_verified,
       status, stage, progress, result, error, error_code, started_at, completed_at, created_at, updated_at`

// PGStore implements Store using Postgres.
type PGStore struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s *PGStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create inserts a new session.
func (s *PGStore) Create(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		return Session{}, ErrValidation
	}
	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	result, err := marshalResult(sess.Result)
	if err != nil {
		return Session{}, err
	}

	const query = `
INSERT INTO review_sessions (
	id, source_ref, file_name, mime_type, size_bytes, phone_number, phone_verified,
	status, stage, progress, result, error, error_code, started_at, completed_at, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err = s.DB.ExecContext(ctx, query,
		sess.ID,
		sess.SourceRef,
		sess.FileName,
		sess.MimeType,
		sess.SizeBytes,
		sess.PhoneNumber,
		sess.PhoneVerified,
		string(sess.Status),
		string(sess.Stage),
		sess.Progress,
		result,
		sess.Error,
		sess.ErrorCode,
		nullTime(sess.StartedAt),
		nullTime(sess.CompletedAt),
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Session{}, ErrDuplicateID
		}
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// Get returns a session by id.
func (s *PGStore) Get(ctx context.Context, id string) (Session, error) {
	query := `SELECT ` + sessionColumns + `
FROM review_sessions
WHERE id = $1`
	sess, err := scanSession(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Update locks the row, applies p and writes the merged record back in one transaction.
func (s *PGStore) Update(ctx context.Context, id string, p Patch) (Session, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	query := `SELECT ` + sessionColumns + `
FROM review_sessions
WHERE id = $1
FOR UPDATE`
	current, err := scanSession(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("lock session: %w", err)
	}

	updated, err := p.Apply(current, s.now())
	if err != nil {
		return Session{}, err
	}
	result, err := marshalResult(updated.Result)
	if err != nil {
		return Session{}, err
	}

	const update = `
UPDATE review_sessions
SET phone_number = $2,
    phone_verified = $3,
    status = $4,
    stage = $5,
    progress = $6,
    result = $7,
    error = $8,
    error_code = $9,
    started_at = $10,
    completed_at = $11,
    updated_at = $12
WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update,
		id,
		updated.PhoneNumber,
		updated.PhoneVerified,
		string(updated.Status),
		string(updated.Stage),
		updated.Progress,
		result,
		updated.Error,
		updated.ErrorCode,
		nullTime(updated.StartedAt),
		nullTime(updated.CompletedAt),
		updated.UpdatedAt,
	); err != nil {
		return Session{}, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Session{}, err
	}
	return updated, nil
}

// ListStale returns processing sessions last updated before the cutoff, oldest first.
func (s *PGStore) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + sessionColumns + `
FROM review_sessions
WHERE status = $1 AND updated_at < $2
ORDER BY updated_at ASC
LIMIT $3`
	rows, err := s.DB.QueryContext(ctx, query, string(StatusProcessing), updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var status, stage string
	var result sql.NullString
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&sess.ID,
		&sess.SourceRef,
		&sess.FileName,
		&sess.MimeType,
		&sess.SizeBytes,
		&sess.PhoneNumber,
		&sess.PhoneVerified,
		&status,
		&stage,
		&sess.Progress,
		&result,
		&sess.Error,
		&sess.ErrorCode,
		&startedAt,
		&completedAt,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		return Session{}, err
	}
	sess.Status = Status(status)
	sess.Stage = Stage(stage)
	if result.Valid && result.String != "" {
		var in insights.Insight
		if err := json.Unmarshal([]byte(result.String), &in); err != nil {
			return Session{}, fmt.Errorf("decode session result: %w", err)
		}
		sess.Result = &in
	}
	if startedAt.Valid {
		t := startedAt.Time
		sess.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}
	return sess, nil
}

func marshalResult(in *insights.Insight) (any, error) {
	if in == nil {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode session result: %w", err)
	}
	return string(b), nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

var (
	_ Store       = (*PGStore)(nil)
	_ StaleLister = (*PGStore)(nil)
)
